package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnviron_AppliesDefaults(t *testing.T) {
	for _, key := range []string{"GIVYGO_GAS_START", "GIVYGO_BYTES_PER_NODE", "GIVYGO_NODE_COUNT", "GIVYGO_LOCAL_NODE"} {
		old, had := os.LookupEnv(key)
		require.NoError(t, os.Unsetenv(key))
		if had {
			t.Cleanup(func() { os.Setenv(key, old) })
		}
	}

	l, err := FromEnviron()
	assert.NoError(t, err)
	assert.Equal(t, uint64(DefaultBytesPerNode), l.BytesPerNode)
	assert.Equal(t, 1, l.NodeCount)
	assert.Equal(t, 0, l.LocalNode)
}

func TestValidate_RejectsNonPositiveNodeCount(t *testing.T) {
	l := Layout{BytesPerNode: 1, NodeCount: 0, LocalNode: 0}
	assert.Error(t, l.Validate())
}

func TestValidate_RejectsOutOfRangeLocalNode(t *testing.T) {
	l := Layout{BytesPerNode: 1, NodeCount: 2, LocalNode: 2}
	assert.Error(t, l.Validate())
}

func TestValidate_RejectsZeroBytesPerNode(t *testing.T) {
	l := Layout{BytesPerNode: 0, NodeCount: 1, LocalNode: 0}
	assert.Error(t, l.Validate())
}

func TestValidate_AcceptsWellFormedLayout(t *testing.T) {
	l := Layout{BytesPerNode: 4096, NodeCount: 2, LocalNode: 1}
	assert.NoError(t, l.Validate())
}
