package gas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givy-go/allocator/config"
	"github.com/givy-go/allocator/vmem"
)

func testCfg(bytesPerNode uint64, nodeCount, localNode int) config.Layout {
	return config.Layout{BytesPerNode: bytesPerNode, NodeCount: nodeCount, LocalNode: localNode}
}

func TestNew_RoundsBytesPerNodeUpToSuperpages(t *testing.T) {
	l, err := New(0, testCfg(vmem.SuperpageSize+1, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), l.SuperpagesPerNode())
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(0, testCfg(vmem.SuperpageSize, 0, 0))
	assert.Error(t, err)
}

func TestSuperpageRoundTrip(t *testing.T) {
	l, err := New(0, testCfg(4*vmem.SuperpageSize, 1, 0))
	require.NoError(t, err)
	for num := uint64(0); num < 4; num++ {
		addr := l.Superpage(num)
		assert.Equal(t, num, l.SuperpageNum(addr))
	}
}

func TestLocalSuperpageRange_PartitionsByNode(t *testing.T) {
	l, err := New(0, testCfg(2*vmem.SuperpageSize, 3, 1))
	require.NoError(t, err)
	first, last := l.LocalSuperpageRange()
	assert.Equal(t, uint64(2), first)
	assert.Equal(t, uint64(4), last)
}

func TestClassify(t *testing.T) {
	l, err := New(0, testCfg(2*vmem.SuperpageSize, 2, 1))
	require.NoError(t, err)

	start, end := l.LocalInterval()
	assert.Equal(t, Local, l.Classify(start))
	assert.Equal(t, Local, l.Classify(end-1))
	assert.Equal(t, OtherNode, l.Classify(start-1))
	assert.Equal(t, OutOfRange, l.Classify(end))
}
