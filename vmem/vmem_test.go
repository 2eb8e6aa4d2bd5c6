package vmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArena_MapUnmapRoundTrip(t *testing.T) {
	mapper, base, err := NewArena(16 * SuperpageSize)
	require.NoError(t, err)
	require.NotZero(t, base)

	got, err := mapper.Map(base, SuperpageSize)
	require.NoError(t, err)
	assert.Equal(t, base, got)

	require.NoError(t, mapper.Unmap(base, SuperpageSize))
	require.NoError(t, mapper.Discard(base+SuperpageSize, SuperpageSize))
}

func TestBootstrap_AllocateIsAligned(t *testing.T) {
	var b Bootstrap
	for _, align := range []uintptr{8, 16, 64} {
		region := b.Allocate(128, align)
		assert.Len(t, region, 128)
		assert.Equal(t, uintptr(0), sliceAddr(region)%align)
	}
}

func TestBootstrap_AllocateNeverAliases(t *testing.T) {
	var b Bootstrap
	a := b.Allocate(64, 8)
	c := b.Allocate(64, 8)
	a[0] = 0xFF
	assert.NotEqual(t, a[0], c[0])
}
