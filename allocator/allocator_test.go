package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givy-go/allocator/config"
)

func testLayout() config.Layout {
	return config.Layout{BytesPerNode: 64 * 1024 * 1024, NodeCount: 1, LocalNode: 0}
}

func TestInit_RejectsInvalidLayout(t *testing.T) {
	_, err := Init(config.Layout{BytesPerNode: 0, NodeCount: 1, LocalNode: 0})
	assert.ErrorIs(t, err, ErrInvalidLayout)
}

func TestInit_ThenAllocateDeallocateRoundTrip(t *testing.T) {
	a, err := Init(testLayout())
	require.NoError(t, err)

	h := a.NewHeap()
	defer h.Close()

	ptr, actual := h.Allocate(128, 0)
	assert.GreaterOrEqual(t, actual, 128)
	h.Deallocate(ptr)
}

func TestNewHeap_ReturnsIndependentHandles(t *testing.T) {
	a, err := Init(testLayout())
	require.NoError(t, err)

	h1 := a.NewHeap()
	h2 := a.NewHeap()
	defer h1.Close()
	defer h2.Close()

	p1, _ := h1.Allocate(64, 0)
	p2, _ := h2.Allocate(64, 0)
	assert.NotEqual(t, p1, p2)
}
