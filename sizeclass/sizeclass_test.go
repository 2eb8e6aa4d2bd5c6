package sizeclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givy-go/allocator/vmem"
)

func TestTable_CoversSmallestToSmallMedium(t *testing.T) {
	require.Len(t, Table, Count)
	assert.Equal(t, Smallest, Table[0].BlockSize)
	assert.Equal(t, SmallMedium, Table[Count-1].BlockSize)
}

func TestTable_BlockSizesArePowersOfTwo(t *testing.T) {
	for _, info := range Table {
		assert.Equal(t, 0, info.BlockSize&(info.BlockSize-1), "block size %d not a power of two", info.BlockSize)
	}
}

func TestTable_NumBlocksFillsOnePage(t *testing.T) {
	for _, info := range Table {
		assert.Equal(t, vmem.PageSize, info.NumBlocks*info.BlockSize)
	}
}

func TestClassFor_ClampsBelowSmallest(t *testing.T) {
	assert.Equal(t, Smallest, ClassFor(1).BlockSize)
	assert.Equal(t, Smallest, ClassFor(0).BlockSize)
}

func TestClassFor_RoundsUpToNextClass(t *testing.T) {
	info := ClassFor(17)
	assert.Equal(t, 32, info.BlockSize)
}

func TestClassFor_ExactPowerOfTwoStaysInItsOwnClass(t *testing.T) {
	info := ClassFor(64)
	assert.Equal(t, 64, info.BlockSize)
}

func TestID_MatchesClassFor(t *testing.T) {
	for _, info := range Table {
		assert.Equal(t, info.ID, ID(info.BlockSize))
	}
}
