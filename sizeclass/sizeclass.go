// Package sizeclass holds the small-allocation size class table (spec.md
// §4.3 "Small Cells"): every allocation below the page size is rounded up
// to the nearest power-of-two size class and carved out of a page block
// dedicated to that class, following original_source/allocator.h's
// SizeClass namespace.
package sizeclass

import (
	"math/bits"

	"github.com/givy-go/allocator/internal/fault"
	"github.com/givy-go/allocator/vmem"
)

// UnusedBlockSize is the footprint of the original's in-band UnusedBlock
// free-list node (a next pointer plus a back-pointer), kept here to fix the
// smallest size class at the same 16 bytes. This port stores no link
// inside a freed block: freed cells are tracked by index on the page
// block's header (see heap/smallblock.go).
const UnusedBlockSize = 16

// Smallest is the smallest representable size class.
const Smallest = 16 // round_up_as_power_of_2(UnusedBlockSize)

// SmallMedium is the threshold above which an allocation is no longer a
// small cell and instead gets one or more whole pages (spec.md's
// Thresholds::SmallMedium).
const SmallMedium = vmem.PageSize

const (
	minLog = 4  // log2(Smallest)
	maxLog = 12 // log2(SmallMedium)
	// Count is the number of size classes, id 0 .. Count-1.
	Count = maxLog - minLog + 1
)

// Info is one size class's precomputed configuration.
type Info struct {
	BlockSize      int // size of one block in this class
	PageBlockPages int // pages in one page block of this class
	NumBlocks      int // blocks that fit in one page block
	ID             int // size class id (index into Table)
}

// Table is the compile-time size class configuration, indexed by ID.
var Table = buildTable()

func buildTable() [Count]Info {
	var t [Count]Info
	for i := 0; i < Count; i++ {
		bs := 1 << (i + minLog)
		// PageBlockPages is always 1: original_source/allocator.h's
		// make_info carries a "TODO more page blocks on bigger sizeclasses"
		// comment but every shipped config entry uses 1 page block.
		t[i] = Info{BlockSize: bs, PageBlockPages: 1, NumBlocks: vmem.PageSize / bs, ID: i}
	}
	return t
}

// MaxNumBlocks is the largest NumBlocks across the table (the smallest
// size class packs the most blocks per page). heap.PageBlockHeader does not
// use it: its free stack is sized from the page block's own class.
var MaxNumBlocks = func() int {
	max := 0
	for _, info := range Table {
		if info.NumBlocks > max {
			max = info.NumBlocks
		}
	}
	return max
}()

// log2Sup returns ceil(log2(n)) for n > 0, matching
// original_source/allocator.h's Math::log_2_sup.
func log2Sup(n int) int {
	fault.Assert(n > 0, "sizeclass: log2Sup of non-positive %d", n)
	if n == 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// ID returns the size class covering size, which must be in
// [Smallest, SmallMedium]. Callers outside this package should use
// ClassFor, which also validates the range.
func ID(size int) int {
	fault.Assert(size >= Smallest, "sizeclass: %d below Smallest", size)
	return log2Sup(size) - minLog
}

// ClassFor returns the size class that should hold an allocation request
// of the given size, clamping anything below Smallest up to it. The
// caller must already have checked size < SmallMedium (spec.md §4 routes
// everything at or above SmallMedium to page blocks / huge allocations
// instead).
func ClassFor(size int) Info {
	if size < Smallest {
		size = Smallest
	}
	fault.Assert(size < SmallMedium, "sizeclass: %d is not a small allocation", size)
	return Table[ID(size)]
}
