package heap

import (
	"github.com/givy-go/allocator/internal/fault"
	"github.com/givy-go/allocator/sizeclass"
)

// configureSmallBlocks (re)initializes a freshly-formatted Small page block
// head for carving, per the size class's Info (§4.3).
func (h *PageBlockHeader) configureSmallBlocks(info sizeclass.Info) {
	fault.Assert(h.isHead() && h.typ == Small, "heap: configureSmallBlocks on non-Small head")
	h.sizeClassID = info.ID
	h.carvedCount = 0
	h.unusedCount = 0
	if cap(h.freedStack) < info.NumBlocks {
		h.freedStack = make([]uint16, 0, info.NumBlocks)
	} else {
		h.freedStack = h.freedStack[:0]
	}
}

// availableSmallBlocks is the number of cells that can still be handed out
// before the page block is full.
func (h *PageBlockHeader) availableSmallBlocks(info sizeclass.Info) int {
	return h.unusedCount + (info.NumBlocks - h.carvedCount)
}

func (h *PageBlockHeader) isFullOfSmallBlocks(info sizeclass.Info) bool {
	return h.availableSmallBlocks(info) == 0
}

func (h *PageBlockHeader) isEmptyOfSmallBlocks(info sizeclass.Info) bool {
	return h.unusedCount == h.carvedCount
}

// takeSmallBlock pops a freed cell if any are stacked, else bump-carves the
// next never-used cell. Returns the cell's block index within the page
// block. Precondition: availableSmallBlocks(info) > 0.
func (h *PageBlockHeader) takeSmallBlock(info sizeclass.Info) int {
	fault.Assert(h.availableSmallBlocks(info) > 0, "heap: takeSmallBlock on exhausted page block")
	if n := len(h.freedStack); n > 0 {
		idx := h.freedStack[n-1]
		h.freedStack = h.freedStack[:n-1]
		h.unusedCount--
		return int(idx)
	}
	idx := h.carvedCount
	h.carvedCount++
	return idx
}

// putSmallBlock returns a previously taken cell (identified by its block
// index) to the free stack.
func (h *PageBlockHeader) putSmallBlock(blockIdx int, info sizeclass.Info) {
	fault.Assert(blockIdx >= 0 && blockIdx < info.NumBlocks, "heap: putSmallBlock index out of range")
	h.freedStack = append(h.freedStack, uint16(blockIdx))
	h.unusedCount++
}
