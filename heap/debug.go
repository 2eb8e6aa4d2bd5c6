package heap

import (
	"fmt"
	"io"

	"github.com/givy-go/allocator/internal/fault"
	"github.com/givy-go/allocator/sizeclass"
)

// Stats is a snapshot of one Heap's bookkeeping, for diagnostics and the
// allocbench CLI. It is safe to call from the owning goroutine only.
type Stats struct {
	OwnedSuperpageBlocks int
	ActiveSmallLists     [sizeclass.Count]int // page blocks on each size class's active list
	PendingRemoteFrees   bool
}

// Snapshot reports a point-in-time view of h's bookkeeping. It does not
// drain the remote inbox; PendingRemoteFrees just reports whether one is
// waiting.
func (h *Heap) Snapshot() Stats {
	var s Stats
	s.OwnedSuperpageBlocks = len(h.owned)
	for i := range h.activeLists {
		n := 0
		for p := h.activeLists[i].Front(); p != nil; p = p.activeLinks().next {
			n++
		}
		s.ActiveSmallLists[i] = n
	}
	s.PendingRemoteFrees = h.remoteInbox.head.Load() != nil
	return s
}

// Dump writes a human-readable report of h's bookkeeping to w. The detailed
// per-size-class breakdown only appears in binaries built with the "safe"
// tag (fault.SafeEnabled, see DESIGN.md "internal/fault"); plain builds get the one-line summary only, since walking every
// active list is diagnostic overhead the hot path never pays for.
func (h *Heap) Dump(w io.Writer) {
	s := h.Snapshot()
	fmt.Fprintf(w, "heap: %d owned superpage block(s), remote frees pending: %v\n",
		s.OwnedSuperpageBlocks, s.PendingRemoteFrees)
	if !fault.SafeEnabled() {
		return
	}
	for i, n := range s.ActiveSmallLists {
		if n == 0 {
			continue
		}
		fmt.Fprintf(w, "  size class %d (%d bytes): %d active page block(s)\n",
			i, sizeclass.Table[i].BlockSize, n)
	}
}
