package heap

import "github.com/givy-go/allocator/internal/fault"

// PageBlockHeader is one record in a SuperpageBlock's page table: one per
// page of the first superpage (§4.2 "Page Block"). Only the head record of
// a run is active; every other record in the run stores head/runLength
// copies and otherwise carries no meaning.
type PageBlockHeader struct {
	typ       MemoryType
	runLength int              // pages in the run; only meaningful read via head
	head      *PageBlockHeader // head record of this run (self, if this is the head)
	idx       int              // this record's page index within the table
	spb       *SuperpageBlock  // owning SPB, set once at table construction

	ql       pbLinks // unused-quicklist hook (meaningful at head, type Unused)
	al       pbLinks // heap active-list hook (meaningful at head, type Small)
	alLinked bool    // whether this head is currently threaded into a Heap active list

	// Small-cell sub-allocator state (§4.3), meaningful only at head with
	// typ == Small.
	sizeClassID int
	carvedCount int
	unusedCount int
	freedStack  []uint16 // LIFO of block indices within this page block
}

// isHead reports whether h is the active record of its run.
func (h *PageBlockHeader) isHead() bool { return h.head == h }

// formatHead reinitializes the record h as the head of a run of length
// pages, tagged typ. Non-head records of the run must be formatted
// separately via formatFollower (mirrors the original's per-record
// head-pointer + run_length assignment loop).
func formatHead(h *PageBlockHeader, typ MemoryType, length int) {
	h.typ = typ
	h.runLength = length
	h.head = h
	h.sizeClassID = 0
	h.carvedCount = 0
	h.unusedCount = 0
	h.freedStack = h.freedStack[:0]
	h.alLinked = false
}

func formatFollower(h, head *PageBlockHeader) {
	h.typ = head.typ
	h.runLength = head.runLength
	h.head = head
}

// formatRun reformats the run [start, start+length) as typ with start as
// the new head.
func formatRun(table []PageBlockHeader, start, length int, typ MemoryType) *PageBlockHeader {
	fault.Assert(start >= 0 && start+length <= len(table), "heap: formatRun out of table bounds")
	head := &table[start]
	formatHead(head, typ, length)
	for i := start + 1; i < start+length; i++ {
		formatFollower(&table[i], head)
	}
	return head
}

// end returns the page index one past the end of h's run (h must be head).
func (h *PageBlockHeader) end() int {
	fault.Assert(h.isHead(), "heap: end() called on non-head record")
	return h.idx + h.runLength
}
