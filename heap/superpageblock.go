package heap

import (
	"sync/atomic"
	"unsafe"

	"github.com/givy-go/allocator/internal/fault"
	"github.com/givy-go/allocator/vmem"
)

// HeaderPageCount is the number of pages an SPB's own bookkeeping is
// deemed to occupy, computed from the size of SuperpageBlock itself
// (original_source/allocator.h derives the equivalent from
// sizeof(SuperpageBlock)). No live data is actually placed in those pages
// in this port — SuperpageBlock lives on the Go heap, not in the mapped
// arena, see DESIGN.md — but the page range is still carved out Reserved
// so the rest of the page-block arithmetic (available pages, huge-alloc
// boundary math) matches the original exactly.
var HeaderPageCount = func() int {
	sz := int(unsafe.Sizeof(SuperpageBlock{}))
	return (sz + vmem.PageSize - 1) / vmem.PageSize
}()

// SuperpageBlock (SPB) is the basic unit of memory reservation: a run of
// one or more adjacent superpages, split into page blocks via pageTable
// (§3, §4.2).
type SuperpageBlock struct {
	owner atomic.Pointer[Heap]

	superpageNum   uint64 // first superpage number of the run
	superpageCount uint64

	// hugeAllocPageIndex is the page index (within the logical
	// superpageCount*PagesPerSuperpage page space) at which a huge
	// allocation begins. It equals PagesPerSuperpage when there is no huge
	// allocation attached to this SPB at all.
	hugeAllocPageIndex int

	pageTable [vmem.PagesPerSuperpage]PageBlockHeader
	unused    unusedQuickList
}

// newSuperpageBlock lays out a freshly reserved run of superpageCount
// superpages, with a huge allocation of hugeAllocPageCount pages (0 for a
// plain, huge-alloc-free SPB) occupying its tail (§4.2 "Layout on
// construction").
func newSuperpageBlock(superpageNum, superpageCount uint64, hugeAllocPageCount int) *SuperpageBlock {
	spb := &SuperpageBlock{superpageNum: superpageNum, superpageCount: superpageCount}
	for i := range spb.pageTable {
		spb.pageTable[i].idx = i
		spb.pageTable[i].spb = spb
	}
	spb.unused = newUnusedQuickList()

	total := int(superpageCount)*vmem.PagesPerSuperpage - hugeAllocPageCount
	spb.hugeAllocPageIndex = total
	available := total
	if available > vmem.PagesPerSuperpage {
		available = vmem.PagesPerSuperpage
	}
	fault.AssertAlways(available >= HeaderPageCount, "heap: huge allocation would overlap SPB header pages")

	formatRun(spb.pageTable[:], 0, HeaderPageCount, Reserved)
	if available > HeaderPageCount {
		head := formatRun(spb.pageTable[:], HeaderPageCount, available-HeaderPageCount, Unused)
		spb.unused.Insert(head)
	}
	if available < vmem.PagesPerSuperpage {
		formatRun(spb.pageTable[:], available, vmem.PagesPerSuperpage-available, Huge)
	}
	return spb
}

// SuperpageNum returns the first superpage number of the run.
func (spb *SuperpageBlock) SuperpageNum() uint64 { return spb.superpageNum }

// SuperpageCount returns how many superpages this SPB spans.
func (spb *SuperpageBlock) SuperpageCount() uint64 { return spb.superpageCount }

// Owner returns the heap that currently owns this SPB, or nil if orphaned.
func (spb *SuperpageBlock) Owner() *Heap { return spb.owner.Load() }

// Disown releases ownership, making the SPB adoptable by the next thread
// that touches it.
func (spb *SuperpageBlock) Disown() { spb.owner.Store(nil) }

// Adopt attempts to claim an orphaned SPB. Exactly one racing adopter
// succeeds (§4.5 "Concurrency of adoption").
func (spb *SuperpageBlock) Adopt(h *Heap) bool { return spb.owner.CompareAndSwap(nil, h) }

// setInitialOwner assigns the creating heap directly; used only right
// after construction, before the SPB is visible to any other goroutine.
func (spb *SuperpageBlock) setInitialOwner(h *Heap) { spb.owner.Store(h) }

// AllocatePageBlock carves a run of pages page-block-sized cells out of the
// unused-quicklist, splitting the tail back in if the found run was larger
// than requested (§4.2 "Page-block allocation"). Returns nil if no run of
// at least pages pages is available.
func (spb *SuperpageBlock) AllocatePageBlock(pages int, typ MemoryType) *PageBlockHeader {
	run := spb.unused.Take(pages)
	if run == nil {
		return nil
	}
	start, total := run.idx, run.runLength
	head := formatRun(spb.pageTable[:], start, pages, typ)
	if total > pages {
		tail := formatRun(spb.pageTable[:], start+pages, total-pages, Unused)
		spb.unused.Insert(tail)
	}
	return head
}

// FreePageBlock returns h's run to the unused-quicklist, coalescing with
// an immediately adjacent Unused run on either side (§4.2 "Page-block
// free").
func (spb *SuperpageBlock) FreePageBlock(h *PageBlockHeader) {
	fault.Assert(h.isHead(), "heap: FreePageBlock on non-head record")
	start, end := h.idx, h.end()

	if start > 0 {
		if left := spb.pageTable[start-1].head; left.typ == Unused {
			spb.unused.Remove(left)
			start = left.idx
		}
	}
	if end < vmem.PagesPerSuperpage {
		if right := spb.pageTable[end].head; right.typ == Unused {
			spb.unused.Remove(right)
			end = right.end()
		}
	}

	merged := formatRun(spb.pageTable[:], start, end-start, Unused)
	spb.unused.Insert(merged)
}

// PageBlockHeaderFor returns the active head record covering page index
// pageIdx of the first superpage.
func (spb *SuperpageBlock) PageBlockHeaderFor(pageIdx int) *PageBlockHeader {
	fault.Assert(pageIdx >= 0 && pageIdx < vmem.PagesPerSuperpage, "heap: page index out of range")
	return spb.pageTable[pageIdx].head
}

// InHugeAlloc reports whether pageIdx (within the first superpage) belongs
// to this SPB's huge allocation.
func (spb *SuperpageBlock) InHugeAlloc(pageIdx int) bool {
	return pageIdx >= spb.hugeAllocPageIndex && spb.hugeAllocPageIndex < vmem.PagesPerSuperpage
}

// HugeAllocPageIndex exposes the boundary page index for callers computing
// huge-allocation addresses/sizes.
func (spb *SuperpageBlock) HugeAllocPageIndex() int { return spb.hugeAllocPageIndex }

// HasHugeAlloc reports whether this SPB currently carries a huge
// allocation (superpageCount > 1, or trailing pages of superpage 1
// reserved for one).
func (spb *SuperpageBlock) HasHugeAlloc() bool {
	return spb.hugeAllocPageIndex < vmem.PagesPerSuperpage || spb.superpageCount > 1
}

// DestroyHugeAlloc reformats any trailing pages of superpage 1 that
// belonged to the huge allocation as Unused, then reduces the SPB to a
// single superpage (§4.2 "Huge-alloc destruction"). The caller is
// responsible for trimming and unmapping superpages 2..N afterwards.
func (spb *SuperpageBlock) DestroyHugeAlloc() {
	if spb.hugeAllocPageIndex < vmem.PagesPerSuperpage {
		head := spb.pageTable[spb.hugeAllocPageIndex].head
		fault.Assert(head.typ == Huge && head.idx == spb.hugeAllocPageIndex,
			"heap: huge-alloc boundary record malformed")
		spb.FreePageBlock(head)
	}
	spb.superpageCount = 1
	spb.hugeAllocPageIndex = vmem.PagesPerSuperpage
}

// IsFullyUnused reports whether the SPB is a single superpage with nothing
// allocated (huge, medium or small) anywhere in it, i.e. eligible for full
// release back to the tracker.
func (spb *SuperpageBlock) IsFullyUnused() bool {
	return spb.superpageCount == 1 &&
		spb.hugeAllocPageIndex == vmem.PagesPerSuperpage &&
		spb.unused.Size() == vmem.PagesPerSuperpage-HeaderPageCount
}

// ForEachRunHead walks every run head in the first superpage's page table
// in ascending order, including Reserved/Huge boundary runs.
func (spb *SuperpageBlock) ForEachRunHead(fn func(*PageBlockHeader)) {
	for idx := 0; idx < vmem.PagesPerSuperpage; {
		h := &spb.pageTable[idx]
		fn(h)
		idx = h.end()
	}
}
