// Package heap implements the Superpage Block Manager (C4/C5), the
// Thread-Local Heap (C7) and its Remote-Free protocol (C8) — spec.md §4.2,
// §4.4 and §4.5. The two are one Go package rather than two, see
// SPEC_FULL.md §A for why.
package heap

import (
	"github.com/givy-go/allocator/internal/fault"
	"github.com/givy-go/allocator/sizeclass"
	"github.com/givy-go/allocator/vmem"
)

// availablePages is the page count left in a superpage's first-superpage
// table after the header pages are carved out.
var availablePages = vmem.PagesPerSuperpage - HeaderPageCount

// mediumHighThreshold is the byte size at or above which an allocation is
// routed to the huge path instead of medium (Thresholds::MediumHigh).
var mediumHighThreshold = availablePages * vmem.PageSize

// Heap is a Thread-Local Heap (§4.4): an explicit, caller-held handle that
// plays the role of the original's per-OS-thread singleton. Go gives no
// portable hook equivalent to thread_local with destructor semantics, so
// callers obtain one Heap per goroutine via Shared.NewHeap and call Close
// when that goroutine is done allocating (see DESIGN.md, "explicit Heap
// handles"). A Heap must not be used from more than one goroutine at a
// time; cross-goroutine frees go through RemoteInbox instead.
type Heap struct {
	shared *Shared

	owned       []*SuperpageBlock
	activeLists [sizeclass.Count]pbList

	remoteInbox RemoteInbox
}

func newHeapInternal(shared *Shared) *Heap {
	h := &Heap{shared: shared}
	for i := range h.activeLists {
		h.activeLists[i] = newPBList((*PageBlockHeader).activeLinks)
	}
	return h
}

// Allocate serves size bytes aligned to align (a power of two, at most one
// page; 0 means "no particular alignment"). size may be zero, in which
// case the smallest size class is returned. The returned actualSize is
// always ≥ size (§6 Public API).
func (h *Heap) Allocate(size, align int) (ptr uintptr, actualSize int) {
	h.drainRemoteInbox()

	if align == 0 {
		align = 1
	}
	fault.AssertAlways(isPowerOfTwo(align) && align <= vmem.PageSize,
		"heap: alignment must be a power of two <= page size, got %d", align)

	if size == 0 {
		size = sizeclass.Smallest
	}
	if align > size {
		// A naturally-aligned, power-of-two-sized block of at least align
		// bytes automatically satisfies the alignment request.
		size = align
	}

	switch {
	case size < sizeclass.SmallMedium:
		return h.allocateSmall(size)
	case size < mediumHighThreshold:
		return h.allocateMedium(size)
	default:
		return h.allocateHuge(size)
	}
}

func (h *Heap) allocateSmall(size int) (uintptr, int) {
	info := sizeclass.ClassFor(size)
	head := h.activeLists[info.ID].Front()
	if head == nil {
		head = h.createSmallPageBlock(info)
	}
	blockIdx := head.takeSmallBlock(info)
	if head.isFullOfSmallBlocks(info) {
		h.activeLists[info.ID].Remove(head)
		head.alLinked = false
	}
	return blockAddress(h.shared, head, blockIdx, info), info.BlockSize
}

func (h *Heap) createSmallPageBlock(info sizeclass.Info) *PageBlockHeader {
	head := h.allocatePageBlockAcrossOwned(info.PageBlockPages, Small)
	if head == nil {
		spb := h.reserveNewSPB(1, 0)
		head = spb.AllocatePageBlock(info.PageBlockPages, Small)
		fault.AssertAlways(head != nil, "heap: fresh SPB cannot host a %d-page Small page block", info.PageBlockPages)
	}
	head.configureSmallBlocks(info)
	h.activeLists[info.ID].PushFront(head)
	head.alLinked = true
	return head
}

func (h *Heap) allocateMedium(size int) (uintptr, int) {
	pages := ceilDiv(size, vmem.PageSize)
	head := h.allocatePageBlockAcrossOwned(pages, Medium)
	if head == nil {
		spb := h.reserveNewSPB(1, 0)
		head = spb.AllocatePageBlock(pages, Medium)
		fault.AssertAlways(head != nil, "heap: fresh SPB cannot host a %d-page Medium page block", pages)
	}
	base := h.shared.layout.Superpage(head.spb.superpageNum) + uintptr(head.idx)*vmem.PageSize
	return base, pages * vmem.PageSize
}

func (h *Heap) allocateHuge(size int) (uintptr, int) {
	neededPages := ceilDiv(size, vmem.PageSize)
	superpageCount := uint64(ceilDiv(neededPages+HeaderPageCount, vmem.PagesPerSuperpage))
	spb := h.reserveNewSPB(superpageCount, neededPages)
	base := h.shared.layout.Superpage(spb.superpageNum) + uintptr(spb.HugeAllocPageIndex())*vmem.PageSize
	return base, neededPages * vmem.PageSize
}

func (h *Heap) allocatePageBlockAcrossOwned(pages int, typ MemoryType) *PageBlockHeader {
	for _, spb := range h.owned {
		if head := spb.AllocatePageBlock(pages, typ); head != nil {
			return head
		}
	}
	return nil
}

func (h *Heap) reserveNewSPB(count uint64, hugeAllocPageCount int) *SuperpageBlock {
	spb := h.shared.reserveSuperpageBlock(count, hugeAllocPageCount)
	spb.setInitialOwner(h)
	h.owned = append(h.owned, spb)
	return spb
}

func (h *Heap) unlinkOwned(spb *SuperpageBlock) {
	for i, o := range h.owned {
		if o == spb {
			h.owned[i] = h.owned[len(h.owned)-1]
			h.owned = h.owned[:len(h.owned)-1]
			return
		}
	}
	fault.Fatalf("heap: releasing an SPB this heap does not own")
}

// Deallocate frees a block previously returned by Allocate on this or any
// other Heap sharing the same Shared state (§4.4 "Deallocation").
func (h *Heap) Deallocate(ptr uintptr) {
	h.drainRemoteInbox()

	spb, pageIdx, inHuge := h.resolve(ptr)
	owner := h.ensureOwnerAdopted(spb)

	if owner != h {
		blk := &UnusedBlock{spb: spb, addr: ptr}
		if !inHuge {
			if pbh := spb.PageBlockHeaderFor(pageIdx); pbh.typ == Small {
				info := sizeclass.Table[pbh.sizeClassID]
				blk.pageBlock = pbh
				blk.blockIdx = blockIndexFor(h.shared, pbh, ptr, info)
			}
		}
		owner.remoteInbox.Push(blk)
		return
	}

	if !inHuge {
		if pbh := spb.PageBlockHeaderFor(pageIdx); pbh.typ == Small {
			info := sizeclass.Table[pbh.sizeClassID]
			h.freeSmall(spb, pbh, blockIndexFor(h.shared, pbh, ptr, info))
			return
		}
	}
	h.freeNonSmall(spb, pageIdx, inHuge)
}

func (h *Heap) ensureOwnerAdopted(spb *SuperpageBlock) *Heap {
	if owner := spb.Owner(); owner != nil {
		return owner
	}
	if spb.Adopt(h) {
		h.adoptSPB(spb)
		return h
	}
	owner := spb.Owner()
	fault.AssertAlways(owner != nil, "heap: lost adoption race but owner still unset")
	return owner
}

func (h *Heap) adoptSPB(spb *SuperpageBlock) {
	h.owned = append(h.owned, spb)
	spb.ForEachRunHead(func(pbh *PageBlockHeader) {
		if pbh.typ != Small {
			return
		}
		info := sizeclass.Table[pbh.sizeClassID]
		if !pbh.isFullOfSmallBlocks(info) && !pbh.isEmptyOfSmallBlocks(info) {
			h.activeLists[info.ID].PushFront(pbh)
			pbh.alLinked = true
		}
	})
}

func (h *Heap) freeSmall(spb *SuperpageBlock, pbh *PageBlockHeader, blockIdx int) {
	info := sizeclass.Table[pbh.sizeClassID]
	wasFull := pbh.isFullOfSmallBlocks(info)
	pbh.putSmallBlock(blockIdx, info)

	if pbh.isEmptyOfSmallBlocks(info) {
		if pbh.alLinked {
			h.activeLists[pbh.sizeClassID].Remove(pbh)
			pbh.alLinked = false
		}
		spb.FreePageBlock(pbh)
		h.maybeReleaseSPB(spb)
		return
	}
	if wasFull {
		h.activeLists[pbh.sizeClassID].PushFront(pbh)
		pbh.alLinked = true
	}
}

func (h *Heap) freeNonSmall(spb *SuperpageBlock, pageIdx int, inHuge bool) {
	if inHuge {
		// Superpage 1's own capacity is capped at PagesPerSuperpage even when
		// the huge allocation spans further superpages (hugeAllocPageIndex can
		// run past PagesPerSuperpage when its page count is an exact multiple
		// of it) — mirrors the available clamp in newSuperpageBlock. Comparing
		// against the clamped capacity, not hugeAllocPageIndex directly, is
		// what distinguishes "the huge alloc owns none of superpage 1" from
		// "superpage 1 has nothing else live in it"; the two coincide only
		// when the clamp doesn't bite.
		firstSuperpageCapacity := spb.hugeAllocPageIndex
		if firstSuperpageCapacity > vmem.PagesPerSuperpage {
			firstSuperpageCapacity = vmem.PagesPerSuperpage
		}
		allFirstSuperpageFree := spb.unused.Size() == firstSuperpageCapacity-HeaderPageCount
		if allFirstSuperpageFree {
			h.releaseSPBFully(spb)
			return
		}
		oldCount := spb.SuperpageCount()
		spb.DestroyHugeAlloc()
		h.shared.trimHugeTail(spb, oldCount)
		return
	}
	pbh := spb.PageBlockHeaderFor(pageIdx)
	fault.Assert(pbh.typ == Medium, "heap: freeNonSmall on a %v page block", pbh.typ)
	spb.FreePageBlock(pbh)
	h.maybeReleaseSPB(spb)
}

func (h *Heap) maybeReleaseSPB(spb *SuperpageBlock) {
	if spb.IsFullyUnused() {
		h.releaseSPBFully(spb)
	}
}

func (h *Heap) releaseSPBFully(spb *SuperpageBlock) {
	h.unlinkOwned(spb)
	h.shared.releaseSuperpageBlock(spb)
}

// drainRemoteInbox processes every block other goroutines have pushed to
// this heap since the last drain. Draining an empty inbox is a no-op
// (§8 Laws, "idempotent drain").
func (h *Heap) drainRemoteInbox() {
	for n := h.remoteInbox.TakeAll(); n != nil; {
		next := n.next
		h.processRemoteFree(n)
		n = next
	}
}

func (h *Heap) processRemoteFree(blk *UnusedBlock) {
	if blk.pageBlock != nil {
		h.freeSmall(blk.spb, blk.pageBlock, blk.blockIdx)
		return
	}
	pageIdx, inHuge := h.classifyAddr(blk.spb, blk.addr)
	h.freeNonSmall(blk.spb, pageIdx, inHuge)
}

// Close is the thread-exit hook (§4.4 "Thread exit"): it drains the inbox
// one last time and disowns every SPB this heap owns, unlinking their
// Small page blocks from the active lists first. The SPBs themselves stay
// reserved and mapped; whoever frees into them next adopts them.
func (h *Heap) Close() {
	h.drainRemoteInbox()
	for _, spb := range h.owned {
		spb.ForEachRunHead(func(pbh *PageBlockHeader) {
			if pbh.typ == Small && pbh.alLinked {
				h.activeLists[pbh.sizeClassID].Remove(pbh)
				pbh.alLinked = false
			}
		})
		spb.Disown()
	}
	h.owned = nil
}

// resolve locates the SPB containing addr, and whether addr falls in that
// SPB's huge allocation.
func (h *Heap) resolve(addr uintptr) (spb *SuperpageBlock, pageIdx int, inHuge bool) {
	superpageNum := h.shared.layout.SuperpageNum(addr)
	start := h.shared.tracker.SequenceStart(superpageNum)
	spb = h.shared.lookupSPB(start)
	pageIdx, inHuge = h.classifyAddr(spb, addr)
	return
}

func (h *Heap) classifyAddr(spb *SuperpageBlock, addr uintptr) (pageIdx int, inHuge bool) {
	base := h.shared.layout.Superpage(spb.superpageNum)
	logical := int((addr - base) / vmem.PageSize)
	if logical >= vmem.PagesPerSuperpage {
		return -1, true
	}
	return logical, spb.InHugeAlloc(logical)
}

func blockAddress(s *Shared, pbh *PageBlockHeader, blockIdx int, info sizeclass.Info) uintptr {
	base := s.layout.Superpage(pbh.spb.superpageNum) + uintptr(pbh.idx)*vmem.PageSize
	return base + uintptr(blockIdx*info.BlockSize)
}

// blockIndexFor recovers a cell's block index from an address, rounding
// down to the block boundary — intentional, so interior pointers into an
// allocated small cell still free the whole cell (§4.3).
func blockIndexFor(s *Shared, pbh *PageBlockHeader, addr uintptr, info sizeclass.Info) int {
	base := s.layout.Superpage(pbh.spb.superpageNum) + uintptr(pbh.idx)*vmem.PageSize
	return int(addr-base) / info.BlockSize
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }
