package heap

import (
	"sync"

	"github.com/givy-go/allocator/gas"
	"github.com/givy-go/allocator/internal/fault"
	"github.com/givy-go/allocator/internal/xlog"
	"github.com/givy-go/allocator/tracker"
	"github.com/givy-go/allocator/vmem"
)

// Shared is the state every Heap in one node's process shares: the GAS
// layout, the superpage tracker, the OS mapper, and the registry that
// substitutes for the original's in-band SPB placement (§6 "MainHeap").
//
// In the C++ original, a SuperpageBlock's struct lives at the start of its
// first superpage, so resolving an address to its SPB is a pointer-mask
// operation. Go cannot safely place a live, GC-traced struct (it holds a
// *Heap and slices) inside raw mmap'd bytes the allocator itself hands out
// to callers — nothing would keep the GC from believing that region is
// free-form data. Shared keeps a registry instead, keyed by the SPB's first
// superpage number, exactly mirroring what sequence_start already computes
// (see DESIGN.md, "SPB registry vs in-band placement").
type Shared struct {
	layout  gas.Layout
	tracker *tracker.Tracker
	mapper  vmem.Mapper

	mu       sync.RWMutex
	registry map[uint64]*SuperpageBlock
}

// NewShared wires the GAS layout, tracker and OS mapper together. trk must
// already be sized to cover layout's total superpage count across every
// node (gas.Layout.TotalSuperpages), since superpage numbers are global
// GAS offsets, not local-node-relative ones — Acquire/Release calls still
// only ever touch this node's own localSuperpageRange slice of it.
func NewShared(layout gas.Layout, trk *tracker.Tracker, mapper vmem.Mapper) *Shared {
	return &Shared{
		layout:   layout,
		tracker:  trk,
		mapper:   mapper,
		registry: make(map[uint64]*SuperpageBlock),
	}
}

// NewHeap creates a fresh, empty Thread-Local Heap bound to this shared
// allocator state. Callers obtain one explicit Heap handle per goroutine
// that will allocate/deallocate (Go has no thread-local storage to hang
// one off automatically; see DESIGN.md, "explicit Heap handles").
func (s *Shared) NewHeap() *Heap { return newHeapInternal(s) }

// localSuperpageRange returns the tracker search interval for this node.
func (s *Shared) localSuperpageRange() tracker.Range {
	first, last := s.layout.LocalSuperpageRange()
	return tracker.Range{First: first, Last: last}
}

// reserveSuperpageBlock acquires and maps a fresh run of superpageCount
// superpages and lays it out with a huge allocation of hugeAllocPageCount
// pages at its tail (0 for none).
func (s *Shared) reserveSuperpageBlock(superpageCount uint64, hugeAllocPageCount int) *SuperpageBlock {
	first := s.tracker.Acquire(superpageCount, s.localSuperpageRange())
	base := s.layout.Superpage(first)
	length := uintptr(superpageCount) * vmem.SuperpageSize
	if _, err := s.mapper.Map(base, length); err != nil {
		fault.Fatalf("heap: map %d superpages at %#x: %v", superpageCount, base, err)
	}
	spb := newSuperpageBlock(first, superpageCount, hugeAllocPageCount)

	s.mu.Lock()
	s.registry[first] = spb
	s.mu.Unlock()

	xlog.L().Debug().Uint64("superpage", first).Uint64("count", superpageCount).
		Msg("reserved superpage block")
	return spb
}

// releaseSuperpageBlock unmaps and releases spb's entire current range back
// to the tracker, and drops it from the registry.
func (s *Shared) releaseSuperpageBlock(spb *SuperpageBlock) {
	base := s.layout.Superpage(spb.superpageNum)
	length := uintptr(spb.superpageCount) * vmem.SuperpageSize
	if err := s.mapper.Unmap(base, length); err != nil {
		fault.Fatalf("heap: unmap %#x len %d: %v", base, length, err)
	}
	s.tracker.Release(tracker.Range{First: spb.superpageNum, Last: spb.superpageNum + spb.superpageCount})

	s.mu.Lock()
	delete(s.registry, spb.superpageNum)
	s.mu.Unlock()
}

// trimHugeTail releases superpages [spb.superpageNum+1, spb.superpageNum+oldCount)
// after DestroyHugeAlloc has already reduced spb to a single superpage.
func (s *Shared) trimHugeTail(spb *SuperpageBlock, oldCount uint64) {
	fault.Assert(spb.superpageCount == 1, "heap: trimHugeTail called before DestroyHugeAlloc")
	if oldCount <= 1 {
		return
	}
	base := s.layout.Superpage(spb.superpageNum + 1)
	length := uintptr(oldCount-1) * vmem.SuperpageSize
	if err := s.mapper.Unmap(base, length); err != nil {
		fault.Fatalf("heap: unmap huge tail at %#x len %d: %v", base, length, err)
	}
	s.tracker.Trim(tracker.Range{First: spb.superpageNum, Last: spb.superpageNum + oldCount})
}

// lookupSPB resolves a sequence-start superpage number to its SuperpageBlock.
func (s *Shared) lookupSPB(sequenceStart uint64) *SuperpageBlock {
	s.mu.RLock()
	spb := s.registry[sequenceStart]
	s.mu.RUnlock()
	fault.AssertAlways(spb != nil, "heap: no SuperpageBlock registered for sequence start %d", sequenceStart)
	return spb
}
