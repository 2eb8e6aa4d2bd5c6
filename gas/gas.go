// Package gas implements the immutable global address space layout
// (spec.md §3 "GAS Layout"): a single contiguous interval partitioned into
// one sub-interval per node, plus the address/superpage-number conversions
// every other component builds on.
package gas

import (
	"fmt"

	"github.com/givy-go/allocator/config"
	"github.com/givy-go/allocator/internal/fault"
	"github.com/givy-go/allocator/vmem"
)

// Placement classifies an address relative to the GAS.
type Placement int

const (
	// Local means the address falls inside this node's local interval.
	Local Placement = iota
	// OtherNode means the address falls inside the GAS but in a
	// different node's interval (§9 Open Question 2). Nothing in this
	// module routes such addresses anywhere; Classify only reports them.
	OtherNode
	// OutOfRange means the address does not fall inside the GAS at all.
	OutOfRange
)

// Layout is the immutable-after-init GAS layout described in spec.md §3.
type Layout struct {
	start              uintptr
	superpagesPerNode  uint64
	nodeCount          int
	localNode          int
	localIntervalStart uintptr
	localIntervalEnd   uintptr
}

// New builds a Layout given an already-reserved GAS base address (as
// returned by a vmem.Mapper reservation) and the node configuration. New
// aligns start up to a superpage boundary; it does not check that the
// caller's reservation still covers the GAS after that rounding.
func New(start uintptr, cfg config.Layout) (Layout, error) {
	if err := cfg.Validate(); err != nil {
		return Layout{}, err
	}
	superpagesPerNode := (cfg.BytesPerNode + vmem.SuperpageSize - 1) / vmem.SuperpageSize
	alignedStart := alignUp(start, vmem.SuperpageSize)
	perNodeBytes := superpagesPerNode * vmem.SuperpageSize
	l := Layout{
		start:             alignedStart,
		superpagesPerNode: superpagesPerNode,
		nodeCount:         cfg.NodeCount,
		localNode:         cfg.LocalNode,
	}
	l.localIntervalStart = alignedStart + uintptr(uint64(cfg.LocalNode))*uintptr(perNodeBytes)
	l.localIntervalEnd = l.localIntervalStart + uintptr(perNodeBytes)
	return l, nil
}

func alignUp(v uintptr, align uint64) uintptr {
	a := uintptr(align)
	return (v + a - 1) &^ (a - 1)
}

// LocalInterval returns [start, end) of this node's slice of the GAS, the
// range every address returned by Allocate must lie within (§8 invariants).
func (l Layout) LocalInterval() (start, end uintptr) {
	return l.localIntervalStart, l.localIntervalEnd
}

// LocalSuperpageRange returns the local interval expressed as a superpage
// number range, for use as the tracker's search interval.
func (l Layout) LocalSuperpageRange() (first, last uint64) {
	first = uint64(l.localNode) * l.superpagesPerNode
	last = first + l.superpagesPerNode
	return
}

// SuperpagesPerNode returns the number of superpages in one node's
// interval.
func (l Layout) SuperpagesPerNode() uint64 { return l.superpagesPerNode }

// TotalSuperpages returns the number of superpages across the whole GAS,
// i.e. every node's interval combined (original_source/superpage_tracker.h's
// superpage_total = superpage_by_node * nb_node). The tracker's bitmap must
// be sized from this, not SuperpagesPerNode: superpage numbers handed to it
// (via Superpage/SuperpageNum) are global offsets into the whole GAS, not
// node-relative ones.
func (l Layout) TotalSuperpages() uint64 { return l.superpagesPerNode * uint64(l.nodeCount) }

// NodeCount returns the number of node intervals in the GAS.
func (l Layout) NodeCount() int { return l.nodeCount }

// LocalNode returns this process's node index.
func (l Layout) LocalNode() int { return l.localNode }

// Superpage converts a superpage number to its base address.
func (l Layout) Superpage(num uint64) uintptr {
	return l.start + uintptr(num)*vmem.SuperpageSize
}

// SuperpageNum converts an address to the superpage number containing it.
// The address must lie within the GAS.
func (l Layout) SuperpageNum(addr uintptr) uint64 {
	fault.Assert(addr >= l.start, "gas: address %#x below GAS start %#x", addr, l.start)
	return uint64((addr - l.start) / vmem.SuperpageSize)
}

// Classify reports where an address falls relative to the GAS and its node
// partitioning.
func (l Layout) Classify(addr uintptr) Placement {
	end := l.start + uintptr(uint64(l.nodeCount))*uintptr(l.superpagesPerNode)*vmem.SuperpageSize
	if addr < l.start || addr >= end {
		return OutOfRange
	}
	if addr >= l.localIntervalStart && addr < l.localIntervalEnd {
		return Local
	}
	return OtherNode
}

func (l Layout) String() string {
	return fmt.Sprintf("gas.Layout{start=%#x, superpagesPerNode=%d, nodeCount=%d, localNode=%d, local=[%#x,%#x)}",
		l.start, l.superpagesPerNode, l.nodeCount, l.localNode, l.localIntervalStart, l.localIntervalEnd)
}
