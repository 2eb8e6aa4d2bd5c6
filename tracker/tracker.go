// Package tracker implements the Superpage Tracker (C3, spec.md §4.1): a
// concurrent bitmap reserving and releasing superpage sequences inside a
// node's local interval.
//
// Two parallel arrays of atomic words encode the state of every superpage:
// mapping_word has the bit set iff the superpage is reserved, and
// sequence_word has the bit set iff the superpage is part of a sequence but
// is not the first superpage of it. The first superpage of any reserved
// run is therefore the unique position with mapping bit set and sequence
// bit clear.
package tracker

import (
	"sync/atomic"
	"unsafe"

	"github.com/givy-go/allocator/bitmap"
	"github.com/givy-go/allocator/internal/fault"
	"github.com/givy-go/allocator/vmem"
)

// Range is a half-open [First, Last) span of superpage numbers.
type Range struct {
	First uint64
	Last  uint64
}

// Len reports the number of superpages the range spans.
func (r Range) Len() uint64 { return r.Last - r.First }

// Tracker is the concurrent superpage bitmap. Acquire/Release/Trim/
// SequenceStart may all be called concurrently; calling Release twice for
// the same range, or concurrently with another Release of an overlapping
// range, is undefined (the caller is the unique owner of what it
// releases), matching spec.md §4.1's failure semantics.
type Tracker struct {
	tableSize uint64
	mapping   []atomic.Uint64
	sequence  []atomic.Uint64
}

// New builds a Tracker covering superpageCount superpages, using bootstrap
// to carve the backing bitmap words (C2, spec.md §6) before the main
// allocator is otherwise usable.
func New(bootstrap *vmem.Bootstrap, superpageCount uint64) *Tracker {
	tableSize := divideUp(superpageCount, bitmap.Bits)
	return &Tracker{
		tableSize: tableSize,
		mapping:   allocWords(bootstrap, tableSize),
		sequence:  allocWords(bootstrap, tableSize),
	}
}

func allocWords(bootstrap *vmem.Bootstrap, n uint64) []atomic.Uint64 {
	buf := bootstrap.Allocate(uintptr(n)*8, 8)
	return unsafe.Slice((*atomic.Uint64)(unsafe.Pointer(&buf[0])), n)
}

func divideUp(a, b uint64) uint64 { return (a + b - 1) / b }

// index locates a superpage number within the word arrays.
type index struct {
	word uint64
	bit  uint
}

func indexOf(superpageNum uint64) index {
	return index{word: superpageNum / bitmap.Bits, bit: uint(superpageNum % bitmap.Bits)}
}

func (i index) superpageNum() uint64 { return i.word*bitmap.Bits + uint64(i.bit) }

func (i index) next() index {
	if i.bit == bitmap.Bits-1 {
		return index{word: i.word + 1, bit: 0}
	}
	return index{word: i.word, bit: i.bit + 1}
}

func (i index) nextWordFirstBit() index { return index{word: i.word + 1, bit: 0} }

func (i index) prevWordLastBit() index {
	fault.Assert(i.word > 0, "tracker: prevWordLastBit at word 0")
	return index{word: i.word - 1, bit: bitmap.Bits - 1}
}

func (i index) less(o index) bool {
	if i.word != o.word {
		return i.word < o.word
	}
	return i.bit < o.bit
}
func (i index) lessEq(o index) bool { return i == o || i.less(o) }

// Acquire reserves count consecutive superpages somewhere inside search,
// returning the first superpage number of the reserved run. Running out of
// space is fatal, matching the "out of space is fatal; abort" error
// taxonomy of spec.md §7.
func (t *Tracker) Acquire(count uint64, search Range) uint64 {
	fault.AssertAlways(count > 0, "tracker: Acquire count must be positive")

	searchAt := indexOf(search.First)
	searchEnd := indexOf(search.Last)

	for searchAt.less(searchEnd) {
		c := t.mapping[searchAt.word].Load()

	continueNoLoad:
		if c == bitmap.Ones {
			searchAt = searchAt.nextWordFirstBit()
			continue
		}

		limit := uint(bitmap.Bits)
		if searchAt.word == searchEnd.word {
			limit = searchEnd.bit
		}
		if uint64(searchAt.bit)+count <= uint64(limit) {
			pos := bitmap.FindZeroSubsequence(c, uint(count), searchAt.bit, limit)
			if pos < bitmap.Bits {
				locStart := index{word: searchAt.word, bit: pos}
				locEnd := index{word: searchAt.word, bit: pos + uint(count)}
				if !t.setBits(locStart, c, locEnd, bitmap.Zeros) {
					goto retrySameWord
				}
				return locStart.superpageNum()
			}
		}

		{
			msbZeros := bitmap.CountMSBZeros(c)
			if rem := bitmap.Bits - searchAt.bit; msbZeros > rem {
				msbZeros = rem
			}
			if msbZeros > 0 {
				firstCellExpected := c
				locStart := index{word: searchAt.word, bit: bitmap.Bits - msbZeros}
				locEnd := indexOf(locStart.superpageNum() + count)
				lastCellBits := bitmap.WindowBound(0, locEnd.bit)
				if !locEnd.less(searchEnd) {
					break
				}
				found := true
				for idx := locStart.word + 1; idx < locEnd.word; idx++ {
					cc := t.mapping[idx].Load()
					if cc != bitmap.Zeros {
						searchAt = index{word: idx, bit: 0}
						c = cc
						found = false
						goto continueNoLoad
					}
				}
				if found && lastCellBits != bitmap.Zeros {
					cc := t.mapping[locEnd.word].Load()
					if cc&lastCellBits != bitmap.Zeros {
						searchAt = locEnd
						c = cc
						goto continueNoLoad
					}
					if t.setBits(locStart, firstCellExpected, locEnd, cc) {
						return locStart.superpageNum()
					}
					searchAt = locStart
					continue
				}
				if found {
					if t.setBits(locStart, firstCellExpected, locEnd, bitmap.Zeros) {
						return locStart.superpageNum()
					}
					searchAt = locStart
					continue
				}
			}
		}

		searchAt = searchAt.nextWordFirstBit()
		continue

	retrySameWord:
		continue
	}

	fault.Fatalf("tracker: out of space acquiring %d superpages in [%d,%d)", count, search.First, search.Last)
	return 0
}

// setBits implements the original's combined set_bits: set mapping bits,
// then (only on success) OR in the sequence bits for everything but the
// run's first superpage.
func (t *Tracker) setBits(locStart index, expectedStart uint64, locEnd index, expectedEnd uint64) bool {
	if !t.setMappingBits(locStart, expectedStart, locEnd, expectedEnd) {
		return false
	}
	t.setSequenceBits(locStart.next(), locEnd)
	return true
}

func (t *Tracker) setMappingBits(locStart index, expectedStart uint64, locEnd index, expectedEnd uint64) bool {
	if locStart.word == locEnd.word {
		bits := bitmap.WindowBound(locStart.bit, locEnd.bit)
		return t.mapping[locStart.word].CompareAndSwap(expectedStart, expectedStart|bits)
	}

	startBits := bitmap.WindowBound(locStart.bit, bitmap.Bits)
	if !t.mapping[locStart.word].CompareAndSwap(expectedStart, expectedStart|startBits) {
		return false
	}

	idx := locStart.word + 1
	for ; idx < locEnd.word; idx++ {
		if !t.mapping[idx].CompareAndSwap(bitmap.Zeros, bitmap.Ones) {
			break
		}
	}

	if idx == locEnd.word {
		endBits := bitmap.WindowBound(0, locEnd.bit)
		if endBits == bitmap.Zeros {
			return true
		}
		if t.mapping[locEnd.word].CompareAndSwap(expectedEnd, expectedEnd|endBits) {
			return true
		}
	}

	// Roll back everything this attempt set.
	for clean := locStart.word + 1; clean < idx; clean++ {
		t.mapping[clean].Store(bitmap.Zeros)
	}
	t.mapping[locStart.word].And(^startBits)
	return false
}

func (t *Tracker) setSequenceBits(locStart, locEnd index) {
	fault.Assert(locStart.lessEq(locEnd), "tracker: setSequenceBits start>end")
	if locStart.word == locEnd.word {
		if locStart.bit < locEnd.bit {
			bits := bitmap.WindowBound(locStart.bit, locEnd.bit)
			t.sequence[locStart.word].Or(bits)
		}
		return
	}
	firstBits := bitmap.WindowBound(locStart.bit, bitmap.Bits)
	lastBits := bitmap.WindowBound(0, locEnd.bit)
	t.sequence[locStart.word].Or(firstBits)
	for i := locStart.word + 1; i < locEnd.word; i++ {
		t.sequence[i].Store(bitmap.Ones)
	}
	if lastBits != bitmap.Zeros {
		t.sequence[locEnd.word].Or(lastBits)
	}
}

func (t *Tracker) clearSequenceBits(locStart, locEnd index) {
	fault.Assert(locStart.lessEq(locEnd), "tracker: clearSequenceBits start>end")
	if locStart.word == locEnd.word {
		if locStart.bit < locEnd.bit {
			bits := bitmap.WindowBound(locStart.bit, locEnd.bit)
			t.sequence[locStart.word].And(^bits)
		}
		return
	}
	firstBits := bitmap.WindowBound(locStart.bit, bitmap.Bits)
	lastBits := bitmap.WindowBound(0, locEnd.bit)
	t.sequence[locStart.word].And(^firstBits)
	for i := locStart.word + 1; i < locEnd.word; i++ {
		t.sequence[i].Store(bitmap.Zeros)
	}
	if lastBits != bitmap.Zeros {
		t.sequence[locEnd.word].And(^lastBits)
	}
}

func (t *Tracker) clearMappingBits(locStart, locEnd index) {
	fault.Assert(locStart.less(locEnd), "tracker: clearMappingBits start>=end")
	if locStart.word == locEnd.word {
		bits := bitmap.WindowBound(locStart.bit, locEnd.bit)
		t.mapping[locStart.word].And(^bits)
		return
	}
	firstBits := bitmap.WindowBound(locStart.bit, bitmap.Bits)
	lastBits := bitmap.WindowBound(0, locEnd.bit)
	t.mapping[locStart.word].And(^firstBits)
	for i := locStart.word + 1; i < locEnd.word; i++ {
		t.mapping[i].Store(bitmap.Zeros)
	}
	if lastBits != bitmap.Zeros {
		t.mapping[locEnd.word].And(^lastBits)
	}
}

// Release returns a previously acquired run to the tracker. The caller
// must be the range's unique owner; concurrent Release of the same range
// from two goroutines is undefined.
func (t *Tracker) Release(r Range) {
	locStart := indexOf(r.First)
	locEnd := indexOf(r.Last)
	fault.Assert(locEnd.word < t.tableSize, "tracker: release range out of bounds")
	t.clearSequenceBits(locStart.next(), locEnd)
	t.clearMappingBits(locStart, locEnd)
}

// Trim reduces a superpage sequence to just its first superpage, releasing
// superpages [First+1, Last).
func (t *Tracker) Trim(r Range) {
	fault.Assert(r.Len() > 1, "tracker: Trim requires a sequence of more than one superpage")
	locStart := indexOf(r.First)
	locEnd := indexOf(r.Last)
	fault.Assert(locEnd.word < t.tableSize, "tracker: trim range out of bounds")
	t.clearSequenceBits(locStart.next(), locEnd)
	t.clearMappingBits(locStart.next(), locEnd)
}

// SequenceStart returns the first superpage number of the run containing
// superpageNum, by walking the sequence bitmap backwards to the nearest
// clear bit.
func (t *Tracker) SequenceStart(superpageNum uint64) uint64 {
	loc := indexOf(superpageNum)
	fault.Assert(loc.word < t.tableSize, "tracker: SequenceStart out of bounds")
	for {
		c := t.sequence[loc.word].Load()
		prevZero := bitmap.FindPreviousZero(c, loc.bit)
		if prevZero != bitmap.Bits {
			return index{word: loc.word, bit: prevZero}.superpageNum()
		}
		loc = loc.prevWordLastBit()
	}
}
