package heap

import "github.com/givy-go/allocator/internal/fault"

// quickListExactBuckets is the number of exact-size-class lists the
// unused-quicklist keeps before falling back to a single sorted overflow
// bucket (original_source/intrusive_list.h's QuickList<T, 10>).
const quickListExactBuckets = 10

// unusedQuickList is the size-indexed structure of Unused page-block runs
// inside one SuperpageBlock (§4.2 "Unused-Quicklist"): exact_size_slot_nb
// buckets for run lengths 1..B pages, plus one overflow bucket (sorted
// ascending by run length) for anything longer.
type unusedQuickList struct {
	exact    [quickListExactBuckets]pbList
	overflow pbList
	stored   int // cumulative page count held across all buckets
}

func newUnusedQuickList() unusedQuickList {
	var q unusedQuickList
	for i := range q.exact {
		q.exact[i] = newPBList((*PageBlockHeader).quickLinks)
	}
	q.overflow = newPBList((*PageBlockHeader).quickLinks)
	return q
}

// Insert adds an Unused run's head record to the quicklist.
func (q *unusedQuickList) Insert(h *PageBlockHeader) {
	fault.Assert(h.runLength > 0, "heap: quicklist insert of zero-length run")
	q.stored += h.runLength
	if h.runLength <= quickListExactBuckets {
		q.exact[h.runLength-1].PushFront(h)
		return
	}
	for it := q.overflow.Front(); it != nil; it = it.ql.next {
		if it.runLength >= h.runLength {
			q.overflow.InsertBefore(it, h)
			return
		}
	}
	q.overflow.PushBack(h)
}

// Take removes and returns the smallest run of at least minSize pages, or
// nil if none exists.
func (q *unusedQuickList) Take(minSize int) *PageBlockHeader {
	fault.Assert(minSize > 0, "heap: quicklist take of non-positive size")
	for n := minSize; n <= quickListExactBuckets; n++ {
		if h := q.exact[n-1].PopFront(); h != nil {
			q.stored -= n
			return h
		}
	}
	for it := q.overflow.Front(); it != nil; it = it.ql.next {
		if it.runLength >= minSize {
			q.overflow.Remove(it)
			q.stored -= it.runLength
			return it
		}
	}
	return nil
}

// Remove takes a specific run out of the quicklist (used when coalescing
// absorbs a neighbour that is already linked in).
func (q *unusedQuickList) Remove(h *PageBlockHeader) {
	q.stored -= h.runLength
	if h.runLength <= quickListExactBuckets {
		q.exact[h.runLength-1].Remove(h)
	} else {
		q.overflow.Remove(h)
	}
}

// Size returns the cumulated page count currently held in the quicklist.
func (q *unusedQuickList) Size() int { return q.stored }
