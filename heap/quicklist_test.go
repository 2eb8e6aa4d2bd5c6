package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRun(idx, length int) *PageBlockHeader {
	h := &PageBlockHeader{}
	h.typ = Unused
	h.head = h
	h.idx = idx
	h.runLength = length
	return h
}

func TestQuickList_ExactBucketRoundTrip(t *testing.T) {
	q := newUnusedQuickList()
	r := newRun(0, 3)
	q.Insert(r)
	assert.Equal(t, 3, q.Size())

	got := q.Take(3)
	require.Same(t, r, got)
	assert.Equal(t, 0, q.Size())
}

func TestQuickList_TakePrefersSmallestSufficientExactBucket(t *testing.T) {
	q := newUnusedQuickList()
	small := newRun(0, 2)
	big := newRun(10, 5)
	q.Insert(big)
	q.Insert(small)

	got := q.Take(2)
	assert.Same(t, small, got)
}

func TestQuickList_OverflowBucketStaysSortedAscending(t *testing.T) {
	q := newUnusedQuickList()
	q.Insert(newRun(0, 50))
	q.Insert(newRun(100, 20))
	q.Insert(newRun(200, 35))

	got := q.Take(20)
	assert.Equal(t, 20, got.runLength)

	got = q.Take(20)
	assert.Equal(t, 35, got.runLength)

	got = q.Take(20)
	assert.Equal(t, 50, got.runLength)
}

func TestQuickList_TakeReturnsNilWhenNothingFits(t *testing.T) {
	q := newUnusedQuickList()
	q.Insert(newRun(0, 2))
	assert.Nil(t, q.Take(3))
}

func TestQuickList_RemoveWorksAcrossBothBucketKinds(t *testing.T) {
	q := newUnusedQuickList()
	exact := newRun(0, 4)
	overflow := newRun(10, 50)
	q.Insert(exact)
	q.Insert(overflow)

	q.Remove(exact)
	q.Remove(overflow)
	assert.Equal(t, 0, q.Size())
}
