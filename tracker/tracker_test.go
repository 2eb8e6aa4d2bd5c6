package tracker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givy-go/allocator/vmem"
)

func newTestTracker(t *testing.T, superpageCount uint64) *Tracker {
	t.Helper()
	var bootstrap vmem.Bootstrap
	return New(&bootstrap, superpageCount)
}

func TestAcquireRelease_RoundTrip(t *testing.T) {
	trk := newTestTracker(t, 128)
	full := Range{First: 0, Last: 128}

	first := trk.Acquire(4, full)
	trk.Release(Range{First: first, Last: first + 4})

	// The same range must be acquirable again once released.
	again := trk.Acquire(4, full)
	assert.Equal(t, first, again)
}

func TestAcquire_SequenceStartIdentifiesRunHead(t *testing.T) {
	trk := newTestTracker(t, 64)
	full := Range{First: 0, Last: 64}

	first := trk.Acquire(5, full)
	for num := first; num < first+5; num++ {
		assert.Equal(t, first, trk.SequenceStart(num), "superpage %d should resolve to run head %d", num, first)
	}
}

func TestAcquire_DoesNotOverlapConcurrentRuns(t *testing.T) {
	trk := newTestTracker(t, 256)
	full := Range{First: 0, Last: 256}

	const workers = 16
	const perWorker = 4
	results := make([]uint64, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = trk.Acquire(perWorker, full)
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, first := range results {
		for num := first; num < first+perWorker; num++ {
			require.False(t, seen[num], "superpage %d claimed by more than one Acquire", num)
			seen[num] = true
		}
	}
}

func TestTrim_KeepsOnlyFirstSuperpage(t *testing.T) {
	trk := newTestTracker(t, 64)
	full := Range{First: 0, Last: 64}

	first := trk.Acquire(6, full)
	trk.Trim(Range{First: first, Last: first + 6})

	// The tail superpages are free again; a fresh acquire of the same size
	// must be able to reuse them.
	next := trk.Acquire(5, Range{First: first + 1, Last: full.Last})
	assert.Equal(t, first+1, next)

	// The head superpage is still reserved and still resolves to itself.
	assert.Equal(t, first, trk.SequenceStart(first))
}

func TestAcquire_SpansMultipleWords(t *testing.T) {
	// A run of 70 superpages cannot fit in a single 64-bit tracker word, so
	// this exercises Acquire's multi-word CAS path (setMappingBits/
	// setSequenceBits looping across word boundaries), not just the
	// single-word FindZeroSubsequence branch every other test above uses.
	trk := newTestTracker(t, 256)
	full := Range{First: 0, Last: 256}

	first := trk.Acquire(70, full)
	for num := first; num < first+70; num++ {
		assert.Equal(t, first, trk.SequenceStart(num), "superpage %d should resolve to run head %d", num, first)
	}

	// The remaining space is still acquirable and does not overlap the
	// multi-word run just reserved.
	second := trk.Acquire(70, full)
	assert.False(t, second >= first && second < first+70, "second run %d overlaps first run [%d,%d)", second, first, first+70)

	trk.Release(Range{First: first, Last: first + 70})
	trk.Release(Range{First: second, Last: second + 70})
}

func TestAcquire_RunStartingMidWordCrossesIntoNextWord(t *testing.T) {
	// Occupy the first 60 bits of word 0 so the next run of more than 4
	// superpages must start mid-word and cross into word 1 via the
	// CountMSBZeros/msbZeros branch.
	trk := newTestTracker(t, 128)
	full := Range{First: 0, Last: 128}

	trk.Acquire(60, full) // fills bits [0,60) of word 0

	run := trk.Acquire(10, full)
	assert.Equal(t, uint64(60), run, "run should start at the first free bit and cross into word 1")
	for num := run; num < run+10; num++ {
		assert.Equal(t, run, trk.SequenceStart(num))
	}
}

func TestAcquire_ExhaustingRangeIsFatal(t *testing.T) {
	trk := newTestTracker(t, 4)
	full := Range{First: 0, Last: 4}
	trk.Acquire(4, full)

	assert.Panics(t, func() {
		trk.Acquire(1, full)
	})
}
