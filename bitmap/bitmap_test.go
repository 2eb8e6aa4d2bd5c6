package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowBound(t *testing.T) {
	assert.Equal(t, Word(0b0000_1110), WindowBound(1, 4))
	assert.Equal(t, Zeros, WindowBound(5, 5))
	assert.Equal(t, Ones, WindowBound(0, Bits))
}

func TestIsSet(t *testing.T) {
	w := Word(0b1010)
	assert.False(t, IsSet(w, 0))
	assert.True(t, IsSet(w, 1))
	assert.False(t, IsSet(w, 2))
	assert.True(t, IsSet(w, 3))
}

func TestCountMSBZeros(t *testing.T) {
	assert.Equal(t, uint(64), CountMSBZeros(Zeros))
	assert.Equal(t, uint(0), CountMSBZeros(Ones))
	assert.Equal(t, uint(63), CountMSBZeros(Word(1)))
}

func TestFindZeroSubsequence_FindsExactRun(t *testing.T) {
	// bits 4..7 are zero, everything else is set.
	w := Ones &^ WindowBound(4, 8)
	got := FindZeroSubsequence(w, 4, 0, Bits)
	assert.Equal(t, uint(4), got)
}

func TestFindZeroSubsequence_RespectsSearchWindow(t *testing.T) {
	// A run exists, but only outside [0, 10).
	require.Equal(t, uint(Bits), FindZeroSubsequence(Ones&^WindowBound(20, 30), 10, 0, 10))
}

func TestFindZeroSubsequence_NoRoomReturnsBits(t *testing.T) {
	assert.Equal(t, uint(Bits), FindZeroSubsequence(Zeros, 65, 0, Bits))
}

func TestFindPreviousZero(t *testing.T) {
	// bit 5 clear, everything else in [0,10] set.
	w := Ones &^ (Word(1) << 5)
	assert.Equal(t, uint(5), FindPreviousZero(w, 10))
}

func TestFindPreviousZero_AllSetReturnsBits(t *testing.T) {
	assert.Equal(t, uint(Bits), FindPreviousZero(Ones, 10))
}

func TestFindPreviousZero_PosItselfIsZero(t *testing.T) {
	assert.Equal(t, uint(7), FindPreviousZero(Zeros, 7))
}
