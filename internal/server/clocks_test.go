package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chess-server/internal/engine"
)

func TestClocksFirstMoveCarriesNoDeduction(t *testing.T) {
	assert := assert.New(t)

	clocks := NewClocksFor("1+2")
	clocks.LastMoveAtMS = 1000 // game start

	// White thinks for 30 seconds before move one; no charge, no increment.
	ok := clocks.ApplyMove(engine.White, 31000, true)
	assert.True(ok)
	assert.Equal(int64(60000), clocks.WhiteMS)
	assert.Equal(int64(60000), clocks.BlackMS)
	assert.Equal(int64(31000), clocks.LastMoveAtMS)
}

func TestClocksFischerIncrement(t *testing.T) {
	assert := assert.New(t)

	clocks := NewClocksFor("1+2")
	clocks.LastMoveAtMS = 1000

	// Move 1 (white, no deduction), move 2 two seconds later, move 3 three
	// seconds after that: 60000 - 3000 + 2000 = 59000.
	assert.True(clocks.ApplyMove(engine.White, 1000, true))
	assert.True(clocks.ApplyMove(engine.Black, 3000, false))
	assert.Equal(int64(60000), clocks.BlackMS) // -2000 +2000
	assert.True(clocks.ApplyMove(engine.White, 6000, false))
	assert.Equal(int64(59000), clocks.WhiteMS)
}

func TestClocksFlagFall(t *testing.T) {
	assert := assert.New(t)

	clocks := &Clocks{WhiteMS: 60000, BlackMS: 500, IncrementMS: 2000, LastMoveAtMS: 1000}

	// Black spends 2 seconds with 500ms on the clock. The increment must not
	// rescue an expired clock.
	ok := clocks.ApplyMove(engine.Black, 3000, false)
	assert.False(ok)
	assert.Equal(int64(0), clocks.BlackMS)
	assert.Equal(int64(60000), clocks.WhiteMS)
}

func TestClocksFlagFallExactlyZero(t *testing.T) {
	clocks := &Clocks{WhiteMS: 2000, BlackMS: 60000, LastMoveAtMS: 1000}

	// Elapsed time exactly equals the remaining time: flagged.
	ok := clocks.ApplyMove(engine.White, 3000, false)
	assert.False(t, ok)
	assert.Equal(t, int64(0), clocks.WhiteMS)
}

func TestClocksLiveSnapshotChargesSideToMove(t *testing.T) {
	assert := assert.New(t)

	clocks := &Clocks{WhiteMS: 60000, BlackMS: 55000, LastMoveAtMS: 1000}

	snap := clocks.LiveSnapshot(engine.White, 11000)
	assert.Equal(int64(50000), snap.W)
	assert.Equal(int64(55000), snap.B) // the waiting side is reported verbatim
}

func TestClocksLiveSnapshotClampsAtZero(t *testing.T) {
	clocks := &Clocks{WhiteMS: 60000, BlackMS: 1000, LastMoveAtMS: 1000}

	snap := clocks.LiveSnapshot(engine.Black, 60000)
	assert.Equal(t, int64(0), snap.B)
	assert.Equal(t, int64(60000), snap.W)
}
