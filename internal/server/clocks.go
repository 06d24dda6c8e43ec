package server

import "chess-server/internal/engine"

// Clocks tracks both players' remaining time in milliseconds. LastMoveAtMS is
// zero until the game starts; after that it always holds the instant the
// previous move (or the game start) was stamped, which is the moment the
// side to move began spending time.
type Clocks struct {
	WhiteMS      int64
	BlackMS      int64
	IncrementMS  int64
	LastMoveAtMS int64
}

func (c *Clocks) remaining(color engine.Color) int64 {
	if color == engine.White {
		return c.WhiteMS
	}
	return c.BlackMS
}

func (c *Clocks) setRemaining(color engine.Color, ms int64) {
	if color == engine.White {
		c.WhiteMS = ms
	} else {
		c.BlackMS = ms
	}
}

// ApplyMove charges the mover for elapsed time and credits the Fischer
// increment, in that order. firstMove moves carry no deduction: white's clock
// only starts counting after move one. Returns false when the mover flagged;
// the flagged clock is clamped to zero.
func (c *Clocks) ApplyMove(mover engine.Color, nowMS int64, firstMove bool) bool {
	if !firstMove {
		elapsed := nowMS - c.LastMoveAtMS
		left := c.remaining(mover) - elapsed
		if left <= 0 {
			c.setRemaining(mover, 0)
			c.LastMoveAtMS = nowMS
			return false
		}
		c.setRemaining(mover, left+c.IncrementMS)
	}

	// Stamp even on the first move so the opponent's clock starts ticking.
	c.LastMoveAtMS = nowMS
	return true
}

// Snapshot returns the stored values verbatim. Used after a move, when both
// values are settled.
func (c *Clocks) Snapshot() *ClockTimes {
	return &ClockTimes{W: c.WhiteMS, B: c.BlackMS}
}

// LiveSnapshot returns what an observer should display right now: the side to
// move is charged for the time elapsed since the last stamp (clamped at
// zero), the other side's value is reported verbatim.
func (c *Clocks) LiveSnapshot(sideToMove engine.Color, nowMS int64) *ClockTimes {
	snap := c.Snapshot()

	live := c.remaining(sideToMove)
	if c.LastMoveAtMS > 0 {
		live -= nowMS - c.LastMoveAtMS
	}
	if live < 0 {
		live = 0
	}

	if sideToMove == engine.White {
		snap.W = live
	} else {
		snap.B = live
	}
	return snap
}
