package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// testMatchmaker builds a matchmaker whose liveness and seating probes are
// backed by plain sets the test mutates directly.
func testMatchmaker() (*Matchmaker, map[string]bool, map[string]bool) {
	dead := make(map[string]bool)   // session → connection is gone
	seated := make(map[string]bool) // session → already in a room

	mm := NewMatchmaker("5+0",
		func(connID, session string) bool { return !dead[session] },
		func(session string) bool { return seated[session] },
	)
	return mm, dead, seated
}

func entry(session, tag string) QueueEntry {
	return QueueEntry{Session: session, Name: session, ConnID: "conn-" + session, Tag: tag}
}

func TestMatchmakerPairsSameTag(t *testing.T) {
	assert := assert.New(t)
	mm, _, _ := testMatchmaker()

	match, position, err := mm.Join(entry("a", "3+2"))
	assert.NoError(err)
	assert.Nil(match)
	assert.Equal(1, position)

	match, _, err = mm.Join(entry("b", "3+2"))
	assert.NoError(err)
	assert.NotNil(match)
	assert.Equal("3+2", match.TimeControl)

	sessions := map[string]bool{match.White.Session: true, match.Black.Session: true}
	assert.True(sessions["a"])
	assert.True(sessions["b"])
	assert.Equal(0, mm.QueuedCount())
}

func TestMatchmakerWildcardTakesSpecificTimeControl(t *testing.T) {
	assert := assert.New(t)
	mm, _, _ := testMatchmaker()

	_, _, err := mm.Join(entry("x", "3+2"))
	assert.NoError(err)

	// The wildcard joiner inherits the waiting player's time control.
	match, _, err := mm.Join(entry("y", TimeControlAny))
	assert.NoError(err)
	assert.NotNil(match)
	assert.Equal("3+2", match.TimeControl)
}

func TestMatchmakerSpecificFallsBackToWildcardQueue(t *testing.T) {
	assert := assert.New(t)
	mm, _, _ := testMatchmaker()

	_, _, err := mm.Join(entry("x", TimeControlAny))
	assert.NoError(err)

	match, _, err := mm.Join(entry("y", "10+5"))
	assert.NoError(err)
	assert.NotNil(match)
	assert.Equal("10+5", match.TimeControl)
}

func TestMatchmakerTwoWildcardsPlayDefault(t *testing.T) {
	assert := assert.New(t)
	mm, _, _ := testMatchmaker()

	_, _, err := mm.Join(entry("x", TimeControlAny))
	assert.NoError(err)

	match, _, err := mm.Join(entry("y", TimeControlAny))
	assert.NoError(err)
	assert.NotNil(match)
	assert.Equal("5+0", match.TimeControl)
}

func TestMatchmakerDifferentTagsDoNotPair(t *testing.T) {
	assert := assert.New(t)
	mm, _, _ := testMatchmaker()

	_, _, err := mm.Join(entry("x", "3+2"))
	assert.NoError(err)

	match, position, err := mm.Join(entry("y", "10+5"))
	assert.NoError(err)
	assert.Nil(match)
	assert.Equal(1, position)
	assert.Equal(2, mm.QueuedCount())
}

func TestMatchmakerWildcardScansTagsInOrder(t *testing.T) {
	assert := assert.New(t)
	mm, _, _ := testMatchmaker()

	mm.Join(entry("slow", "3+2"))
	mm.Join(entry("fast", "1+0"))

	// The wildcard scan walks tags in sorted order, so "1+0" wins.
	match, _, err := mm.Join(entry("b", TimeControlAny))
	assert.NoError(err)
	assert.NotNil(match)
	assert.Equal("1+0", match.TimeControl)
	assert.Equal(1, mm.QueuedCount())
}

func TestMatchmakerQueuePosition(t *testing.T) {
	assert := assert.New(t)
	mm, _, _ := testMatchmaker()

	// Different tags so nobody pairs.
	_, position, _ := mm.Join(entry("a", "1+0"))
	assert.Equal(1, position)
	_, position, _ = mm.Join(entry("b", "3+0"))
	assert.Equal(1, position)
}

func TestMatchmakerRejectsDoubleJoin(t *testing.T) {
	mm, _, _ := testMatchmaker()

	_, _, err := mm.Join(entry("a", "3+2"))
	assert.NoError(t, err)

	_, _, err = mm.Join(entry("a", "3+2"))
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	// Same session, different tag: still one queue per session.
	_, _, err = mm.Join(entry("a", "10+5"))
	assert.ErrorIs(t, err, ErrAlreadyQueued)
}

func TestMatchmakerRejectsSeatedSession(t *testing.T) {
	mm, _, seated := testMatchmaker()
	seated["a"] = true

	_, _, err := mm.Join(entry("a", "3+2"))
	assert.ErrorIs(t, err, ErrAlreadySeated)
}

func TestMatchmakerDiscardsDeadOpponent(t *testing.T) {
	assert := assert.New(t)
	mm, dead, _ := testMatchmaker()

	mm.Join(entry("ghost", "3+2"))
	dead["ghost"] = true

	// The joiner must not be paired with the dead entry; with nobody else
	// waiting they queue up instead.
	match, position, err := mm.Join(entry("b", "3+2"))
	assert.NoError(err)
	assert.Nil(match)
	assert.Equal(1, position)
	assert.Equal(1, mm.QueuedCount())
}

func TestMatchmakerDiscardsDeadThenPairsLive(t *testing.T) {
	assert := assert.New(t)
	mm, dead, _ := testMatchmaker()

	mm.Join(entry("ghost", "3+2"))
	mm.Join(entry("live", "10+5"))
	dead["ghost"] = true

	// Wildcard scan skips the dead 3+2 entry and reaches the live one.
	match, _, err := mm.Join(entry("b", TimeControlAny))
	assert.NoError(err)
	assert.NotNil(match)
	assert.Equal("10+5", match.TimeControl)
}

func TestMatchmakerLeave(t *testing.T) {
	assert := assert.New(t)
	mm, _, _ := testMatchmaker()

	mm.Join(entry("a", "3+2"))
	assert.True(mm.Leave("a"))
	assert.Equal(0, mm.QueuedCount())

	// Idempotent.
	assert.False(mm.Leave("a"))

	// After leaving, the session can join again.
	_, position, err := mm.Join(entry("a", "3+2"))
	assert.NoError(err)
	assert.Equal(1, position)
}

func TestMatchmakerHandleDisconnect(t *testing.T) {
	mm, _, _ := testMatchmaker()

	mm.Join(entry("a", "3+2"))
	mm.HandleDisconnect("a")
	assert.Equal(t, 0, mm.QueuedCount())
}
