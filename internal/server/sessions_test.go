package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionRegistrySeatUnseat(t *testing.T) {
	assert := assert.New(t)
	sr := NewSessionRegistry()

	assert.False(sr.IsSeated("s1"))
	assert.Equal("", sr.RoomFor("s1"))

	sr.Seat("s1", "ABCDEF")
	assert.True(sr.IsSeated("s1"))
	assert.Equal("ABCDEF", sr.RoomFor("s1"))

	// Reseating overwrites; a session holds at most one seat.
	sr.Seat("s1", "ZZZZZZ")
	assert.Equal("ZZZZZZ", sr.RoomFor("s1"))

	sr.Unseat("s1")
	assert.False(sr.IsSeated("s1"))

	// Unseat is idempotent.
	sr.Unseat("s1")
	assert.False(sr.IsSeated("s1"))
}
