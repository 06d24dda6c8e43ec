package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionManagerBindAndSupersede(t *testing.T) {
	assert := assert.New(t)
	cm := NewConnectionManager()

	cm.AddConnection("c1", nil)
	previous := cm.BindSession("c1", "s1")
	assert.Equal("", previous)
	assert.True(cm.IsCurrent("c1", "s1"))

	// A second connection for the same session supersedes the first.
	cm.AddConnection("c2", nil)
	previous = cm.BindSession("c2", "s1")
	assert.Equal("c1", previous)
	assert.True(cm.IsCurrent("c2", "s1"))
	assert.False(cm.IsCurrent("c1", "s1"))
}

func TestConnectionManagerRebindSameConnection(t *testing.T) {
	cm := NewConnectionManager()

	cm.AddConnection("c1", nil)
	cm.BindSession("c1", "s1")

	// Re-auth on the live connection reports no previous socket to close.
	previous := cm.BindSession("c1", "s1")
	assert.Equal(t, "", previous)
	assert.True(t, cm.IsCurrent("c1", "s1"))
}

func TestConnectionManagerRemoveCurrent(t *testing.T) {
	assert := assert.New(t)
	cm := NewConnectionManager()

	cm.AddConnection("c1", nil)
	cm.BindSession("c1", "s1")

	session, wasCurrent := cm.RemoveConnection("c1")
	assert.Equal("s1", session)
	assert.True(wasCurrent)
	assert.Equal(0, cm.Count())
}

func TestConnectionManagerRemoveSuperseded(t *testing.T) {
	assert := assert.New(t)
	cm := NewConnectionManager()

	cm.AddConnection("c1", nil)
	cm.BindSession("c1", "s1")
	cm.AddConnection("c2", nil)
	cm.BindSession("c2", "s1")

	// The stale socket's close must not disturb the session's current binding.
	session, wasCurrent := cm.RemoveConnection("c1")
	assert.Equal("s1", session)
	assert.False(wasCurrent)
	assert.True(cm.IsCurrent("c2", "s1"))
}

func TestConnectionManagerRemoveUnauthenticated(t *testing.T) {
	cm := NewConnectionManager()

	cm.AddConnection("c1", nil)

	session, wasCurrent := cm.RemoveConnection("c1")
	assert.Equal(t, "", session)
	assert.False(t, wasCurrent)
}
