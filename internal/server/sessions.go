package server

import (
	"sync"
)

// SessionRegistry is the single source of truth for "which room is this
// session seated in". No entry exists until the session joins a room, and
// cleanup removes the entry again.
type SessionRegistry struct {
	rooms map[string]string // sessionID → room code
	mu    sync.RWMutex
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		rooms: make(map[string]string),
	}
}

func (sr *SessionRegistry) Seat(sessionID, roomCode string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.rooms[sessionID] = roomCode
}

func (sr *SessionRegistry) Unseat(sessionID string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	delete(sr.rooms, sessionID)
}

// RoomFor returns the room code the session is seated in, or "".
func (sr *SessionRegistry) RoomFor(sessionID string) string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return sr.rooms[sessionID]
}

// IsSeated reports whether the session currently belongs to any room.
func (sr *SessionRegistry) IsSeated(sessionID string) bool {
	return sr.RoomFor(sessionID) != ""
}
