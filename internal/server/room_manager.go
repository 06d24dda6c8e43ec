package server

import "sync"

// RoomManager owns the live room map and the set of room codes in use. A
// code is freed at cleanup and may be reused by a later room.
type RoomManager struct {
	rooms     map[string]*Room
	usedCodes map[string]bool
	mu        sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:     make(map[string]*Room),
		usedCodes: make(map[string]bool),
	}
}

// CreateRoom allocates a fresh code and registers a waiting room with the
// creator seated as white.
func (rm *RoomManager) CreateRoom(timeControl, session, name, connID string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	code := GenerateRoomCode(rm.usedCodes)
	rm.usedCodes[code] = true

	room := NewRoom(code, timeControl, session, name, connID)
	rm.rooms[code] = room
	return room
}

// Get looks up a room by its (already normalized) code.
func (rm *RoomManager) Get(code string) (*Room, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	room, exists := rm.rooms[code]
	if !exists {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Remove deletes the room and releases its code for reuse.
func (rm *RoomManager) Remove(code string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	delete(rm.rooms, code)
	delete(rm.usedCodes, code)
}

// Count returns the number of live rooms.
func (rm *RoomManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}
