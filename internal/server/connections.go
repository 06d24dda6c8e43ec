package server

import (
	"sync"

	"github.com/coder/websocket"
)

// ConnectionManager tracks live sockets and which session each one
// authenticated as. A session has at most one current connection: a newer
// connection for the same session supersedes the older one, and the older
// one's close must not disturb session state.
type ConnectionManager struct {
	connections map[string]*websocket.Conn // connectionID → socket
	sessions    map[string]string          // connectionID → sessionID
	current     map[string]string          // sessionID → current connectionID
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
		sessions:    make(map[string]string),
		current:     make(map[string]string),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

// RemoveConnection drops a socket from the registry. It reports the session
// the socket was authenticated as, and whether the socket was still that
// session's current connection; a superseded socket reports false, so its
// close handler leaves the session alone.
func (cm *ConnectionManager) RemoveConnection(id string) (session string, wasCurrent bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	session = cm.sessions[id]
	delete(cm.connections, id)
	delete(cm.sessions, id)

	if session != "" && cm.current[session] == id {
		delete(cm.current, session)
		wasCurrent = true
	}
	return session, wasCurrent
}

// BindSession records a successful auth on a connection. Returns the id of
// the previous current connection for that session ("" if none) so the
// caller can close the superseded socket.
func (cm *ConnectionManager) BindSession(connectionID, sessionID string) (previousConnID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	previousConnID = cm.current[sessionID]
	if previousConnID == connectionID {
		previousConnID = ""
	}

	cm.sessions[connectionID] = sessionID
	cm.current[sessionID] = connectionID
	return previousConnID
}

// ConnFor returns the session's current socket, or nil if the session has no
// live connection.
func (cm *ConnectionManager) ConnFor(sessionID string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	id, ok := cm.current[sessionID]
	if !ok {
		return nil
	}
	return cm.connections[id]
}

// IsCurrent reports whether connectionID is still sessionID's live
// connection. The matchmaker uses this as its liveness probe before pairing.
func (cm *ConnectionManager) IsCurrent(connectionID, sessionID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.current[sessionID] == connectionID
}

// GetConnection returns the socket for a connection id, or nil.
func (cm *ConnectionManager) GetConnection(connectionID string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connections[connectionID]
}

// Count returns the number of registered connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// CloseAll closes every socket; used during shutdown.
func (cm *ConnectionManager) CloseAll(code websocket.StatusCode, reason string) {
	cm.mu.Lock()
	sockets := make([]*websocket.Conn, 0, len(cm.connections))
	for _, conn := range cm.connections {
		sockets = append(sockets, conn)
	}
	cm.mu.Unlock()

	for _, conn := range sockets {
		conn.Close(code, reason)
	}
}
