package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	// Register routes
	mux.HandleFunc("/", s.HelloWorldHandler)

	mux.HandleFunc("/health", s.healthHandler)

	mux.HandleFunc("/ws", s.websocketHandler)

	// Wrap the mux with CORS middleware
	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"message": "Hello World"}
	jsonResp, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(jsonResp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := json.Marshal(s.db.Health())
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	log.Printf("New connection: %s", connectionID)
	s.connectionManager.AddConnection(connectionID, socket)
	defer s.handleConnectionClose(connectionID)

	// Liveness probe. Proxies drop idle TCP silently, so a protocol-level
	// ping round-trip is the only trustworthy signal.
	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go s.pingLoop(pingCtx, connectionID, socket)

	// sessionID stays empty until the handshake gate passes.
	sessionID := ""

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.Printf("Connection %s read error: %v", connectionID, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", connectionID)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", connectionID, err)
			s.sendError(socket, ctx, "Invalid JSON")
			continue
		}

		// Handshake gate: nothing is routed until the connection declares
		// its session. The connection stays open so the client can retry.
		if sessionID == "" {
			if msg.Type != "auth" {
				s.sendError(socket, ctx, "First message must be auth with sessionId")
				continue
			}
			sessionID = s.handleAuth(socket, ctx, connectionID, msg.Payload)
			continue
		}

		log.Printf("Message Type '%s' from session %s", msg.Type, sessionID)

		// Route the message
		switch msg.Type {
		case "ping":
			s.sendMessage(socket, ctx, ServerMessage{Type: "pong", Payload: struct{}{}})

		case "auth":
			// Re-auth on a live connection is harmless; acknowledge it.
			s.sendMessage(socket, ctx, ServerMessage{Type: "auth_ok", Payload: struct{}{}})

		case "create_room":
			s.handleCreateRoom(socket, ctx, connectionID, sessionID, msg.Payload)

		case "join_room":
			s.handleJoinRoom(socket, ctx, connectionID, sessionID, msg.Payload)

		case "quick_match":
			s.handleQuickMatch(socket, ctx, connectionID, sessionID, msg.Payload)

		case "cancel_queue":
			s.handleCancelQueue(socket, ctx, sessionID)

		case "move":
			s.handleMove(socket, ctx, sessionID, msg.Payload)

		case "resign":
			s.handleResign(socket, ctx, sessionID)

		case "draw_offer":
			s.handleDrawOffer(socket, ctx, sessionID)

		case "draw_respond":
			s.handleDrawRespond(socket, ctx, sessionID, msg.Payload)

		case "rematch_offer":
			s.handleRematchOffer(socket, ctx, sessionID)

		case "rematch_respond":
			s.handleRematchRespond(socket, ctx, sessionID, msg.Payload)

		default:
			log.Printf("Unknown message type '%s' from %s", msg.Type, connectionID)
			s.sendError(socket, ctx, "Unknown message type: "+msg.Type)
		}
	}
}

// pingLoop terminates connections that stop answering pings.
func (s *Server) pingLoop(ctx context.Context, connectionID string, socket *websocket.Conn) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := socket.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Printf("Connection %s failed liveness probe: %v", connectionID, err)
				socket.Close(websocket.StatusPolicyViolation, "Liveness probe failed")
				return
			}
		}
	}
}

// handleAuth runs the handshake. Returns the bound session id, or "" if the
// handshake failed and the gate stays closed.
func (s *Server) handleAuth(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) string {
	var req AuthRequest
	if err := unmarshalPayload(payload, &req); err != nil || req.SessionID == "" {
		s.sendError(socket, ctx, "First message must be auth with sessionId")
		return ""
	}

	// A newer connection supersedes the session's old one. The old socket
	// is closed, and its close handler will see it is no longer current.
	if previous := s.connectionManager.BindSession(connectionID, req.SessionID); previous != "" {
		if old := s.connectionManager.GetConnection(previous); old != nil {
			old.Close(websocket.StatusNormalClosure, "Connected from another device")
		}
	}

	s.sendMessage(socket, ctx, ServerMessage{Type: "auth_ok", Payload: struct{}{}})

	// A session seated in a live game is routed straight into reconnection.
	if roomCode := s.sessionRegistry.RoomFor(req.SessionID); roomCode != "" {
		if room, err := s.roomManager.Get(roomCode); err == nil && room.CurrentStatus() == StatusPlaying {
			s.handleReconnect(socket, ctx, connectionID, req.SessionID, room)
		}
	}

	return req.SessionID
}

// handleReconnect swaps the session's seat onto the new socket and replays
// the game state.
func (s *Server) handleReconnect(socket *websocket.Conn, ctx context.Context, connectionID, sessionID string, room *Room) {
	state, opponentSession, err := room.Reconnect(sessionID, connectionID)
	if err != nil {
		log.Printf("Reconnect failed for session %s in room %s: %v", sessionID, room.Code, err)
		return
	}

	s.timers.Cancel(room.Code + ":grace")

	s.sendMessage(socket, ctx, ServerMessage{Type: "reconnect", Payload: state})
	s.sendToSession(opponentSession, "opponent_reconnected", struct{}{})

	log.Printf("Session %s reconnected to room %s", sessionID, room.Code)
}

// handleConnectionClose runs when a socket goes away for any reason. A
// superseded socket takes no session state with it.
func (s *Server) handleConnectionClose(connectionID string) {
	sessionID, wasCurrent := s.connectionManager.RemoveConnection(connectionID)
	log.Printf("Connection closed: %s", connectionID)

	if sessionID == "" || !wasCurrent {
		return
	}

	s.matchmaker.HandleDisconnect(sessionID)

	roomCode := s.sessionRegistry.RoomFor(sessionID)
	if roomCode == "" {
		return
	}
	room, err := s.roomManager.Get(roomCode)
	if err != nil {
		return
	}

	status, _, opponentSession, changed := room.MarkDisconnected(sessionID)
	if !changed {
		return
	}

	switch status {
	case StatusWaiting:
		// Sole player left a room nobody joined; nothing worth keeping.
		s.cleanupRoom(room)

	case StatusPlaying:
		log.Printf("Session %s disconnected from live room %s", sessionID, roomCode)
		s.sendToSession(opponentSession, "opponent_disconnected", OpponentDisconnectedNotification{
			Timeout: int(s.disconnectGrace.Seconds()),
		})

		graceKey := room.Code + ":grace"
		if !s.timers.Pending(graceKey) {
			s.timers.Schedule(graceKey, s.disconnectGrace, func() {
				if result, ok := room.FinalizeAbandonment(sessionID); ok {
					s.finishRoom(room, result, "abandoned")
				}
			})
		}

	case StatusFinished:
		// Cleanup TTL is already running; nothing to arm.
	}
}

func (s *Server) sendMessage(socket *websocket.Conn, ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return socket.Write(ctx, websocket.MessageText, data)
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, msg string) {
	response := ServerMessage{
		Type:    "error",
		Payload: ErrorMessage{Message: msg},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}

// sendToSession delivers a frame to the session's current connection. A
// session with no live connection is a silent no-op: the peer disappearing
// between decision and write is normal, and reconnect replays the state.
func (s *Server) sendToSession(sessionID, msgType string, payload interface{}) {
	if sessionID == "" {
		return
	}

	conn := s.connectionManager.ConnFor(sessionID)
	if conn == nil {
		return
	}

	msg := ServerMessage{Type: msgType, Payload: payload}
	if err := s.sendMessage(conn, context.Background(), msg); err != nil {
		log.Printf("Failed to send %s to session %s: %v", msgType, sessionID, err)
	}
}
