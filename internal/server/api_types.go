package server

import "chess-server/internal/engine"

// ============================================================================
// ERROR RESPONSES
// ============================================================================
type ErrorMessage struct {
	Message string `json:"message"`
}

// ============================================================================
// HANDSHAKE (auth / auth_ok)
// ============================================================================
type AuthRequest struct {
	SessionID string `json:"sessionId"`
}

// ============================================================================
// ROOM CREATION (create_room / room_created)
// ============================================================================
type CreateRoomRequest struct {
	Name        string `json:"name,omitempty"`
	TimeControl string `json:"timeControl,omitempty"`
}

type RoomCreatedResponse struct {
	RoomID string       `json:"roomId"`
	Color  engine.Color `json:"color"`
}

// ============================================================================
// JOINING (join_room)
// ============================================================================
type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name,omitempty"`
}

// ============================================================================
// MATCHMAKING (quick_match / cancel_queue / queue_joined / queue_left)
// ============================================================================
type QuickMatchRequest struct {
	Name        string `json:"name,omitempty"`
	TimeControl string `json:"timeControl,omitempty"`
}

type QueueJoinedResponse struct {
	TimeControl string `json:"timeControl"`
	Position    int    `json:"position"`
}

// ============================================================================
// GAME START (game_start / rematch_start broadcast)
// ============================================================================
type GameStartNotification struct {
	RoomID       string       `json:"roomId"`
	Color        engine.Color `json:"color"`
	Fen          string       `json:"fen"`
	TimeControl  string       `json:"timeControl"`
	OpponentName string       `json:"opponentName"`
}

// ============================================================================
// MOVES (move / move_ack)
// ============================================================================
type MoveRequest struct {
	SAN string `json:"san"`
}

// ClockTimes carries the two remaining times in milliseconds.
type ClockTimes struct {
	W int64 `json:"w"`
	B int64 `json:"b"`
}

type MoveNotification struct {
	SAN    string      `json:"san"`
	Fen    string      `json:"fen"`
	Clocks *ClockTimes `json:"clocks"`
}

type MoveAckResponse struct {
	Clocks *ClockTimes `json:"clocks"`
}

// ============================================================================
// GAME END (game_end broadcast)
// ============================================================================
type GameEndNotification struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
}

// ============================================================================
// OFFERS (draw_respond / rematch_respond)
// ============================================================================
type OfferResponseRequest struct {
	Accept bool `json:"accept"`
}

// ============================================================================
// DISCONNECT / RECONNECT
// ============================================================================
type OpponentDisconnectedNotification struct {
	Timeout int `json:"timeout"` // grace period in seconds
}

type ReconnectState struct {
	RoomID            string       `json:"roomId"`
	Color             engine.Color `json:"color"`
	Fen               string       `json:"fen"`
	TimeControl       string       `json:"timeControl"`
	Moves             []string     `json:"moves"`
	Clocks            *ClockTimes  `json:"clocks"`
	OpponentName      string       `json:"opponentName"`
	OpponentConnected bool         `json:"opponentConnected"`
}
