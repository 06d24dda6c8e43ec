package server

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/coder/websocket"

	"chess-server/internal/engine"
)

// unmarshalPayload decodes a request payload. Every request field is
// optional, so a frame that omits the payload entirely decodes as empty.
func unmarshalPayload(payload json.RawMessage, out interface{}) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, out)
}

// displayName trims and defaults the optional client-supplied name.
func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Anonymous"
	}
	if len(name) > 20 {
		name = name[:20]
	}
	return name
}

func (s *Server) handleCreateRoom(socket *websocket.Conn, ctx context.Context, connectionID, sessionID string, payload json.RawMessage) {
	var req CreateRoomRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid create_room payload")
		return
	}

	if s.sessionRegistry.IsSeated(sessionID) {
		s.sendError(socket, ctx, ErrAlreadySeated.Error())
		return
	}

	tc, err := NormalizeTimeControl(req.TimeControl, s.defaultTimeControl)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	// Creating a room implies abandoning any queue position.
	s.matchmaker.Leave(sessionID)

	room := s.roomManager.CreateRoom(tc, sessionID, displayName(req.Name), connectionID)
	s.sessionRegistry.Seat(sessionID, room.Code)

	log.Printf("Session %s created room %s (%s)", sessionID, room.Code, tc)

	s.sendMessage(socket, ctx, ServerMessage{
		Type: "room_created",
		Payload: RoomCreatedResponse{
			RoomID: room.Code,
			Color:  engine.White,
		},
	})
}

func (s *Server) handleJoinRoom(socket *websocket.Conn, ctx context.Context, connectionID, sessionID string, payload json.RawMessage) {
	var req JoinRoomRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid join_room payload")
		return
	}

	code := NormalizeRoomCode(req.RoomID)
	if code == "" {
		s.sendError(socket, ctx, "Missing roomId")
		return
	}

	room, err := s.roomManager.Get(code)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	if seatedIn := s.sessionRegistry.RoomFor(sessionID); seatedIn != "" {
		if seatedIn == code {
			s.sendError(socket, ctx, ErrAlreadyInRoom.Error())
		} else {
			s.sendError(socket, ctx, ErrAlreadySeated.Error())
		}
		return
	}

	s.matchmaker.Leave(sessionID)

	if err := room.SeatSecond(sessionID, displayName(req.Name), connectionID); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	s.sessionRegistry.Seat(sessionID, code)

	s.startGame(room, "game_start")
}

// startGame drives the waiting → playing transition: persistence id first,
// then clocks, then the personalized start frames.
func (s *Server) startGame(room *Room, frameType string) {
	gameID, err := s.store.CreateGame(room.CreateMeta())
	if err != nil {
		// The live room stays authoritative; the game simply has no
		// durable record.
		log.Printf("CreateGame failed for room %s: %v", room.Code, err)
	}

	room.Start(gameID)

	whiteSession, blackSession, whiteState, blackState := room.StartStates()
	s.sendToSession(whiteSession, frameType, whiteState)
	s.sendToSession(blackSession, frameType, blackState)

	log.Printf("Room %s started (game id %d)", room.Code, gameID)
}

func (s *Server) handleQuickMatch(socket *websocket.Conn, ctx context.Context, connectionID, sessionID string, payload json.RawMessage) {
	var req QuickMatchRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid quick_match payload")
		return
	}

	tag := strings.TrimSpace(req.TimeControl)
	if tag == "" {
		tag = TimeControlAny
	}
	if err := ValidateTimeControl(tag); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	entry := QueueEntry{
		Session: sessionID,
		Name:    displayName(req.Name),
		ConnID:  connectionID,
		Tag:     tag,
	}

	match, position, err := s.matchmaker.Join(entry)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	if match == nil {
		s.sendMessage(socket, ctx, ServerMessage{
			Type: "queue_joined",
			Payload: QueueJoinedResponse{
				TimeControl: tag,
				Position:    position,
			},
		})
		return
	}

	s.startMatch(match)
}

// startMatch turns a pairing into a live room: the white player creates it,
// the black player joins it, and the normal start transition runs.
func (s *Server) startMatch(match *MatchResult) {
	room := s.roomManager.CreateRoom(match.TimeControl, match.White.Session, match.White.Name, match.White.ConnID)
	s.sessionRegistry.Seat(match.White.Session, room.Code)

	if err := room.SeatSecond(match.Black.Session, match.Black.Name, match.Black.ConnID); err != nil {
		// Cannot happen on a freshly created room; recorded for the logs.
		log.Printf("Failed to seat matched player in room %s: %v", room.Code, err)
		return
	}
	s.sessionRegistry.Seat(match.Black.Session, room.Code)

	log.Printf("Matched sessions %s and %s in room %s (%s)",
		match.White.Session, match.Black.Session, room.Code, match.TimeControl)

	s.startGame(room, "game_start")
}

func (s *Server) handleCancelQueue(socket *websocket.Conn, ctx context.Context, sessionID string) {
	s.matchmaker.Leave(sessionID)
	s.sendMessage(socket, ctx, ServerMessage{Type: "queue_left", Payload: struct{}{}})
}

func (s *Server) handleMove(socket *websocket.Conn, ctx context.Context, sessionID string, payload json.RawMessage) {
	var req MoveRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid move payload")
		return
	}
	if req.SAN == "" {
		s.sendError(socket, ctx, "Missing san")
		return
	}

	room, err := s.roomForSession(sessionID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	res, err := room.ApplyMove(sessionID, req.SAN)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	if res.Flagged {
		// The mover's flag fell before the move completed: the move is
		// discarded and the game ends on time.
		s.finishRoom(room, res.Result, res.Reason)
		return
	}

	if err := s.store.AppendMove(res.GameID, res.Record); err != nil {
		log.Printf("AppendMove failed for room %s ply %d: %v", room.Code, res.Record.Ply, err)
	}

	white, black := room.Sessions()
	opponentSession := white
	if res.Opponent == engine.Black {
		opponentSession = black
	}

	s.sendToSession(opponentSession, "move", MoveNotification{
		SAN:    res.Record.SAN,
		Fen:    res.Record.FEN,
		Clocks: res.Clocks,
	})

	if res.Clocks != nil {
		s.sendMessage(socket, ctx, ServerMessage{
			Type:    "move_ack",
			Payload: MoveAckResponse{Clocks: res.Clocks},
		})
	}

	if res.Over {
		s.finishRoom(room, res.Result, res.Reason)
	}
}

func (s *Server) handleResign(socket *websocket.Conn, ctx context.Context, sessionID string) {
	room, err := s.roomForSession(sessionID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	result, err := room.Resign(sessionID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.finishRoom(room, result, "resignation")
}

func (s *Server) handleDrawOffer(socket *websocket.Conn, ctx context.Context, sessionID string) {
	room, err := s.roomForSession(sessionID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	// Draw offers carry no stored state; a duplicate offer just notifies
	// the opponent again.
	opponentSession, err := room.OpponentOf(sessionID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.sendToSession(opponentSession, "draw_offered", struct{}{})
}

func (s *Server) handleDrawRespond(socket *websocket.Conn, ctx context.Context, sessionID string, payload json.RawMessage) {
	var req OfferResponseRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid draw_respond payload")
		return
	}

	room, err := s.roomForSession(sessionID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	if req.Accept {
		if err := room.AgreeDraw(sessionID); err != nil {
			s.sendError(socket, ctx, err.Error())
			return
		}
		s.finishRoom(room, "1/2-1/2", "agreement")
		return
	}

	opponentSession, err := room.OpponentOf(sessionID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	s.sendToSession(opponentSession, "draw_declined", struct{}{})
}

func (s *Server) handleRematchOffer(socket *websocket.Conn, ctx context.Context, sessionID string) {
	room, err := s.roomForSession(sessionID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	opponentSession, err := room.OfferRematch(sessionID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.sendToSession(opponentSession, "rematch_offered", struct{}{})
}

func (s *Server) handleRematchRespond(socket *websocket.Conn, ctx context.Context, sessionID string, payload json.RawMessage) {
	var req OfferResponseRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid rematch_respond payload")
		return
	}

	room, err := s.roomForSession(sessionID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	if !req.Accept {
		offererSession, err := room.ClearRematchOffer(sessionID)
		if err != nil {
			s.sendError(socket, ctx, err.Error())
			return
		}
		s.sendToSession(offererSession, "rematch_declined", struct{}{})
		return
	}

	// Colours swap for the next game, so the persistence record is built
	// from the upcoming seat assignment before the transition commits.
	nextWhite, nextBlack, err := room.RematchSeats(sessionID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	// Stop the TTL timer before anything slow runs; if cleanup already won
	// the race the room is closed and StartRematch below refuses.
	s.timers.Cancel(room.Code + ":cleanup")

	gameID, err := s.store.CreateGame(metaFor(room.TimeControl, nextWhite.Name, nextBlack.Name))
	if err != nil {
		log.Printf("CreateGame failed for rematch in room %s: %v", room.Code, err)
	}

	if !room.StartRematch(gameID) {
		s.sendError(socket, ctx, ErrNoRematchOffer.Error())
		return
	}

	whiteSession, blackSession, whiteState, blackState := room.StartStates()
	s.sendToSession(whiteSession, "rematch_start", whiteState)
	s.sendToSession(blackSession, "rematch_start", blackState)

	log.Printf("Room %s rematch started (game id %d)", room.Code, gameID)
}

// roomForSession resolves the caller's seat through the session registry.
func (s *Server) roomForSession(sessionID string) (*Room, error) {
	roomCode := s.sessionRegistry.RoomFor(sessionID)
	if roomCode == "" {
		return nil, ErrNotInRoom
	}
	return s.roomManager.Get(roomCode)
}

// finishRoom runs the playing → finished bookkeeping that every ending
// shares: persist the result, tell both players, stop the grace timer, and
// arm the cleanup TTL.
func (s *Server) finishRoom(room *Room, result, reason string) {
	if err := s.store.FinishGame(room.CurrentGameID(), result, reason); err != nil {
		log.Printf("FinishGame failed for room %s: %v", room.Code, err)
	}

	s.timers.Cancel(room.Code + ":grace")

	white, black := room.Sessions()
	end := GameEndNotification{Result: result, Reason: reason}
	s.sendToSession(white, "game_end", end)
	s.sendToSession(black, "game_end", end)

	s.timers.Schedule(room.Code+":cleanup", s.roomTTL, func() {
		s.cleanupRoom(room)
	})

	log.Printf("Room %s finished: %s (%s)", room.Code, result, reason)
}

// cleanupRoom is the room's destroyer: code freed, sessions unseated, timers
// cancelled. The code may be reused by a later room.
func (s *Server) cleanupRoom(room *Room) {
	room.Close()
	s.timers.CancelPrefix(room.Code + ":")

	white, black := room.Sessions()
	s.sessionRegistry.Unseat(white)
	if black != "" {
		s.sessionRegistry.Unseat(black)
	}

	s.roomManager.Remove(room.Code)
	log.Printf("Room %s cleaned up", room.Code)
}
