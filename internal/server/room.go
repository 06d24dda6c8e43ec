package server

import (
	"errors"
	"sync"
	"time"

	"chess-server/internal/engine"
)

type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

var (
	ErrRoomNotFound      = errors.New("Room not found")
	ErrRoomNotAccepting  = errors.New("Room is not accepting players")
	ErrAlreadyInRoom     = errors.New("You are already in this room")
	ErrNotAPlayer        = errors.New("You are not a player in this room")
	ErrNotInRoom         = errors.New("Not in a room")
	ErrGameNotInProgress = errors.New("Game not in progress")
	ErrNotYourTurn       = errors.New("Not your turn")
	ErrInvalidMove       = errors.New("Invalid move")
	ErrGameNotFinished   = errors.New("Game is still in progress")
	ErrNoRematchOffer    = errors.New("No rematch offer to respond to")
)

// PlayerSlot is one seat in a room. The session stays bound to the seat
// across disconnects; only the connection comes and goes.
type PlayerSlot struct {
	Session          string
	Name             string
	ConnID           string
	Connected        bool
	DisconnectedAtMS int64
}

// MoveRecord is one entry of the append-only move log.
type MoveRecord struct {
	Ply         int
	SAN         string
	FEN         string
	TimestampMS int64
	Side        engine.Color
}

// Room is the per-game state machine. All mutation happens under mu; the
// handlers never hold mu across socket writes or store calls.
type Room struct {
	Code        string
	Status      RoomStatus
	TimeControl string
	Engine      *engine.Game
	Moves       []MoveRecord
	Clocks      *Clocks
	GameID      int64
	White       PlayerSlot
	Black       PlayerSlot

	// At most one outstanding rematch offer; draw offers carry no state.
	RematchOfferBy engine.Color

	CreatedAt time.Time

	// Set by cleanup. A handler may still hold a pointer to a reaped room;
	// closed makes sure it cannot seat players or start games through it.
	closed bool

	nowMS func() int64
	mu    sync.Mutex
}

// NewRoom creates a waiting room with the creator seated as white. The time
// control must already be normalized (never the wildcard).
func NewRoom(code, timeControl string, creatorSession, creatorName, connID string) *Room {
	return &Room{
		Code:        code,
		Status:      StatusWaiting,
		TimeControl: timeControl,
		Engine:      engine.New(),
		White: PlayerSlot{
			Session:   creatorSession,
			Name:      creatorName,
			ConnID:    connID,
			Connected: true,
		},
		CreatedAt: time.Now(),
		nowMS:     func() int64 { return time.Now().UnixMilli() },
	}
}

func (r *Room) slot(color engine.Color) *PlayerSlot {
	if color == engine.White {
		return &r.White
	}
	return &r.Black
}

func (r *Room) slotBySession(session string) (*PlayerSlot, engine.Color, bool) {
	if r.White.Session == session {
		return &r.White, engine.White, true
	}
	if r.Black.Session == session && r.Black.Session != "" {
		return &r.Black, engine.Black, true
	}
	return nil, "", false
}

// ColorOf reports which seat the session holds.
func (r *Room) ColorOf(session string) (engine.Color, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, color, ok := r.slotBySession(session)
	return color, ok
}

// SeatSecond seats the joining player as black. The room stays in waiting
// until Start assigns the persistence id and releases the clocks.
func (r *Room) SeatSecond(session, name, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, _, ok := r.slotBySession(session); ok {
		return ErrAlreadyInRoom
	}
	if r.closed || r.Status != StatusWaiting || r.Black.Session != "" {
		return ErrRoomNotAccepting
	}

	r.Black = PlayerSlot{
		Session:   session,
		Name:      name,
		ConnID:    connID,
		Connected: true,
	}
	return nil
}

// Start performs the waiting → playing transition. gameID may be zero when
// the store rejected CreateGame; the live room is authoritative regardless.
func (r *Room) Start(gameID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status != StatusWaiting {
		return
	}

	r.Status = StatusPlaying
	r.GameID = gameID
	r.Clocks = NewClocksFor(r.TimeControl)
	if r.Clocks != nil {
		r.Clocks.LastMoveAtMS = r.nowMS()
	}
}

// MoveResult carries everything the transport needs to fan out after a
// successful (or flagging) move.
type MoveResult struct {
	Record   MoveRecord
	Clocks   *ClockTimes // nil for untimed games
	GameID   int64
	Mover    engine.Color
	Opponent engine.Color

	// Terminal information. Flagged means the mover lost on time and the
	// move itself was discarded.
	Over    bool
	Flagged bool
	Result  string
	Reason  string
}

// ApplyMove runs the move pipeline of the state machine: turn check, rule
// check, clock arithmetic, log append, terminal detection. Any error leaves
// the room untouched.
func (r *Room) ApplyMove(session, san string) (*MoveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, color, ok := r.slotBySession(session)
	if !ok {
		return nil, ErrNotAPlayer
	}
	if r.Status != StatusPlaying {
		return nil, ErrGameNotInProgress
	}
	if r.Engine.Turn() != color {
		return nil, ErrNotYourTurn
	}

	if err := r.Engine.Apply(san); err != nil {
		return nil, ErrInvalidMove
	}

	now := r.nowMS()
	res := &MoveResult{
		GameID:   r.GameID,
		Mover:    color,
		Opponent: color.Opponent(),
	}

	if r.Clocks != nil {
		firstMove := len(r.Moves) == 0
		if !r.Clocks.ApplyMove(color, now, firstMove) {
			// Flag fall: the mover ran out of time before completing the
			// move. The move is discarded and the game ends immediately.
			r.Status = StatusFinished
			res.Over = true
			res.Flagged = true
			res.Reason = "timeout"
			res.Result = winnerResult(res.Opponent)
			res.Clocks = r.Clocks.Snapshot()
			return res, nil
		}
		res.Clocks = r.Clocks.Snapshot()
	}

	record := MoveRecord{
		Ply:         len(r.Moves),
		SAN:         san,
		FEN:         r.Engine.FEN(),
		TimestampMS: now,
		Side:        color,
	}
	r.Moves = append(r.Moves, record)
	res.Record = record

	if r.Engine.IsGameOver() {
		res.Result, res.Reason = r.Engine.Result()
		res.Over = true
		r.Status = StatusFinished
	}

	return res, nil
}

// Resign ends the game with the resigner losing.
func (r *Room) Resign(session string) (result string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, color, ok := r.slotBySession(session)
	if !ok {
		return "", ErrNotAPlayer
	}
	if r.Status != StatusPlaying {
		return "", ErrGameNotInProgress
	}

	r.Status = StatusFinished
	return winnerResult(color.Opponent()), nil
}

// AgreeDraw ends the game as a draw by agreement.
func (r *Room) AgreeDraw(session string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, _, ok := r.slotBySession(session); !ok {
		return ErrNotAPlayer
	}
	if r.Status != StatusPlaying {
		return ErrGameNotInProgress
	}

	r.Status = StatusFinished
	return nil
}

// FinalizeAbandonment ends the game with the absent player losing, but only
// if the seat is still empty and the game is still running; a reconnect that
// beat the grace timer wins.
func (r *Room) FinalizeAbandonment(session string) (result string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, color, found := r.slotBySession(session)
	if !found || slot.Connected || r.Status != StatusPlaying {
		return "", false
	}

	r.Status = StatusFinished
	return winnerResult(color.Opponent()), true
}

// MarkDisconnected records that the session's socket went away. Reports the
// room status at that instant plus the opponent's session for notification.
// Superseded connections are filtered before this is called: only the loss
// of a session's current connection reaches the room.
func (r *Room) MarkDisconnected(session string) (status RoomStatus, color engine.Color, opponentSession string, changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, color, ok := r.slotBySession(session)
	if !ok {
		return r.Status, "", "", false
	}

	slot.Connected = false
	slot.ConnID = ""
	slot.DisconnectedAtMS = r.nowMS()

	return r.Status, color, r.slot(color.Opponent()).Session, true
}

// Reconnect swaps the seat's connection to a fresh socket and assembles the
// full catch-up frame: position, move list, live clocks, opponent presence.
func (r *Room) Reconnect(session, connID string) (*ReconnectState, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, color, ok := r.slotBySession(session)
	if !ok {
		return nil, "", ErrNotAPlayer
	}
	if r.Status != StatusPlaying {
		return nil, "", ErrGameNotInProgress
	}

	slot.ConnID = connID
	slot.Connected = true
	slot.DisconnectedAtMS = 0

	sans := make([]string, len(r.Moves))
	for i, mv := range r.Moves {
		sans[i] = mv.SAN
	}

	var clocks *ClockTimes
	if r.Clocks != nil {
		clocks = r.Clocks.LiveSnapshot(r.Engine.Turn(), r.nowMS())
	}

	opponent := r.slot(color.Opponent())
	state := &ReconnectState{
		RoomID:            r.Code,
		Color:             color,
		Fen:               r.Engine.FEN(),
		TimeControl:       r.TimeControl,
		Moves:             sans,
		Clocks:            clocks,
		OpponentName:      opponent.Name,
		OpponentConnected: opponent.Connected,
	}
	return state, opponent.Session, nil
}

// OfferRematch remembers the offer and reports who to notify. Only finished
// rooms accept rematch offers.
func (r *Room) OfferRematch(session string) (opponentSession string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrRoomNotFound
	}
	_, color, ok := r.slotBySession(session)
	if !ok {
		return "", ErrNotAPlayer
	}
	if r.Status != StatusFinished {
		return "", ErrGameNotFinished
	}

	r.RematchOfferBy = color
	return r.slot(color.Opponent()).Session, nil
}

// ClearRematchOffer drops the outstanding offer (decline path). Reports the
// offerer's session so the decline can be delivered.
func (r *Room) ClearRematchOffer(session string) (offererSession string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, _, ok := r.slotBySession(session); !ok {
		return "", ErrNotAPlayer
	}
	if r.RematchOfferBy == "" {
		return "", ErrNoRematchOffer
	}

	offerer := r.slot(r.RematchOfferBy).Session
	r.RematchOfferBy = ""
	return offerer, nil
}

// RematchSeats returns the seat assignment the next game would use (colours
// swap) so CreateGame can run before the transition commits.
func (r *Room) RematchSeats(session string) (nextWhite, nextBlack PlayerSlot, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return PlayerSlot{}, PlayerSlot{}, ErrRoomNotFound
	}
	if _, _, ok := r.slotBySession(session); !ok {
		return PlayerSlot{}, PlayerSlot{}, ErrNotAPlayer
	}
	if r.Status != StatusFinished {
		return PlayerSlot{}, PlayerSlot{}, ErrGameNotFinished
	}
	if r.RematchOfferBy == "" {
		return PlayerSlot{}, PlayerSlot{}, ErrNoRematchOffer
	}

	return r.Black, r.White, nil
}

// StartRematch performs finished → playing: colours swap, fresh engine,
// empty move log, fresh clocks from the same spec, new persistence id. All
// disconnect bookkeeping from the previous game is reset.
func (r *Room) StartRematch(gameID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.Status != StatusFinished || r.RematchOfferBy == "" {
		return false
	}

	r.White, r.Black = r.Black, r.White
	r.White.DisconnectedAtMS = 0
	r.Black.DisconnectedAtMS = 0

	r.Engine = engine.New()
	r.Moves = nil
	r.GameID = gameID
	r.RematchOfferBy = ""
	r.Status = StatusPlaying

	r.Clocks = NewClocksFor(r.TimeControl)
	if r.Clocks != nil {
		r.Clocks.LastMoveAtMS = r.nowMS()
	}
	return true
}

// Close marks the room defunct. After cleanup has unseated the sessions and
// freed the code, a handler racing the TTL timer with a stale pointer must
// not be able to restart anything through it.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// Sessions returns both seated sessions ("" for an empty seat).
func (r *Room) Sessions() (white, black string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.White.Session, r.Black.Session
}

// OpponentOf returns the session seated across from the caller. Only valid
// while the game is in progress; the offer protocols route through this.
func (r *Room) OpponentOf(session string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, color, ok := r.slotBySession(session)
	if !ok {
		return "", ErrNotAPlayer
	}
	if r.Status != StatusPlaying {
		return "", ErrGameNotInProgress
	}
	return r.slot(color.Opponent()).Session, nil
}

// StartStates builds the personalized game_start (or rematch_start) frames
// for both seats.
func (r *Room) StartStates() (whiteSession, blackSession string, whiteState, blackState GameStartNotification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fen := r.Engine.FEN()
	whiteState = GameStartNotification{
		RoomID:       r.Code,
		Color:        engine.White,
		Fen:          fen,
		TimeControl:  r.TimeControl,
		OpponentName: r.Black.Name,
	}
	blackState = GameStartNotification{
		RoomID:       r.Code,
		Color:        engine.Black,
		Fen:          fen,
		TimeControl:  r.TimeControl,
		OpponentName: r.White.Name,
	}
	return r.White.Session, r.Black.Session, whiteState, blackState
}

// CreateMeta assembles the persistence record for the game about to start.
func (r *Room) CreateMeta() GameMeta {
	r.mu.Lock()
	defer r.mu.Unlock()
	return metaFor(r.TimeControl, r.White.Name, r.Black.Name)
}

func metaFor(timeControl, whiteName, blackName string) GameMeta {
	return GameMeta{
		GameType:    "multiplayer",
		TimeControl: timeControl,
		StartingFEN: engine.StartingFEN,
		White:       PlayerMeta{Name: whiteName},
		Black:       PlayerMeta{Name: blackName},
	}
}

// CurrentStatus returns the room status under the lock.
func (r *Room) CurrentStatus() RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Status
}

// CurrentGameID returns the persistence id of the game in progress (or the
// one just finished).
func (r *Room) CurrentGameID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.GameID
}

// winnerResult maps the winning colour to the stored result string.
func winnerResult(winner engine.Color) string {
	if winner == engine.White {
		return "1-0"
	}
	return "0-1"
}
