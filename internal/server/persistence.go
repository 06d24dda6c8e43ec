package server

import (
	"database/sql"
	"fmt"
	"time"
)

// GameMeta is the CreateGame payload: enough to replay the game later.
type GameMeta struct {
	GameType    string
	TimeControl string
	StartingFEN string
	White       PlayerMeta
	Black       PlayerMeta
}

type PlayerMeta struct {
	Name string
	IsAI bool
	Elo  *int
}

// GameStore is the narrow persistence contract the live rooms depend on.
// Every call is best-effort from the room's point of view: the in-memory
// room state stays authoritative when the store misbehaves.
type GameStore interface {
	// CreateGame records a new game and returns its id.
	CreateGame(meta GameMeta) (int64, error)

	// AppendMove stores one half-move. Idempotent on (gameID, ply):
	// retried appends are treated as success.
	AppendMove(gameID int64, mv MoveRecord) error

	// FinishGame records the result ("1-0", "0-1", "1/2-1/2"), the reason
	// the game ended, and the end timestamp.
	FinishGame(gameID int64, result, reason string) error
}

// SQLGameStore persists games through database/sql. The sqlite schema puts a
// uniqueness constraint on (game_id, ply), which is what makes AppendMove
// safe to retry.
type SQLGameStore struct {
	db *sql.DB
}

func NewSQLGameStore(db *sql.DB) *SQLGameStore {
	return &SQLGameStore{db: db}
}

func (s *SQLGameStore) CreateGame(meta GameMeta) (int64, error) {
	query := `
		INSERT INTO games (game_type, time_control, starting_fen,
			white_name, white_is_ai, white_elo,
			black_name, black_is_ai, black_elo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		meta.GameType,
		meta.TimeControl,
		meta.StartingFEN,
		meta.White.Name, meta.White.IsAI, meta.White.Elo,
		meta.Black.Name, meta.Black.IsAI, meta.Black.Elo,
		time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create game: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new game id: %w", err)
	}
	return id, nil
}

func (s *SQLGameStore) AppendMove(gameID int64, mv MoveRecord) error {
	// INSERT OR IGNORE turns a duplicate (game_id, ply) into a no-op.
	query := `
		INSERT OR IGNORE INTO moves (game_id, ply, san, fen, played_at_ms, side)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query, gameID, mv.Ply, mv.SAN, mv.FEN, mv.TimestampMS, string(mv.Side))
	if err != nil {
		return fmt.Errorf("failed to append move %d to game %d: %w", mv.Ply, gameID, err)
	}
	return nil
}

func (s *SQLGameStore) FinishGame(gameID int64, result, reason string) error {
	query := `
		UPDATE games SET result = ?, end_reason = ?, finished_at = ?
		WHERE id = ?
	`

	_, err := s.db.Exec(query, result, reason, time.Now(), gameID)
	if err != nil {
		return fmt.Errorf("failed to finish game %d: %w", gameID, err)
	}
	return nil
}
