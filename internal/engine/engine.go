// Package engine adapts notnil/chess to the narrow rule-engine contract the
// live-session layer needs: apply a SAN move, report side to move, export the
// FEN, and detect terminal positions with a reason.
package engine

import (
	"errors"

	"github.com/notnil/chess"
)

// StartingFEN is the standard initial position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Color identifies a side using the wire encoding ("w"/"b").
type Color string

const (
	White Color = "w"
	Black Color = "b"
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

var ErrInvalidMove = errors.New("invalid move")

// Game is the authoritative position for one chess game.
type Game struct {
	g *chess.Game
}

// New returns a game at the starting position.
func New() *Game {
	return &Game{g: chess.NewGame()}
}

// Apply validates and plays a SAN move. Threefold-repetition and fifty-move
// draws are claimed on the mover's behalf immediately, so a position that the
// rules allow to be drawn is terminal as soon as it arises.
func (g *Game) Apply(san string) error {
	if err := g.g.MoveStr(san); err != nil {
		return ErrInvalidMove
	}

	if g.g.Outcome() == chess.NoOutcome {
		g.claimDraw(chess.ThreefoldRepetition)
	}
	if g.g.Outcome() == chess.NoOutcome {
		g.claimDraw(chess.FiftyMoveRule)
	}

	return nil
}

func (g *Game) claimDraw(method chess.Method) {
	for _, eligible := range g.g.EligibleDraws() {
		if eligible == method {
			// Draw only errors for ineligible methods.
			_ = g.g.Draw(method)
			return
		}
	}
}

// Turn reports the side to move.
func (g *Game) Turn() Color {
	if g.g.Position().Turn() == chess.White {
		return White
	}
	return Black
}

// FEN exports the current position.
func (g *Game) FEN() string {
	return g.g.Position().String()
}

// Ply is the number of half-moves played.
func (g *Game) Ply() int {
	return len(g.g.Moves())
}

// IsGameOver reports whether the position is terminal.
func (g *Game) IsGameOver() bool {
	return g.g.Outcome() != chess.NoOutcome
}

// Result returns the game result ("1-0", "0-1", "1/2-1/2") and the reason
// it ended ("checkmate", "stalemate", "repetition", "insufficient",
// "fifty-move"). Both are empty while the game is still in progress.
func (g *Game) Result() (result string, reason string) {
	outcome := g.g.Outcome()
	if outcome == chess.NoOutcome {
		return "", ""
	}

	switch g.g.Method() {
	case chess.Checkmate:
		reason = "checkmate"
	case chess.Stalemate:
		reason = "stalemate"
	case chess.ThreefoldRepetition, chess.FivefoldRepetition:
		reason = "repetition"
	case chess.InsufficientMaterial:
		reason = "insufficient"
	case chess.FiftyMoveRule, chess.SeventyFiveMoveRule:
		reason = "fifty-move"
	}

	return string(outcome), reason
}
