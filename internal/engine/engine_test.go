package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chess-server/internal/engine"
)

func TestNewGameStartsAtInitialPosition(t *testing.T) {
	assert := assert.New(t)
	g := engine.New()

	assert.Equal(engine.White, g.Turn())
	assert.Equal(0, g.Ply())
	assert.False(g.IsGameOver())
	assert.Equal(engine.StartingFEN, g.FEN())
}

func TestApplyAlternatesTurns(t *testing.T) {
	assert := assert.New(t)
	g := engine.New()

	assert.NoError(g.Apply("e4"))
	assert.Equal(engine.Black, g.Turn())
	assert.Equal(1, g.Ply())

	assert.NoError(g.Apply("e5"))
	assert.Equal(engine.White, g.Turn())
	assert.Equal(2, g.Ply())
}

func TestApplyRejectsIllegalMoves(t *testing.T) {
	g := engine.New()

	// Illegal, garbage, and wrong-side moves all fail without mutating state.
	for _, san := range []string{"e5", "Ke2", "xyzzy", ""} {
		err := g.Apply(san)
		assert.ErrorIs(t, err, engine.ErrInvalidMove, "move %q", san)
	}
	assert.Equal(t, 0, g.Ply())
	assert.Equal(t, engine.White, g.Turn())
}

func TestFoolsMateIsCheckmate(t *testing.T) {
	assert := assert.New(t)
	g := engine.New()

	for _, san := range []string{"f3", "e5", "g4", "Qh4#"} {
		assert.NoError(g.Apply(san))
	}

	assert.True(g.IsGameOver())
	result, reason := g.Result()
	assert.Equal("0-1", result)
	assert.Equal("checkmate", reason)
}

func TestScholarsMateIsWhiteWin(t *testing.T) {
	assert := assert.New(t)
	g := engine.New()

	for _, san := range []string{"e4", "e5", "Qh5", "Nc6", "Bc4", "Nf6", "Qxf7#"} {
		assert.NoError(g.Apply(san))
	}

	result, reason := g.Result()
	assert.Equal("1-0", result)
	assert.Equal("checkmate", reason)
}

func TestThreefoldRepetitionDrawsAutomatically(t *testing.T) {
	assert := assert.New(t)
	g := engine.New()

	// Shuffle the knights back and forth until the starting position has
	// occurred three times.
	shuffle := []string{"Nf3", "Nf6", "Ng1", "Ng8"}
	for range 2 {
		for _, san := range shuffle {
			assert.NoError(g.Apply(san))
		}
	}

	assert.True(g.IsGameOver())
	result, reason := g.Result()
	assert.Equal("1/2-1/2", result)
	assert.Equal("repetition", reason)
}

func TestResultEmptyWhileInProgress(t *testing.T) {
	g := engine.New()
	assert.NoError(t, g.Apply("d4"))

	result, reason := g.Result()
	assert.Empty(t, result)
	assert.Empty(t, reason)
}

func TestOpponentColor(t *testing.T) {
	assert.Equal(t, engine.Black, engine.White.Opponent())
	assert.Equal(t, engine.White, engine.Black.Opponent())
}
