package server

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// Time-control grammar: "M+S" (minutes + increment seconds), or the literals
// "none" (untimed) and "any" (matchmaking wildcard, never attached to a room).
const (
	TimeControlNone = "none"
	TimeControlAny  = "any"
)

var timeControlPattern = regexp.MustCompile(`^\d+\+\d+$`)

// ValidateTimeControl checks the full grammar including the wildcard.
func ValidateTimeControl(tc string) error {
	if tc == TimeControlNone || tc == TimeControlAny {
		return nil
	}
	if !timeControlPattern.MatchString(tc) {
		return errors.New("Invalid time control")
	}
	return nil
}

// NormalizeTimeControl resolves a client-supplied time control to one a room
// can be created with. Empty input means "use the default", and the wildcard
// collapses to the default too: "any" only means something inside a queue.
func NormalizeTimeControl(tc, defaultTC string) (string, error) {
	tc = strings.TrimSpace(tc)
	if tc == "" || tc == TimeControlAny {
		return defaultTC, nil
	}
	if err := ValidateTimeControl(tc); err != nil {
		return "", err
	}
	return tc, nil
}

// NewClocksFor builds the clock pair for a time-control spec, or nil for an
// untimed game. The spec must already be normalized.
func NewClocksFor(tc string) *Clocks {
	if tc == TimeControlNone {
		return nil
	}

	parts := strings.SplitN(tc, "+", 2)
	minutes, _ := strconv.ParseInt(parts[0], 10, 64)
	incrementSec, _ := strconv.ParseInt(parts[1], 10, 64)

	initial := minutes * 60 * 1000
	return &Clocks{
		WhiteMS:     initial,
		BlackMS:     initial,
		IncrementMS: incrementSec * 1000,
	}
}
