package server

import (
	"errors"
	"math/rand"
	"strings"
)

// roomCodeAlphabet omits I, O, 0 and 1 so codes read unambiguously when
// shared over voice or handwriting.
const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
)

// GenerateRoomCode samples uniformly from the code space, rejecting codes
// that are already in use.
func GenerateRoomCode(usedCodes map[string]bool) string {
	for {
		code := make([]byte, roomCodeLength)
		for i := range code {
			code[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
		}
		roomCode := string(code)

		if !usedCodes[roomCode] {
			return roomCode
		}
	}
}

func ValidateRoomCode(code string) error {
	if len(code) != roomCodeLength {
		return errors.New("Room code must be exactly 6 characters")
	}

	for _, ch := range code {
		if !strings.ContainsRune(roomCodeAlphabet, ch) {
			return errors.New("Room code contains invalid characters")
		}
	}

	return nil
}

// NormalizeRoomCode upper-cases client input; codes are case-insensitive on
// the wire.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
