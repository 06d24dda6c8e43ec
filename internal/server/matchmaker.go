package server

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
)

var (
	ErrAlreadyQueued = errors.New("Already in queue")
	ErrAlreadySeated = errors.New("Already in a game")
)

// QueueEntry is one waiting player.
type QueueEntry struct {
	Session string
	Name    string
	ConnID  string
	Tag     string
}

// MatchResult is a successful pairing with colours already assigned.
type MatchResult struct {
	White       QueueEntry
	Black       QueueEntry
	TimeControl string // effective time control, never the wildcard
}

// Matchmaker holds one FIFO queue per time-control tag, including the
// wildcard tag "any". A session is in at most one queue at a time, and never
// in a queue while seated in a room.
type Matchmaker struct {
	queues    map[string][]QueueEntry
	defaultTC string
	isAlive   func(connID, session string) bool
	isSeated  func(session string) bool
	mu        sync.Mutex
}

func NewMatchmaker(defaultTC string, isAlive func(connID, session string) bool, isSeated func(session string) bool) *Matchmaker {
	return &Matchmaker{
		queues:    make(map[string][]QueueEntry),
		defaultTC: defaultTC,
		isAlive:   isAlive,
		isSeated:  isSeated,
	}
}

// Join pairs the caller with a waiting opponent, or enqueues them. Returns
// either a match, or the caller's 1-based queue position. Pairing is atomic:
// the queues are not observable between the pop and the returned match.
func (m *Matchmaker) Join(entry QueueEntry) (*MatchResult, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inAnyQueue(entry.Session) {
		return nil, 0, ErrAlreadyQueued
	}
	if m.isSeated(entry.Session) {
		return nil, 0, ErrAlreadySeated
	}

	for {
		opponent, ok := m.pop(entry.Tag)
		if !ok {
			m.queues[entry.Tag] = append(m.queues[entry.Tag], entry)
			return nil, len(m.queues[entry.Tag]), nil
		}

		// A queued player whose connection died without a close event is
		// discarded, not matched.
		if !m.isAlive(opponent.ConnID, opponent.Session) {
			continue
		}

		return m.pair(entry, opponent), 0, nil
	}
}

// Leave removes the session from whichever queue holds it. Idempotent.
func (m *Matchmaker) Leave(session string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for tag, queue := range m.queues {
		for i, entry := range queue {
			if entry.Session == session {
				m.queues[tag] = append(queue[:i], queue[i+1:]...)
				return true
			}
		}
	}
	return false
}

// HandleDisconnect is the transport's close hook.
func (m *Matchmaker) HandleDisconnect(session string) {
	m.Leave(session)
}

// QueuedCount returns the number of waiting players across all tags.
func (m *Matchmaker) QueuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, queue := range m.queues {
		total += len(queue)
	}
	return total
}

func (m *Matchmaker) inAnyQueue(session string) bool {
	for _, queue := range m.queues {
		for _, entry := range queue {
			if entry.Session == session {
				return true
			}
		}
	}
	return false
}

// pop selects an opponent for the given tag. A specific tag prefers its own
// queue and falls back to the wildcard queue; the wildcard tag scans all
// queues in sorted-tag order so tests can predict the choice.
func (m *Matchmaker) pop(tag string) (QueueEntry, bool) {
	if tag == TimeControlAny {
		tags := make([]string, 0, len(m.queues))
		for t := range m.queues {
			tags = append(tags, t)
		}
		sort.Strings(tags)

		for _, t := range tags {
			if entry, ok := m.popHead(t); ok {
				return entry, true
			}
		}
		return QueueEntry{}, false
	}

	if entry, ok := m.popHead(tag); ok {
		return entry, true
	}
	return m.popHead(TimeControlAny)
}

func (m *Matchmaker) popHead(tag string) (QueueEntry, bool) {
	queue := m.queues[tag]
	if len(queue) == 0 {
		return QueueEntry{}, false
	}

	head := queue[0]
	m.queues[tag] = queue[1:]
	return head, true
}

// pair fixes the effective time control and flips a fair coin for colours.
// When a specific tag meets the wildcard, the specific side wins; two
// wildcards play the default.
func (m *Matchmaker) pair(caller, opponent QueueEntry) *MatchResult {
	tc := caller.Tag
	if tc == TimeControlAny {
		tc = opponent.Tag
	}
	if tc == TimeControlAny {
		tc = m.defaultTC
	}

	white, black := caller, opponent
	if rand.Intn(2) == 0 {
		white, black = opponent, caller
	}

	return &MatchResult{White: white, Black: black, TimeControl: tc}
}
