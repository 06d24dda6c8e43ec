package server

import (
	"strings"
	"sync"
	"time"
)

// TimerService schedules keyed one-shot callbacks. Scheduling under a key
// that already has a pending timer replaces it; Cancel before the timer fires
// guarantees the callback never runs. Callbacks must re-validate the state
// they act on, since a cancel can race the firing by a hair.
type TimerService struct {
	timers map[string]*time.Timer
	mu     sync.Mutex
}

func NewTimerService() *TimerService {
	return &TimerService{
		timers: make(map[string]*time.Timer),
	}
}

func (ts *TimerService) Schedule(key string, delay time.Duration, fn func()) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if existing, ok := ts.timers[key]; ok {
		existing.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		ts.mu.Lock()
		// A replacement may have been scheduled under the same key after
		// this timer was queued to fire; only the current owner runs. The
		// mutex also orders this read after the assignment below.
		current := ts.timers[key] == timer
		if current {
			delete(ts.timers, key)
		}
		ts.mu.Unlock()

		if current {
			fn()
		}
	})
	ts.timers[key] = timer
}

// Cancel stops the pending timer for key, if any.
func (ts *TimerService) Cancel(key string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if timer, ok := ts.timers[key]; ok {
		timer.Stop()
		delete(ts.timers, key)
	}
}

// CancelPrefix stops every pending timer whose key starts with prefix. Rooms
// key their timers as "<code>:<kind>", so cleanup cancels "<code>:".
func (ts *TimerService) CancelPrefix(prefix string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for key, timer := range ts.timers {
		if strings.HasPrefix(key, prefix) {
			timer.Stop()
			delete(ts.timers, key)
		}
	}
}

// Pending reports whether a timer is scheduled under key.
func (ts *TimerService) Pending(key string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	_, ok := ts.timers[key]
	return ok
}
