package server

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerServiceFires(t *testing.T) {
	ts := NewTimerService()

	fired := make(chan struct{})
	ts.Schedule("k", 10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	assert.False(t, ts.Pending("k"))
}

func TestTimerServiceCancelPreventsCallback(t *testing.T) {
	ts := NewTimerService()

	var fired atomic.Bool
	ts.Schedule("k", 20*time.Millisecond, func() { fired.Store(true) })
	ts.Cancel("k")

	time.Sleep(60 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.False(t, ts.Pending("k"))
}

func TestTimerServiceRescheduleReplaces(t *testing.T) {
	ts := NewTimerService()

	var first, second atomic.Bool
	ts.Schedule("k", 20*time.Millisecond, func() { first.Store(true) })
	ts.Schedule("k", 40*time.Millisecond, func() { second.Store(true) })

	time.Sleep(100 * time.Millisecond)
	assert.False(t, first.Load(), "replaced callback must not run")
	assert.True(t, second.Load())
}

func TestTimerServiceCancelPrefix(t *testing.T) {
	ts := NewTimerService()

	var graceFired, cleanupFired, otherFired atomic.Bool
	ts.Schedule("ABCDEF:grace", 20*time.Millisecond, func() { graceFired.Store(true) })
	ts.Schedule("ABCDEF:cleanup", 20*time.Millisecond, func() { cleanupFired.Store(true) })
	ts.Schedule("ZZZZZZ:grace", 20*time.Millisecond, func() { otherFired.Store(true) })

	ts.CancelPrefix("ABCDEF:")

	time.Sleep(80 * time.Millisecond)
	assert.False(t, graceFired.Load())
	assert.False(t, cleanupFired.Load())
	assert.True(t, otherFired.Load())
}

func TestTimerServicePending(t *testing.T) {
	ts := NewTimerService()

	assert.False(t, ts.Pending("k"))
	ts.Schedule("k", time.Hour, func() {})
	assert.True(t, ts.Pending("k"))
	ts.Cancel("k")
	assert.False(t, ts.Pending("k"))
}
