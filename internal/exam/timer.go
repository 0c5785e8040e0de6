package exam

import (
	"fmt"
	"sync"
	"time"
)

// Clock returns the current instant. Tests substitute a fake.
type Clock func() time.Time

// Timer measures whole seconds since a reference instant. It is never paused.
type Timer struct {
	mu      sync.Mutex
	now     Clock
	start   time.Time
	started bool
	last    int
}

func NewTimer(now Clock) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now}
}

// Start captures the reference instant. Only the first Start or StartAt
// takes effect.
func (t *Timer) Start() {
	t.StartAt(t.now())
}

// StartAt uses a reference instant captured elsewhere, e.g. one persisted
// when the session was first opened. Reports whether the timer was started
// by this call.
func (t *Timer) StartAt(ref time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return false
	}
	t.start = ref
	t.started = true
	return true
}

func (t *Timer) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

func (t *Timer) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start
}

// ElapsedSeconds is floor((now - start) / 1s). It is zero before Start and
// never smaller than a value it already returned, even if the wall clock
// steps backwards under a persisted reference instant.
func (t *Timer) ElapsedSeconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return 0
	}
	secs := int(t.now().Sub(t.start) / time.Second)
	if secs < t.last {
		secs = t.last
	}
	t.last = secs
	return secs
}

// FormatClock renders seconds as HH:MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
