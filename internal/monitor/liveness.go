package monitor

import (
	"time"

	"github.com/benbjohnson/clock"
)

// ConnectivityState is the device reachability verdict.
type ConnectivityState int

const (
	Disconnected ConnectivityState = iota
	Connected
)

func (s ConnectivityState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// LivenessTracker is a watchdog: every Touch re-arms a single timer, and the
// device is declared Disconnected only when that timer elapses untouched.
//
// It is not safe for concurrent use. The expiry callback runs on the timer's
// goroutine and must re-enter through the owner's lock before calling Expire.
type LivenessTracker struct {
	clock    clock.Clock
	window   time.Duration
	onExpire func(gen uint64)

	state    ConnectivityState
	timer    *clock.Timer
	gen      uint64
	deadline time.Time
}

func NewLivenessTracker(clk clock.Clock, window time.Duration, onExpire func(gen uint64)) *LivenessTracker {
	return &LivenessTracker{
		clock:    clk,
		window:   window,
		onExpire: onExpire,
	}
}

// Touch records an ingestion event. It returns true on a
// Disconnected->Connected transition.
func (t *LivenessTracker) Touch() bool {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.deadline = t.clock.Now().Add(t.window)
	t.timer = t.clock.AfterFunc(t.window, func() { t.onExpire(gen) })

	if t.state == Connected {
		return false
	}
	t.state = Connected
	return true
}

// Expire handles a timer firing for generation gen. Timers superseded by a
// later Touch are ignored. It returns true on a Connected->Disconnected
// transition.
func (t *LivenessTracker) Expire(gen uint64) bool {
	if gen != t.gen || t.state != Connected {
		return false
	}
	t.state = Disconnected
	t.timer = nil
	return true
}

func (t *LivenessTracker) State() ConnectivityState {
	return t.state
}

// Deadline is the instant the device will be declared disconnected absent
// further ingestion. Zero before the first Touch.
func (t *LivenessTracker) Deadline() time.Time {
	return t.deadline
}

// Stop cancels the pending timer without changing state.
func (t *LivenessTracker) Stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}
