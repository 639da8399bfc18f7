package runctl

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/mikeboe/research-agent/pkg/agent"
)

func newTestController(delay time.Duration, calls *atomic.Int32) *Controller {
	c := NewController(func() { calls.Add(1) })
	c.delay = delay
	return c
}

func TestTransitions(t *testing.T) {
	var calls atomic.Int32
	c := newTestController(10*time.Millisecond, &calls)

	if c.State() != NotStarted {
		t.Fatalf("initial state = %s", c.State())
	}

	c.HandleStatus(agent.RunInProgress)
	if c.State() != InProgress {
		t.Fatalf("state after status = %s", c.State())
	}

	c.HandleNode("research")
	if c.State() != InProgress {
		t.Fatal("non-terminal node must not change state")
	}

	c.HandleNode(agent.TerminalNode)
	if c.State() != Stopping {
		t.Fatalf("state after terminal node = %s", c.State())
	}

	time.Sleep(50 * time.Millisecond)
	if c.State() != Stopped {
		t.Fatalf("state after delay = %s", c.State())
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("stop called %d times, want 1", got)
	}
}

// Two terminal signals inside the debounce window produce exactly one stop,
// roughly one delay after the first signal.
func TestDuplicateTerminalSignals(t *testing.T) {
	var calls atomic.Int32
	c := newTestController(100*time.Millisecond, &calls)

	c.Begin()
	start := time.Now()
	c.HandleNode(agent.TerminalNode)
	time.Sleep(20 * time.Millisecond)
	c.HandleNode(agent.TerminalNode)

	deadline := time.After(time.Second)
	for c.State() != Stopped {
		select {
		case <-deadline:
			t.Fatal("controller never stopped")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("stopped after %v, want >= delay", elapsed)
	}
	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("stop called %d times, want 1", got)
	}
}

// A run starting while a stop is pending cancels the stale stop.
func TestNewRunCancelsPendingStop(t *testing.T) {
	var calls atomic.Int32
	c := newTestController(50*time.Millisecond, &calls)

	c.Begin()
	c.HandleNode(agent.TerminalNode)
	c.Begin() // new run before the stop fires

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("stale stop fired %d times against the new run", got)
	}
	if c.State() != InProgress {
		t.Errorf("state = %s, want in_progress", c.State())
	}
}

func TestTerminalBeforeStartIgnored(t *testing.T) {
	var calls atomic.Int32
	c := newTestController(10*time.Millisecond, &calls)

	c.HandleNode(agent.TerminalNode)
	time.Sleep(30 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("stop called %d times before any run", got)
	}
	if c.State() != NotStarted {
		t.Errorf("state = %s, want not_started", c.State())
	}
}

func TestRestartAfterStopped(t *testing.T) {
	var calls atomic.Int32
	c := newTestController(10*time.Millisecond, &calls)

	c.Begin()
	c.HandleNode(agent.TerminalNode)
	time.Sleep(30 * time.Millisecond)
	if c.State() != Stopped {
		t.Fatalf("state = %s, want stopped", c.State())
	}

	c.HandleStatus(agent.RunInProgress)
	if c.State() != InProgress {
		t.Fatalf("state after restart = %s", c.State())
	}
	c.HandleNode(agent.TerminalNode)
	time.Sleep(30 * time.Millisecond)
	if got := calls.Load(); got != 2 {
		t.Errorf("stop called %d times across two runs, want 2", got)
	}
}
