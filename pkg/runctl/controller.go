// Package runctl tracks the lifecycle of one agent run and decides when to
// issue the external stop call. Stopping is debounced: the terminal workflow
// node can fire slightly before the final state flush, so the stop is
// scheduled rather than issued synchronously.
package runctl

import (
	"sync"
	"time"

	"github.com/mikeboe/research-agent/pkg/agent"
)

// RunState is the controller's lifecycle state.
type RunState int

const (
	NotStarted RunState = iota
	InProgress
	Stopping
	Stopped
)

func (s RunState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// DefaultStopDelay is how long the controller waits after the terminal node
// before issuing the stop.
const DefaultStopDelay = 1000 * time.Millisecond

// Controller is a state machine over the run lifecycle, independent of the
// research state itself. It guarantees the stop callback fires at most once
// per run, and that a pending stop scheduled for a previous run can never
// terminate a newer one.
type Controller struct {
	mu      sync.Mutex
	state   RunState
	stop    func()
	delay   time.Duration
	timer   *time.Timer
	stopped bool
	gen     int
}

// NewController returns a controller that calls stop when a scheduled stop
// fires.
func NewController(stop func()) *Controller {
	return &Controller{
		stop:  stop,
		delay: DefaultStopDelay,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HandleStatus feeds the external run-status signal into the machine. An
// in-progress or complete signal while the controller is idle begins a run.
func (c *Controller) HandleStatus(status agent.RunStatus) {
	if status == agent.RunInProgress || status == agent.RunComplete {
		c.Begin()
	}
}

// Begin transitions NOT_STARTED/STOPPED to IN_PROGRESS. Any stop still
// pending from a previous run is cancelled so it cannot kill the new one.
func (c *Controller) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == InProgress {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.stopped = false
	c.state = InProgress
}

// HandleNode feeds a workflow node-transition event into the machine. The
// terminal node schedules the delayed stop; every other node is ignored.
func (c *Controller) HandleNode(node string) {
	if node != agent.TerminalNode {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != InProgress {
		// Duplicate or out-of-order terminal signals are no-ops.
		return
	}
	c.state = Stopping
	gen := c.gen
	c.timer = time.AfterFunc(c.delay, func() {
		c.fire(gen)
	})
}

// fire runs when the scheduled stop elapses. The generation check discards a
// timer that lost the race against Begin; the stopped flag keeps the external
// stop call idempotent even under overlapping callbacks.
func (c *Controller) fire(gen int) {
	c.mu.Lock()
	if gen != c.gen || c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.state = Stopped
	c.timer = nil
	stop := c.stop
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
}
