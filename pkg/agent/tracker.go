package agent

import (
	"sync"
	"time"
)

// Tracker owns the canonical ResearchState for one run and emits an event for
// every mutation: a STATE_SNAPSHOT on demand and a STATE_DELTA carrying JSON
// Patch operations for each incremental change. Consumers that apply the
// events in order reconstruct the exact same state.
type Tracker struct {
	mu        sync.Mutex
	runID     string
	messageID string
	state     ResearchState
	emit      func(Event)
}

// NewTracker creates a tracker with the initial state for query. emit may be
// nil when no consumer is attached.
func NewTracker(runID, messageID, query string, emit func(Event)) *Tracker {
	return &Tracker{
		runID:     runID,
		messageID: messageID,
		state:     NewResearchState(query),
		emit:      emit,
	}
}

// State returns a copy of the current state.
func (t *Tracker) State() ResearchState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// EmitSnapshot publishes the full current state.
func (t *Tracker) EmitSnapshot() {
	t.mu.Lock()
	snapshot := t.state.Clone()
	t.mu.Unlock()
	t.send(Event{Type: EventStateSnapshot, Snapshot: &snapshot})
}

// EmitNode publishes a workflow node transition.
func (t *Tracker) EmitNode(node string) {
	t.send(Event{Type: EventNodeTransition, Node: node})
}

// UpdatePhase moves the run to phase/stage. A negative progress leaves the
// current progress untouched.
func (t *Tracker) UpdatePhase(phase Phase, stage string, progress float64) {
	t.mu.Lock()
	t.state.Status.Phase = phase
	t.state.Research.Stage = stage
	t.state.Status.Timestamp = time.Now().Format(time.RFC3339)
	ops := []PatchOp{
		{Op: "replace", Path: "/status/phase", Value: phase},
		{Op: "replace", Path: "/research/stage", Value: stage},
		{Op: "replace", Path: "/status/timestamp", Value: t.state.Status.Timestamp},
	}
	if progress >= 0 {
		t.state.Processing.Progress = progress
		ops = append(ops, PatchOp{Op: "replace", Path: "/processing/progress", Value: progress})
	}
	t.mu.Unlock()
	t.sendDelta(ops)
}

// SetInProgress flips the processing.inProgress flag.
func (t *Tracker) SetInProgress(inProgress bool) {
	t.mu.Lock()
	t.state.Processing.InProgress = inProgress
	t.mu.Unlock()
	t.sendDelta([]PatchOp{
		{Op: "replace", Path: "/processing/inProgress", Value: inProgress},
	})
}

// AddSources appends sources and keeps sources_found in sync with the list.
func (t *Tracker) AddSources(sources []Source) {
	t.mu.Lock()
	t.state.Research.Sources = append(t.state.Research.Sources, sources...)
	t.state.Research.SourcesFound = len(t.state.Research.Sources)
	all := make([]Source, len(t.state.Research.Sources))
	copy(all, t.state.Research.Sources)
	count := t.state.Research.SourcesFound
	t.mu.Unlock()
	t.sendDelta([]PatchOp{
		{Op: "replace", Path: "/research/sources", Value: all},
		{Op: "replace", Path: "/research/sources_found", Value: count},
	})
}

// SetError records an error on the status. The run keeps going; stopping is
// governed by the terminal node signal, not by errors.
func (t *Tracker) SetError(message string) {
	t.mu.Lock()
	t.state.Status.Error = message
	t.mu.Unlock()
	// "add" upserts object members; "replace" would fail while the error
	// field is still absent from the replica document.
	t.sendDelta([]PatchOp{
		{Op: "add", Path: "/status/error", Value: message},
	})
	t.send(Event{Type: EventRunError, Error: message})
}

// Complete marks the run finished and attaches the final report.
func (t *Tracker) Complete(report string) {
	t.mu.Lock()
	t.state.Status.Phase = PhaseCompleted
	t.state.Research.Stage = StageReportComplete
	t.state.Research.Completed = true
	t.state.Processing.Completed = true
	t.state.Processing.InProgress = false
	t.state.Processing.Report = &report
	t.state.Processing.Progress = 1.0
	t.mu.Unlock()
	t.sendDelta([]PatchOp{
		{Op: "replace", Path: "/status/phase", Value: PhaseCompleted},
		{Op: "replace", Path: "/research/stage", Value: StageReportComplete},
		{Op: "replace", Path: "/research/completed", Value: true},
		{Op: "replace", Path: "/processing/completed", Value: true},
		{Op: "replace", Path: "/processing/inProgress", Value: false},
		{Op: "replace", Path: "/processing/report", Value: report},
		{Op: "replace", Path: "/processing/progress", Value: 1.0},
	})
}

func (t *Tracker) sendDelta(ops []PatchOp) {
	t.send(Event{Type: EventStateDelta, Delta: ops})
}

func (t *Tracker) send(ev Event) {
	if t.emit == nil {
		return
	}
	ev.RunID = t.runID
	ev.MessageID = t.messageID
	t.emit(ev)
}
