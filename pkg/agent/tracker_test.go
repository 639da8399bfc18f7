package agent

import (
	"reflect"
	"testing"
)

func TestTrackerMutators(t *testing.T) {
	tracker := NewTracker("run-1", "msg-1", "quantum computing", nil)

	state := tracker.State()
	if state.Status.Phase != PhaseInitialized {
		t.Fatalf("initial phase = %q, want %q", state.Status.Phase, PhaseInitialized)
	}
	if state.Research.Stage != StageNotStarted {
		t.Fatalf("initial stage = %q, want %q", state.Research.Stage, StageNotStarted)
	}
	if !state.UI.ShowProgress {
		t.Error("initial state should show progress")
	}

	tracker.SetInProgress(true)
	tracker.UpdatePhase(PhaseGathering, StageSearching, 0.2)
	tracker.AddSources([]Source{
		{Title: "A", URL: "http://x.com"},
		{Title: "B", URL: "http://y.com", Snippet: "preview"},
	})

	state = tracker.State()
	if state.Status.Phase != PhaseGathering || state.Research.Stage != StageSearching {
		t.Errorf("got phase=%q stage=%q", state.Status.Phase, state.Research.Stage)
	}
	if state.Processing.Progress != 0.2 {
		t.Errorf("progress = %v, want 0.2", state.Processing.Progress)
	}
	if state.Research.SourcesFound != 2 || len(state.Research.Sources) != 2 {
		t.Errorf("sources_found=%d len(sources)=%d, want 2/2",
			state.Research.SourcesFound, len(state.Research.Sources))
	}

	// Negative progress leaves the previous value in place.
	tracker.UpdatePhase(PhaseAnalyzing, StageOrganizingData, -1)
	if got := tracker.State().Processing.Progress; got != 0.2 {
		t.Errorf("progress after phase-only update = %v, want 0.2", got)
	}

	tracker.Complete("# Report")
	state = tracker.State()
	if state.Status.Phase != PhaseCompleted || state.Research.Stage != StageReportComplete {
		t.Errorf("got phase=%q stage=%q after complete", state.Status.Phase, state.Research.Stage)
	}
	if state.Processing.Report == nil || *state.Processing.Report != "# Report" {
		t.Error("report not set")
	}
	if state.Processing.InProgress || !state.Processing.Completed || state.Processing.Progress != 1.0 {
		t.Errorf("completion flags wrong: %+v", state.Processing)
	}
}

// The replica must converge to the tracker state when it applies the emitted
// events in publish order.
func TestReplicaConvergence(t *testing.T) {
	replica := NewReplica()
	tracker := NewTracker("run-1", "msg-1", "climate change", func(ev Event) {
		if err := replica.Apply(ev); err != nil {
			t.Fatalf("apply %s: %v", ev.Type, err)
		}
	})

	tracker.EmitSnapshot()
	tracker.SetInProgress(true)
	tracker.UpdatePhase(PhaseGathering, StageSearching, 0.2)
	tracker.AddSources([]Source{{Title: "A", URL: "http://x.com", Snippet: "s"}})
	tracker.UpdatePhase(PhaseAnalyzing, StageOrganizingData, 0.5)
	tracker.SetError("rate limited, retrying")
	tracker.UpdatePhase(PhaseGenerating, StageCreatingReport, 0.8)
	tracker.Complete("# Title\n\nBody")

	want := tracker.State()
	got := replica.State()

	if !reflect.DeepEqual(got, want) {
		t.Errorf("replica diverged:\n got %+v\nwant %+v", got, want)
	}
	if got.Status.Error != "rate limited, retrying" {
		t.Errorf("error not replicated: %q", got.Status.Error)
	}
}

func TestReplicaDeltaBeforeSnapshot(t *testing.T) {
	replica := NewReplica()
	err := replica.Apply(Event{Type: EventStateDelta, Delta: []PatchOp{
		{Op: "replace", Path: "/status/phase", Value: PhaseGathering},
	}})
	if err == nil {
		t.Fatal("expected error applying delta before snapshot")
	}
	// The render path stays total: state is the zero value, derived as idle.
	if got := replica.State().Status.Phase.Index(); got != -1 {
		t.Errorf("zero state phase index = %d, want -1", got)
	}
}

func TestPhaseIndex(t *testing.T) {
	tests := []struct {
		phase Phase
		want  int
	}{
		{PhaseIdle, -1},
		{PhaseInitialized, 0},
		{PhaseGathering, 1},
		{PhaseAnalyzing, 2},
		{PhaseGenerating, 3},
		{PhaseCompleted, 4},
		{Phase("bogus"), -1},
		{Phase(""), -1},
	}
	for _, tt := range tests {
		if got := tt.phase.Index(); got != tt.want {
			t.Errorf("Index(%q) = %d, want %d", tt.phase, got, tt.want)
		}
	}
}
