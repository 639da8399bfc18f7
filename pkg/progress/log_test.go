package progress

import (
	"reflect"
	"strings"
	"testing"

	"github.com/mikeboe/research-agent/pkg/agent"
)

func TestLogEntriesIdle(t *testing.T) {
	entries := LogEntries(DeriveSteps(stateWith(agent.PhaseIdle, agent.StageNotStarted)))
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}
	if entries[0].Message != "Initialized: Setting up research parameters" {
		t.Errorf("first message = %q", entries[0].Message)
	}
	for i, e := range entries {
		if e.Done {
			t.Errorf("entry %d done in idle state", i)
		}
	}
	if got := FirstNotDone(entries); got != 0 {
		t.Errorf("FirstNotDone = %d, want 0", got)
	}
}

func TestLogEntriesMidRun(t *testing.T) {
	entries := LogEntries(DeriveSteps(stateWith(agent.PhaseAnalyzing, agent.StageOrganizingData)))
	wantDone := []bool{true, true, false, false, false}
	for i, e := range entries {
		if e.Done != wantDone[i] {
			t.Errorf("entry %d done = %v, want %v (%s)", i, e.Done, wantDone[i], e.Message)
		}
	}
	if got := FirstNotDone(entries); got != 2 {
		t.Errorf("FirstNotDone = %d, want 2", got)
	}
}

// A step positioned before the current one counts as done even when its
// completed flag has not flipped yet.
func TestLogEntriesPositionalDone(t *testing.T) {
	steps := []Step{
		{ID: agent.PhaseInitialized, Label: "Initialized", Description: "d", Completed: false},
		{ID: agent.PhaseGathering, Label: "Gathering Information", Description: "d", Current: true},
		{ID: agent.PhaseAnalyzing, Label: "Analyzing Information", Description: "d"},
	}
	entries := LogEntries(steps)
	if !entries[0].Done {
		t.Error("entry before current step should be done despite completed=false")
	}
	if entries[1].Done || entries[2].Done {
		t.Error("current and later entries must not be done")
	}
}

func TestLogEntriesIdempotent(t *testing.T) {
	steps := DeriveSteps(stateWith(agent.PhaseGenerating, agent.StageExecutiveSummary))
	first := LogEntries(steps)
	second := LogEntries(steps)
	if !reflect.DeepEqual(first, second) {
		t.Error("LogEntries not deterministic for identical input")
	}
}

func TestTruncateURLs(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("a", 60)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no url", "plain text stays", "plain text stays"},
		{"short url untouched", "see http://x.com for details", "see http://x.com for details"},
		{
			"exactly 50 untouched",
			"https://example.com/" + strings.Repeat("a", 30),
			"https://example.com/" + strings.Repeat("a", 30),
		},
		{"long url cut", long, long[:47] + "..."},
		{"https scheme", "https://" + strings.Repeat("b", 50), "https://" + strings.Repeat("b", 39) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateURLs(tt.in)
			if got != tt.want {
				t.Errorf("TruncateURLs(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if got := TruncateURLs(long); len(got) != 50 {
		t.Errorf("truncated URL length = %d, want 50", len(got))
	}
}

func TestSourceCountLabel(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{-1, ""},
		{1, "Found 1 source"},
		{2, "Found 2 sources"},
		{17, "Found 17 sources"},
	}
	for _, tt := range tests {
		if got := SourceCountLabel(tt.n); got != tt.want {
			t.Errorf("SourceCountLabel(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestVisibilityPolicy(t *testing.T) {
	tests := []struct {
		policy VisibilityPolicy
		status agent.RunStatus
		want   bool
	}{
		{PolicyAlways, agent.RunNotStarted, true},
		{PolicyAlways, agent.RunInProgress, true},
		{PolicyAlways, agent.RunComplete, true},
		{PolicyGatedByStatus, agent.RunNotStarted, false},
		{PolicyGatedByStatus, agent.RunInProgress, true},
		{PolicyGatedByStatus, agent.RunComplete, true},
	}
	for _, tt := range tests {
		if got := tt.policy.Visible(tt.status); got != tt.want {
			t.Errorf("policy %d status %q: visible = %v, want %v", tt.policy, tt.status, got, tt.want)
		}
	}
}
