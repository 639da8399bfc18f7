package research

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/research-agent/pkg/agent"
	"github.com/mikeboe/research-agent/pkg/research/tools"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeSearch struct {
	results []tools.SerperResult
	err     error
}

func (f *fakeSearch) Search(ctx context.Context, query string, maxResults int) ([]tools.SerperResult, error) {
	return f.results, f.err
}

func newTestEngine(llm llms.Model, search Searcher) *Engine {
	return &Engine{
		Config: Config{MaxSources: 5},
		LLM:    llm,
		Search: search,
		Logger: slog.Default(),
	}
}

func TestRunHappyPath(t *testing.T) {
	var events []agent.Event
	tracker := agent.NewTracker("run-1", "msg-1", "solar power", func(ev agent.Event) {
		events = append(events, ev)
	})

	engine := newTestEngine(
		&fakeLLM{response: "# Report\n\nFindings."},
		&fakeSearch{results: []tools.SerperResult{
			{Title: "A", Link: "http://x.com", Snippet: "s1"},
			{Title: "B", Link: "http://y.com", Snippet: "s2"},
		}},
	)

	reply, err := engine.Run(context.Background(), tracker)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply == "" {
		t.Error("empty reply")
	}

	state := tracker.State()
	if state.Status.Phase != agent.PhaseCompleted {
		t.Errorf("final phase = %q", state.Status.Phase)
	}
	if state.Research.SourcesFound != 2 || len(state.Research.Sources) != 2 {
		t.Errorf("sources: found=%d len=%d", state.Research.SourcesFound, len(state.Research.Sources))
	}
	if state.Processing.Report == nil || *state.Processing.Report != "# Report\n\nFindings." {
		t.Error("report not attached")
	}

	// Phase progression must be monotonic through the fixed sequence, and the
	// terminal node must be emitted exactly once.
	lastIdx := -1
	terminals := 0
	for _, ev := range events {
		switch ev.Type {
		case agent.EventStateDelta:
			for _, op := range ev.Delta {
				if op.Path == "/status/phase" {
					idx := op.Value.(agent.Phase).Index()
					if idx < lastIdx {
						t.Errorf("phase went backwards: %v after index %d", op.Value, lastIdx)
					}
					lastIdx = idx
				}
			}
		case agent.EventNodeTransition:
			if ev.Node == agent.TerminalNode {
				terminals++
			}
		}
	}
	if terminals != 1 {
		t.Errorf("terminal node emitted %d times, want 1", terminals)
	}
}

func TestRunNoResults(t *testing.T) {
	tracker := agent.NewTracker("run-1", "msg-1", "obscure topic", nil)
	engine := newTestEngine(&fakeLLM{response: "unused"}, &fakeSearch{})

	reply, err := engine.Run(context.Background(), tracker)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply == "" {
		t.Error("empty reply")
	}

	state := tracker.State()
	if state.Status.Phase != agent.PhaseCompleted {
		t.Errorf("final phase = %q", state.Status.Phase)
	}
	if state.Processing.Report == nil || *state.Processing.Report != noResultsReport {
		t.Error("no-results report not attached")
	}
	if state.Research.SourcesFound != 0 {
		t.Errorf("sources_found = %d, want 0", state.Research.SourcesFound)
	}
}

func TestRunSearchErrorRecordedNotFatal(t *testing.T) {
	tracker := agent.NewTracker("run-1", "msg-1", "anything", nil)
	engine := newTestEngine(&fakeLLM{response: "unused"}, &fakeSearch{err: fmt.Errorf("boom")})

	if _, err := engine.Run(context.Background(), tracker); err != nil {
		t.Fatalf("search failure must not fail the run: %v", err)
	}

	state := tracker.State()
	if state.Status.Error == "" {
		t.Error("search error not recorded on status")
	}
	if state.Status.Phase != agent.PhaseCompleted {
		t.Errorf("final phase = %q, want completed", state.Status.Phase)
	}
}
