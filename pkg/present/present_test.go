package present

import (
	"testing"

	"github.com/mikeboe/research-agent/pkg/agent"
)

func TestRenderPlaceholders(t *testing.T) {
	var state agent.ResearchState

	running := Render(state, true)
	if !running.InProgress || running.Placeholder != "Generating report..." {
		t.Errorf("running view = %+v", running)
	}

	idle := Render(state, false)
	if idle.InProgress {
		t.Error("idle view marked in progress")
	}
	if idle.Placeholder == "" || idle.Placeholder == running.Placeholder {
		t.Errorf("idle placeholder %q must differ from running placeholder", idle.Placeholder)
	}
}

func TestRenderQueryBlock(t *testing.T) {
	var state agent.ResearchState
	if Render(state, false).ShowQuery {
		t.Error("empty query should not render a question block")
	}

	state.Research.Query = "impact of microplastics"
	view := Render(state, false)
	if !view.ShowQuery || view.Query != "impact of microplastics" {
		t.Errorf("view = %+v", view)
	}
}

func TestRenderReportBlocks(t *testing.T) {
	report := "# Title\n\nBody"
	var state agent.ResearchState
	state.Processing.Report = &report

	view := Render(state, true)
	if view.Placeholder != "" || view.InProgress {
		t.Error("placeholder shown although a report exists")
	}
	if len(view.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2: %+v", len(view.Blocks), view.Blocks)
	}
	if view.Blocks[0].Kind != Heading || view.Blocks[0].Level != 1 || view.Blocks[0].Text != "Title" {
		t.Errorf("heading block = %+v", view.Blocks[0])
	}
	if view.Blocks[1].Kind != Paragraph || view.Blocks[1].Text != "Body" {
		t.Errorf("paragraph block = %+v", view.Blocks[1])
	}
}

func TestRenderReportLists(t *testing.T) {
	report := "## Key Findings\n\n- first finding\n- second finding"
	var state agent.ResearchState
	state.Processing.Report = &report

	view := Render(state, false)
	if len(view.Blocks) != 3 {
		t.Fatalf("got %d blocks: %+v", len(view.Blocks), view.Blocks)
	}
	if view.Blocks[0].Kind != Heading || view.Blocks[0].Level != 2 {
		t.Errorf("heading block = %+v", view.Blocks[0])
	}
	for i, want := range []string{"first finding", "second finding"} {
		block := view.Blocks[i+1]
		if block.Kind != ListItem || block.Text != want {
			t.Errorf("list block %d = %+v, want %q", i, block, want)
		}
	}
}

func TestRenderSources(t *testing.T) {
	var state agent.ResearchState
	state.Research.Sources = []agent.Source{
		{Title: "A", URL: "http://x.com"},
	}

	view := Render(state, false)
	if len(view.Sources) != 1 {
		t.Fatalf("got %d sources", len(view.Sources))
	}
	src := view.Sources[0]
	if src.Index != 1 || src.Title != "A" || src.URL != "http://x.com" || src.Snippet != "" {
		t.Errorf("source = %+v", src)
	}
	if view.SourcesLabel != "1 source" {
		t.Errorf("label = %q", view.SourcesLabel)
	}

	state.Research.Sources = append(state.Research.Sources, agent.Source{Title: "B", URL: "http://y.com", Snippet: "s"})
	if got := Render(state, false).SourcesLabel; got != "2 sources" {
		t.Errorf("label = %q", got)
	}
}

func TestRenderEmptySources(t *testing.T) {
	view := Render(agent.ResearchState{}, false)
	if len(view.Sources) != 0 || view.SourcesLabel != "" {
		t.Errorf("view = %+v", view)
	}
}
