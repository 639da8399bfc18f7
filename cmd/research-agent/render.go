package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mikeboe/research-agent/pkg/agent"
	"github.com/mikeboe/research-agent/pkg/present"
	"github.com/mikeboe/research-agent/pkg/progress"
)

// Adaptive color palette, adjusts for light/dark terminals.
var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#00A86B", Dark: "#73D16C"}
	colorPrimary = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#888888", Dark: "#626262"}
)

var (
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess)
	stylePrimary = lipgloss.NewStyle().Foreground(colorPrimary)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleBold    = lipgloss.NewStyle().Bold(true)
	styleHeading = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
)

var (
	iconDone    = styleSuccess.Render("✓")
	iconActive  = stylePrimary.Render("›")
	iconPending = styleMuted.Render("·")
)

// progressPrinter turns the stream of replica states into incremental
// terminal output: each progress entry is printed once when it becomes
// active, then checked off when it completes.
type progressPrinter struct {
	printed map[string]bool
	sources int
}

func newProgressPrinter() *progressPrinter {
	return &progressPrinter{printed: map[string]bool{}}
}

// Update prints whatever changed since the previous state.
func (p *progressPrinter) Update(state agent.ResearchState) {
	entries := progress.LogEntries(progress.DeriveSteps(state))
	active := progress.FirstNotDone(entries)

	for i, e := range entries {
		show := e.Done || i == active
		if !show || p.printed[e.Message] {
			continue
		}
		p.printed[e.Message] = true
		icon := iconActive
		if e.Done {
			icon = iconDone
		}
		fmt.Printf("  %s %s\n", icon, e.Message)
	}

	if state.Research.SourcesFound != p.sources {
		p.sources = state.Research.SourcesFound
		if label := progress.SourceCountLabel(p.sources); label != "" {
			fmt.Printf("    %s\n", styleMuted.Render(label))
		}
	}
}

// Summary prints the full checklist once the run is over.
func (p *progressPrinter) Summary(state agent.ResearchState) {
	entries := progress.LogEntries(progress.DeriveSteps(state))
	active := progress.FirstNotDone(entries)

	fmt.Println()
	for i, e := range entries {
		icon := iconPending
		switch {
		case e.Done:
			icon = iconDone
		case i == active:
			icon = iconActive
		}
		msg := e.Message
		if !e.Done && i != active {
			msg = styleMuted.Render(msg)
		}
		fmt.Printf("  %s %s\n", icon, msg)
	}
}

// renderView prints the final report pane: query, report blocks, sources.
func renderView(view present.View) {
	var b strings.Builder

	if view.ShowQuery {
		b.WriteString(styleMuted.Render("Research question"))
		b.WriteString("\n")
		b.WriteString(styleBold.Render(view.Query))
		b.WriteString("\n\n")
	}

	if len(view.Blocks) == 0 {
		b.WriteString(styleMuted.Render(view.Placeholder))
		b.WriteString("\n")
	}

	for _, block := range view.Blocks {
		switch block.Kind {
		case present.Heading:
			b.WriteString(styleHeading.Render(strings.Repeat("#", block.Level) + " " + block.Text))
			b.WriteString("\n\n")
		case present.ListItem:
			b.WriteString("  • " + block.Text + "\n")
		default:
			b.WriteString(block.Text + "\n\n")
		}
	}

	if len(view.Sources) > 0 {
		b.WriteString("\n")
		b.WriteString(styleHeading.Render("Sources") + " " + styleMuted.Render("("+view.SourcesLabel+")"))
		b.WriteString("\n")
		for _, src := range view.Sources {
			b.WriteString(fmt.Sprintf("  %d. %s\n     %s\n", src.Index, src.Title,
				styleMuted.Render(progress.TruncateURLs(src.URL))))
		}
	}

	fmt.Println(b.String())
}
