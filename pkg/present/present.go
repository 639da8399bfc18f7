// Package present renders the final research output: the question, the
// report body as structured blocks, and the cited sources. Rendering is a
// pure function of (state, running) and is total over partially-populated
// state.
package present

import (
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/mikeboe/research-agent/pkg/agent"
)

// BlockKind classifies one visual block of the report body.
type BlockKind int

const (
	Heading BlockKind = iota
	Paragraph
	ListItem
)

// Block is one renderable unit of the report body.
type Block struct {
	Kind  BlockKind
	Level int // heading level; 0 otherwise
	Text  string
}

// SourceItem is one entry of the 1-indexed source list.
type SourceItem struct {
	Index   int
	Title   string
	URL     string
	Snippet string
}

// View is everything a presentation layer needs to draw the report pane.
type View struct {
	Query        string
	ShowQuery    bool
	InProgress   bool
	Placeholder  string
	Blocks       []Block
	Sources      []SourceItem
	SourcesLabel string
}

const (
	placeholderRunning = "Generating report..."
	placeholderIdle    = "The report will appear here once research is complete."
)

var md = goldmark.New()

// Render builds the view for the given state. Missing fields degrade to
// defaults; Render never fails.
func Render(state agent.ResearchState, running bool) View {
	view := View{
		Query:     state.Research.Query,
		ShowQuery: state.Research.Query != "",
	}

	if report := state.Processing.Report; report != nil {
		view.Blocks = parseReport(*report)
	} else {
		view.InProgress = running
		if running {
			view.Placeholder = placeholderRunning
		} else {
			view.Placeholder = placeholderIdle
		}
	}

	if n := len(state.Research.Sources); n > 0 {
		view.Sources = make([]SourceItem, 0, n)
		for i, src := range state.Research.Sources {
			view.Sources = append(view.Sources, SourceItem{
				Index:   i + 1,
				Title:   src.Title,
				URL:     src.URL,
				Snippet: src.Snippet,
			})
		}
		if n == 1 {
			view.SourcesLabel = "1 source"
		} else {
			view.SourcesLabel = fmt.Sprintf("%d sources", n)
		}
	}

	return view
}

// parseReport maps the markdown report onto blocks. Headings keep their
// level, list items flatten to one block each, everything else renders as a
// paragraph.
func parseReport(report string) []Block {
	source := []byte(report)
	doc := md.Parser().Parse(text.NewReader(source))

	var blocks []Block
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			blocks = append(blocks, Block{
				Kind:  Heading,
				Level: n.Level,
				Text:  string(n.Text(source)),
			})
		case *ast.List:
			for item := n.FirstChild(); item != nil; item = item.NextSibling() {
				blocks = append(blocks, Block{
					Kind: ListItem,
					Text: string(item.Text(source)),
				})
			}
		default:
			if txt := string(node.Text(source)); txt != "" {
				blocks = append(blocks, Block{Kind: Paragraph, Text: txt})
			}
		}
	}
	return blocks
}
