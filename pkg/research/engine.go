package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/research-agent/pkg/agent"
	"github.com/mikeboe/research-agent/pkg/clients"
	"github.com/mikeboe/research-agent/pkg/research/tools"
)

// ResearchNode is the single workflow node; the graph is research -> end.
const ResearchNode = "research"

// noResultsReport is returned as the report body when the web search comes
// back empty, matching the behavior users see instead of a hard failure.
const noResultsReport = "No relevant research results were found on the topic."

// Searcher performs a web search. The concrete implementation is the Serper
// client; tests substitute a fake.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]tools.SerperResult, error)
}

// Engine runs the research workflow for one query, driving the state tracker
// through its phases as it goes.
type Engine struct {
	Config Config
	LLM    llms.Model
	Search Searcher
	Logger *slog.Logger
}

func NewEngine(ctx context.Context, cfg Config) (*Engine, error) {
	llm, err := clients.GoogleAi(ctx, clients.DefaultModel, cfg.LLMApiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to init LLM: %w", err)
	}

	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 5
	}

	return &Engine{
		Config: cfg,
		LLM:    llm,
		Search: tools.NewSerperClient(cfg.SerperApiKey),
		Logger: slog.Default(),
	}, nil
}

// Run executes the workflow: search the web, record sources, generate the
// report, complete the run, then produce a short conversational reply. Every
// phase change lands on the tracker, so consumers see the run move through
// gathering, analyzing, generating and completed. The terminal node is
// emitted once the report is attached.
func (e *Engine) Run(ctx context.Context, tracker *agent.Tracker) (string, error) {
	query := tracker.State().Research.Query
	e.Logger.Info("Starting research", "query", query)

	tracker.EmitNode(ResearchNode)
	tracker.SetInProgress(true)
	tracker.UpdatePhase(agent.PhaseGathering, agent.StageSearching, 0.2)

	results, err := e.Search.Search(ctx, query, e.Config.MaxSources)
	if err != nil {
		e.Logger.Error("Web search failed", "query", query, "error", err)
		tracker.SetError(fmt.Sprintf("web search failed: %v", err))
		results = nil
	}

	if len(results) == 0 {
		e.Logger.Warn("No search results found", "query", query)
		tracker.UpdatePhase(agent.PhaseGenerating, agent.StageCreatingReport, 0.8)
		tracker.Complete(noResultsReport)
		tracker.EmitNode(agent.TerminalNode)
		return fallbackReply(query), nil
	}

	sources := make([]agent.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, agent.Source{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
		})
	}
	tracker.AddSources(sources)
	tracker.UpdatePhase(agent.PhaseAnalyzing, agent.StageOrganizingData, 0.5)

	tracker.UpdatePhase(agent.PhaseGenerating, agent.StageCreatingReport, 0.8)
	report, err := e.generateReport(ctx, query, results)
	if err != nil {
		tracker.SetError(fmt.Sprintf("report generation failed: %v", err))
		return "", fmt.Errorf("report generation failed: %w", err)
	}

	tracker.Complete(report)
	tracker.EmitNode(agent.TerminalNode)

	return e.generateReply(ctx, query, report), nil
}

// generateWithRetry attempts to generate content and validates it using the
// provided function. It retries up to 3 times if the LLM fails or the
// validator returns an error.
func (e *Engine) generateWithRetry(ctx context.Context, prompts []llms.MessageContent, validator func(string) error) (string, error) {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			e.Logger.Warn("Retrying LLM generation", "attempt", i+1, "last_error", lastErr)
			time.Sleep(time.Second * time.Duration(i)) // Linear backoff
		}

		resp, err := e.LLM.GenerateContent(ctx, prompts)
		if err != nil {
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("llm returned no choices")
			continue
		}

		content := resp.Choices[0].Content
		if err := validator(content); err != nil {
			lastErr = fmt.Errorf("validation failed: %w", err)
			continue
		}

		return content, nil
	}

	return "", fmt.Errorf("operation failed after %d retries: %w", maxRetries, lastErr)
}

func (e *Engine) generateReport(ctx context.Context, query string, results []tools.SerperResult) (string, error) {
	e.Logger.Info("Generating report", "query", query, "sources", len(results))

	var research strings.Builder
	for i, r := range results {
		if i > 0 {
			research.WriteString("\n\n===\n\n")
		}
		fmt.Fprintf(&research, "Title: %s\nSnippet: %s\nLink: %s", r.Title, r.Snippet, r.Link)
	}

	systemPrompt := `Create a comprehensive research report on the topic using the provided search results.
Your report should be well-structured with the following sections:

1. EXECUTIVE SUMMARY: A brief overview of the topic and key findings (2-3 sentences)
2. INTRODUCTION: Background information on the topic and why it matters
3. KEY FINDINGS: The main insights organized as bullet points
4. DETAILED ANALYSIS: In-depth exploration of the topic with subsections as needed
5. CONCLUSIONS: Summary of the most important takeaways
6. FURTHER RESEARCH: Suggest related topics worth exploring
7. SOURCES: List all sources from the search results with their URLs

Use markdown formatting, with # for main headings and ## for subheadings.
Maintain a professional, objective tone throughout.`

	input := fmt.Sprintf("Topic: %s\n\n%s", query, research.String())

	report, err := e.generateWithRetry(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}, func(content string) error {
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("empty report")
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	e.Logger.Info("Report generated", "length", len(report))
	return report, nil
}

// generateReply produces the short conversational closing message. Failures
// degrade to a canned message; the report already exists at this point.
func (e *Engine) generateReply(ctx context.Context, query, report string) string {
	systemPrompt := `You are a helpful research assistant. Based on the research query and findings,
generate a brief, conversational response (2-3 sentences) that acknowledges completing the research,
highlights 1-2 key insights, and indicates the detailed report is available.`

	excerpt := report
	if runes := []rune(report); len(runes) > 500 {
		excerpt = string(runes[:500])
	}

	resp, err := e.LLM.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf("Query: %s\n\nReport summary: %s...", query, excerpt)),
	})
	if err != nil || len(resp.Choices) == 0 {
		e.Logger.Warn("Failed to generate reply, using fallback", "error", err)
		return fallbackReply(query)
	}
	return resp.Choices[0].Content
}

func fallbackReply(query string) string {
	return fmt.Sprintf("I've completed your research on %q. You can find the detailed analysis in the report above.", query)
}
