package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/research-agent/pkg/agent"
	"github.com/mikeboe/research-agent/pkg/config"
	"github.com/mikeboe/research-agent/pkg/present"
	"github.com/mikeboe/research-agent/pkg/research"
	"github.com/mikeboe/research-agent/pkg/runctl"
)

var (
	query      string
	maxSources int
	verbose    bool
)

func main() {
	// Load .env file; it's okay if it doesn't exist, as long as env vars are set
	_ = godotenv.Load()

	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "research-agent",
		Short: "A terminal-based research agent",
		Long:  `research-agent runs a web research workflow for a question and renders live progress and the final report in the terminal.`,
		Run: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			if !cmd.Flags().Changed("query") {
				// Interactive Mode
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Enter research question: ")
				input, _ := reader.ReadString('\n')
				query = strings.TrimSpace(input)
			}
			if query == "" {
				slog.Error("Research question cannot be empty")
				os.Exit(1)
			}

			if maxSources <= 0 {
				maxSources = cfg.MaxSources
			}

			engine, err := research.NewEngine(context.Background(), research.Config{
				LLMApiKey:    cfg.GoogleApiKey,
				SerperApiKey: cfg.SerperApiKey,
				MaxSources:   maxSources,
			})
			if err != nil {
				slog.Error("Error initializing engine", "error", err)
				os.Exit(1)
			}
			engine.Logger = logger

			if err := runLocal(context.Background(), engine, query); err != nil {
				slog.Error("Error running research", "error", err)
				os.Exit(1)
			}
		},
	}

	rootCmd.Flags().StringVarP(&query, "query", "q", "", "The research question")
	rootCmd.Flags().IntVarP(&maxSources, "max-sources", "n", 0, "Maximum number of web sources to use")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

// runLocal drives one research run end to end without a server: the engine
// produces events, a replica mirrors the state for rendering, and the run
// controller issues the stop once the terminal node has settled.
func runLocal(ctx context.Context, engine *research.Engine, query string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopped := make(chan struct{})
	ctrl := runctl.NewController(func() {
		close(stopped)
	})

	events := make(chan agent.Event, 64)
	var reply string
	var runErr error

	go func() {
		defer close(events)
		tracker := agent.NewTracker("local", "local", query, func(ev agent.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
		events <- agent.Event{Type: agent.EventRunStarted, RunID: "local"}
		tracker.EmitSnapshot()
		reply, runErr = engine.Run(ctx, tracker)
		events <- agent.Event{Type: agent.EventRunFinished, RunID: "local"}
	}()

	replica := agent.NewReplica()
	printer := newProgressPrinter()

	fmt.Println(styleBold.Render("Researching: ") + query)
	fmt.Println()

	for ev := range events {
		switch ev.Type {
		case agent.EventRunStarted:
			ctrl.HandleStatus(agent.RunInProgress)
		case agent.EventNodeTransition:
			ctrl.HandleNode(ev.Node)
		case agent.EventStateSnapshot, agent.EventStateDelta:
			if err := replica.Apply(ev); err != nil {
				slog.Warn("Failed to apply state event", "type", ev.Type, "error", err)
				continue
			}
			printer.Update(replica.State())
		case agent.EventRunError:
			fmt.Printf("  %s %s\n", styleMuted.Render("!"), ev.Error)
		}
	}

	if runErr != nil {
		return fmt.Errorf("research run failed: %w", runErr)
	}

	// Wait for the controller's debounced stop so the lifecycle ends in the
	// stopped state rather than mid-flight.
	<-stopped

	state := replica.State()
	printer.Summary(state)

	fmt.Println()
	renderView(present.Render(state, false))

	if reply != "" {
		fmt.Println(stylePrimary.Render(reply))
	}
	return nil
}
