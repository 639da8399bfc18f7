package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/research-agent/pkg/agent"
	"github.com/mikeboe/research-agent/pkg/database"
	"github.com/mikeboe/research-agent/pkg/events"
	"github.com/mikeboe/research-agent/pkg/research"
)

// Service manages research runs: persistence, background execution, and
// publishing the run's event stream to the broker.
type Service struct {
	DB     *database.PostgresDB
	Broker *events.Broker
	Engine *research.Engine
}

func NewService(db *database.PostgresDB, broker *events.Broker, engine *research.Engine) *Service {
	return &Service{
		DB:     db,
		Broker: broker,
		Engine: engine,
	}
}

// Run is a persisted research run.
type Run struct {
	ID        uuid.UUID       `json:"id"`
	Query     string          `json:"query"`
	Status    string          `json:"status"`
	State     json.RawMessage `json:"state,omitempty"`
	Report    *string         `json:"report,omitempty"`
	Reply     *string         `json:"reply,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RunLog is one persisted log record of a run.
type RunLog struct {
	ID        int             `json:"id"`
	RunID     uuid.UUID       `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// StartRun persists a new run and kicks off the research workflow in the
// background. The caller subscribes to the broker for live events.
func (s *Service) StartRun(ctx context.Context, query string) (*Run, error) {
	run := &Run{}
	insertQuery := `
		INSERT INTO research_runs (query, status)
		VALUES ($1, 'pending')
		RETURNING id, query, status, created_at, updated_at
	`
	err := s.DB.Pool.QueryRow(ctx, insertQuery, query).Scan(
		&run.ID, &run.Query, &run.Status, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create research run: %w", err)
	}

	go s.runWorker(run.ID, query)

	return run, nil
}

// GetRun fetches a single run by ID.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	run := &Run{}
	query := `
		SELECT id, query, status, state, report, reply, created_at, updated_at
		FROM research_runs
		WHERE id = $1
	`
	err := s.DB.Pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Query, &run.Status, &run.State, &run.Report, &run.Reply,
		&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get research run: %w", err)
	}
	return run, nil
}

// ListRuns returns recent runs, newest first. The state column is omitted to
// keep the listing light.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, query, status, report, reply, created_at, updated_at
		FROM research_runs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.DB.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list research runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Query, &run.Status, &run.Report,
			&run.Reply, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan research run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRunLogs returns the persisted log records for a run in emit order.
func (s *Service) GetRunLogs(ctx context.Context, runID uuid.UUID) ([]RunLog, error) {
	query := `
		SELECT id, run_id, timestamp, level, message, metadata
		FROM research_logs
		WHERE run_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run logs: %w", err)
	}
	defer rows.Close()

	logs := []RunLog{}
	for rows.Next() {
		var l RunLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan run log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// runWorker executes the research workflow for one run. It runs detached from
// any request context; clients attach and detach via the broker.
func (s *Service) runWorker(runID uuid.UUID, query string) {
	ctx := context.Background()
	runIDStr := runID.String()
	messageID := uuid.New().String()

	dbLogger := slog.New(NewDBLogHandler(s.DB, runID))
	dbLogger.Info("Starting research run", "query", query)

	s.updateStatus(ctx, runID, "running")

	var tracker *agent.Tracker
	tracker = agent.NewTracker(runIDStr, messageID, query, func(ev agent.Event) {
		s.Broker.Publish(ev)
		switch ev.Type {
		case agent.EventStateSnapshot, agent.EventStateDelta:
			s.persistState(ctx, runID, tracker.State())
		}
	})

	s.Broker.Publish(agent.Event{Type: agent.EventRunStarted, RunID: runIDStr, MessageID: messageID})
	tracker.EmitSnapshot()

	// Copy the engine so the per-run logger does not leak across runs.
	engine := *s.Engine
	engine.Logger = dbLogger

	reply, err := engine.Run(ctx, tracker)
	if err != nil {
		dbLogger.Error("Research run failed", "error", err)
		s.failRun(ctx, runID, runIDStr, err)
		return
	}

	s.Broker.Publish(agent.Event{Type: agent.EventTextMessageStart, RunID: runIDStr, MessageID: messageID, Role: "assistant"})
	s.Broker.Publish(agent.Event{Type: agent.EventTextMessageDelta, RunID: runIDStr, MessageID: messageID, Content: reply})
	s.Broker.Publish(agent.Event{Type: agent.EventTextMessageEnd, RunID: runIDStr, MessageID: messageID})
	s.Broker.Publish(agent.Event{Type: agent.EventRunFinished, RunID: runIDStr, MessageID: messageID})

	state := tracker.State()
	report := ""
	if state.Processing.Report != nil {
		report = *state.Processing.Report
	}

	updateQuery := `
		UPDATE research_runs
		SET status = 'completed', report = $2, reply = $3, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := s.DB.Pool.Exec(ctx, updateQuery, runID, report, reply); err != nil {
		dbLogger.Error("Failed to persist run result", "error", err)
	}
	dbLogger.Info("Research run completed", "sources", state.Research.SourcesFound)
}

func (s *Service) persistState(ctx context.Context, runID uuid.UUID, state agent.ResearchState) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	query := `UPDATE research_runs SET state = $2, updated_at = NOW() WHERE id = $1`
	_, _ = s.DB.Pool.Exec(ctx, query, runID, data)
}

func (s *Service) updateStatus(ctx context.Context, runID uuid.UUID, status string) {
	query := `UPDATE research_runs SET status = $2, updated_at = NOW() WHERE id = $1`
	_, _ = s.DB.Pool.Exec(ctx, query, runID, status)
}

func (s *Service) failRun(ctx context.Context, runID uuid.UUID, runIDStr string, runErr error) {
	s.updateStatus(ctx, runID, "failed")
	s.Broker.Publish(agent.Event{Type: agent.EventRunError, RunID: runIDStr, Error: runErr.Error()})
	s.Broker.Publish(agent.Event{Type: agent.EventRunFinished, RunID: runIDStr})
}
