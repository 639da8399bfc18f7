package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/mikeboe/research-agent/pkg/agent"
	"github.com/mikeboe/research-agent/pkg/config"
	"github.com/mikeboe/research-agent/pkg/database"
	"github.com/mikeboe/research-agent/pkg/research"
)

// Service handles conversations. Every user message starts a research run;
// the run's event stream is relayed to the client and the final reply is
// stored as the model message.
type Service struct {
	config *config.Config
	DB     *database.PostgresDB
	Client *genai.Client
	Engine *research.Engine
}

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	Role           string     `json:"role"`
	Content        string     `json:"content"`
	RunID          *uuid.UUID `json:"run_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func NewService(ctx context.Context, db *database.PostgresDB, engine *research.Engine, cfg *config.Config) (*Service, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GoogleApiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Service{
		config: cfg,
		DB:     db,
		Client: client,
		Engine: engine,
	}, nil
}

func (s *Service) CreateConversation(ctx context.Context) (*Conversation, error) {
	id := uuid.New()
	query := `INSERT INTO conversations (id) VALUES ($1) RETURNING id, title, created_at, updated_at`

	conv := &Conversation{}
	err := s.DB.Pool.QueryRow(ctx, query, id).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Service) ListConversations(ctx context.Context) ([]Conversation, error) {
	query := `SELECT id, title, created_at, updated_at FROM conversations ORDER BY updated_at DESC`
	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, nil
}

func (s *Service) GetHistory(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	query := `SELECT id, conversation_id, role, content, run_id, created_at FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`
	rows, err := s.DB.Pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.RunID, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// SendMessage saves the user message, starts a research run for it, and
// returns an iterator over the run's event stream. The stream carries the
// state snapshot, deltas, node transitions, and finally the reply as text
// message events.
func (s *Service) SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (iter.Seq2[agent.Event, error], error) {
	// 1. Save user message
	userMsgID := uuid.New()
	_, err := s.DB.Pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content) VALUES ($1, $2, 'user', $3)`,
		userMsgID, conversationID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	history, err := s.GetHistory(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	// 2. Create the run row so logs and messages can reference it
	runID := uuid.New()
	_, err = s.DB.Pool.Exec(ctx,
		`INSERT INTO research_runs (id, query, status) VALUES ($1, $2, 'running')`,
		runID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to create research run: %w", err)
	}

	runIDStr := runID.String()
	messageID := uuid.New().String()

	// 3. Return iterator that drives the engine and relays its events
	return func(yield func(agent.Event, error) bool) {
		slog.Info("Starting research run for chat message", "conversation_id", conversationID, "run_id", runIDStr)

		ch := make(chan agent.Event, 64)
		var reply string
		var runErr error

		go func() {
			defer close(ch)
			send := func(ev agent.Event) {
				select {
				case ch <- ev:
				case <-ctx.Done():
				}
			}

			tracker := agent.NewTracker(runIDStr, messageID, content, send)
			send(agent.Event{Type: agent.EventRunStarted, RunID: runIDStr, MessageID: messageID})
			tracker.EmitSnapshot()

			reply, runErr = s.Engine.Run(ctx, tracker)
			if runErr != nil {
				return
			}

			send(agent.Event{Type: agent.EventTextMessageStart, RunID: runIDStr, MessageID: messageID, Role: "assistant"})
			send(agent.Event{Type: agent.EventTextMessageDelta, RunID: runIDStr, MessageID: messageID, Content: reply})
			send(agent.Event{Type: agent.EventTextMessageEnd, RunID: runIDStr, MessageID: messageID})
			send(agent.Event{Type: agent.EventRunFinished, RunID: runIDStr, MessageID: messageID})
		}()

		for ev := range ch {
			if !yield(ev, nil) {
				return
			}
		}

		if runErr != nil {
			slog.Error("Research run failed", "run_id", runIDStr, "error", runErr)
			_, _ = s.DB.Pool.Exec(ctx, `UPDATE research_runs SET status = 'failed', updated_at = NOW() WHERE id = $1`, runID)
			yield(agent.Event{Type: agent.EventRunError, RunID: runIDStr, Error: runErr.Error()}, runErr)
			return
		}

		// 4. Persist the outcome after the stream completes
		modelMsgID := uuid.New()
		_, err := s.DB.Pool.Exec(ctx,
			`INSERT INTO messages (id, conversation_id, role, content, run_id) VALUES ($1, $2, 'model', $3, $4)`,
			modelMsgID, conversationID, reply, runID)
		if err != nil {
			slog.Error("Failed to save model message", "error", err)
		} else {
			_, _ = s.DB.Pool.Exec(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID)
		}
		_, _ = s.DB.Pool.Exec(ctx,
			`UPDATE research_runs SET status = 'completed', reply = $2, updated_at = NOW() WHERE id = $1`,
			runID, reply)

		// Generate title async (fire and forget)
		if len(history) <= 2 {
			go s.generateTitle(conversationID, content, reply)
		}
	}, nil
}

func (s *Service) generateTitle(convID uuid.UUID, userMsg, modelMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prompt := fmt.Sprintf("Generate a short, concise title (max 5 words) for this chat conversation:\nUser: %s\nModel: %s", userMsg, modelMsg)

	returnSchema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title": {
				Type: genai.TypeString,
			},
		},
		Required: []string{"title"},
	}

	resp, err := s.Client.Models.GenerateContent(ctx, s.config.FastModel, []*genai.Content{
		{Parts: []*genai.Part{{Text: prompt}}},
	}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   returnSchema,
	})

	if err == nil && len(resp.Candidates) > 0 {
		var respData struct {
			Title string `json:"title"`
		}

		rawJSON := ""
		for _, p := range resp.Candidates[0].Content.Parts {
			rawJSON += p.Text
		}

		if err := json.Unmarshal([]byte(rawJSON), &respData); err != nil {
			slog.Error("Failed to unmarshal title generation response", "error", err, "raw_json", rawJSON)
			return
		}

		if respData.Title != "" {
			_, err := s.DB.Pool.Exec(ctx, `UPDATE conversations SET title = $2 WHERE id = $1`, convID, respData.Title)
			if err != nil {
				slog.Error("Failed to update conversation title", "error", err)
			}
		}
	}
}
