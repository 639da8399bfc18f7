package agent

import (
	"encoding/json"
	"fmt"
)

// EventType identifies one event on a run's stream.
type EventType string

const (
	EventRunStarted       EventType = "RUN_STARTED"
	EventRunFinished      EventType = "RUN_FINISHED"
	EventRunError         EventType = "RUN_ERROR"
	EventStateSnapshot    EventType = "STATE_SNAPSHOT"
	EventStateDelta       EventType = "STATE_DELTA"
	EventNodeTransition   EventType = "NODE_TRANSITION"
	EventTextMessageStart EventType = "TEXT_MESSAGE_START"
	EventTextMessageDelta EventType = "TEXT_MESSAGE_CONTENT"
	EventTextMessageEnd   EventType = "TEXT_MESSAGE_END"
)

// TerminalNode is the sentinel node name signaling that the workflow graph
// has finished.
const TerminalNode = "__end__"

// RunStatus is the coarse lifecycle signal exposed alongside the stream.
type RunStatus string

const (
	RunNotStarted RunStatus = "not-started"
	RunInProgress RunStatus = "in-progress"
	RunComplete   RunStatus = "complete"
)

// PatchOp is a single RFC 6902 JSON Patch operation.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Event is one entry on a run's event stream. Exactly the fields relevant to
// its type are populated.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
	Snapshot  *ResearchState `json:"snapshot,omitempty"`
	Delta     []PatchOp      `json:"delta,omitempty"`
	Node      string         `json:"node,omitempty"`
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// SSE encodes the event as a server-sent-events frame.
func (e Event) SSE() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	frame := make([]byte, 0, len(data)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}
