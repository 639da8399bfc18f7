package agent

import (
	"encoding/json"
	"fmt"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Replica rebuilds a ResearchState from the event stream. Events must be
// applied in the order they were published; the replica itself does no
// reordering or buffering.
type Replica struct {
	mu  sync.Mutex
	doc []byte
}

func NewReplica() *Replica {
	return &Replica{}
}

// Apply folds one event into the replica. Events that carry no state
// (messages, node transitions, run markers) are ignored. A delta arriving
// before any snapshot is an error; the caller decides whether to log or drop.
func (r *Replica) Apply(ev Event) error {
	switch ev.Type {
	case EventStateSnapshot:
		if ev.Snapshot == nil {
			return fmt.Errorf("snapshot event without snapshot payload")
		}
		doc, err := json.Marshal(ev.Snapshot)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		r.mu.Lock()
		r.doc = doc
		r.mu.Unlock()
		return nil

	case EventStateDelta:
		raw, err := json.Marshal(ev.Delta)
		if err != nil {
			return fmt.Errorf("failed to encode patch: %w", err)
		}
		patch, err := jsonpatch.DecodePatch(raw)
		if err != nil {
			return fmt.Errorf("failed to decode patch: %w", err)
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.doc == nil {
			return fmt.Errorf("delta received before snapshot")
		}
		doc, err := patch.Apply(r.doc)
		if err != nil {
			return fmt.Errorf("failed to apply patch: %w", err)
		}
		r.doc = doc
		return nil
	}
	return nil
}

// State returns the current replica state. Before the first snapshot it
// returns a zero state, which downstream derivations treat as idle.
func (r *Replica) State() ResearchState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var state ResearchState
	if r.doc == nil {
		return state
	}
	if err := json.Unmarshal(r.doc, &state); err != nil {
		return ResearchState{}
	}
	return state
}
