package progress

import (
	"strings"

	"github.com/mikeboe/research-agent/pkg/agent"
)

// Step is the derived progress status of one workflow phase. Steps are
// recomputed from state on every update and never stored.
type Step struct {
	ID          agent.Phase `json:"id"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Completed   bool        `json:"completed"`
	Current     bool        `json:"current"`
}

// DeriveSteps computes one step per phase in the fixed sequence. A step is
// completed iff the current phase sits strictly after it, and current iff they
// are equal; with an idle or unknown phase (index -1) nothing is completed or
// current. The derivation is deterministic in (phase, stage).
func DeriveSteps(state agent.ResearchState) []Step {
	phase := state.Status.Phase
	if phase == "" {
		phase = agent.PhaseIdle
	}
	currentIdx := phase.Index()

	stage := state.Research.Stage
	if stage == "" {
		stage = agent.StageNotStarted
	}

	steps := make([]Step, 0, len(agent.PhaseSequence))
	for i, p := range agent.PhaseSequence {
		steps = append(steps, Step{
			ID:          p,
			Label:       phaseLabel(p),
			Description: Describe(p, stage),
			Completed:   currentIdx > i,
			Current:     currentIdx == i,
		})
	}
	return steps
}

// phaseLabel turns a phase identifier into a title-cased label, e.g.
// "gathering_information" becomes "Gathering Information".
func phaseLabel(p agent.Phase) string {
	words := strings.Split(string(p), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
