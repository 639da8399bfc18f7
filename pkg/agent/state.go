package agent

import "time"

// Phase is a top-level stage of the research workflow.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseInitialized Phase = "initialized"
	PhaseGathering   Phase = "gathering_information"
	PhaseAnalyzing   Phase = "analyzing_information"
	PhaseGenerating  Phase = "generating_report"
	PhaseCompleted   Phase = "completed"
)

// Stage names emitted by the workflow. The stage field is freeform; these are
// the values the engine produces and the describer recognizes.
const (
	StageNotStarted       = "not_started"
	StageSearching        = "searching"
	StageOrganizingData   = "organizing_data"
	StageCreatingReport   = "creating_detailed_report"
	StageOutline          = "creating_outline"
	StageExecutiveSummary = "drafting_executive_summary"
	StageIntroduction     = "writing_introduction"
	StageKeyFindings      = "compiling_key_findings"
	StageAnalysis         = "writing_analysis"
	StageConclusions      = "drafting_conclusions"
	StageFinalizing       = "finalizing_report"
	StageReportComplete   = "report_complete"
)

// PhaseSequence is the fixed ordering of workflow phases. Idle precedes the
// sequence and has no entry.
var PhaseSequence = []Phase{
	PhaseInitialized,
	PhaseGathering,
	PhaseAnalyzing,
	PhaseGenerating,
	PhaseCompleted,
}

// Index returns the position of p in PhaseSequence, or -1 for idle and any
// unknown phase.
func (p Phase) Index() int {
	for i, seq := range PhaseSequence {
		if p == seq {
			return i
		}
	}
	return -1
}

// Source is a web source discovered during research. Sources are append-only
// for the duration of a run; duplicates are not filtered.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

type Status struct {
	Phase     Phase  `json:"phase"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

type Research struct {
	Query        string   `json:"query"`
	Stage        string   `json:"stage"`
	SourcesFound int      `json:"sources_found"`
	Sources      []Source `json:"sources"`
	Completed    bool     `json:"completed"`
}

type Processing struct {
	Progress   float64 `json:"progress"`
	Report     *string `json:"report"`
	Completed  bool    `json:"completed"`
	InProgress bool    `json:"inProgress"`
}

// UIState carries presentation flags only; nothing downstream depends on it
// for correctness.
type UIState struct {
	ShowSources  bool   `json:"showSources"`
	ShowProgress bool   `json:"showProgress"`
	ActiveTab    string `json:"activeTab"`
}

// ResearchState is the shared state object for one research run. The tracker
// owns the canonical copy; everything else holds a read replica rebuilt from
// the event stream.
type ResearchState struct {
	Status     Status     `json:"status"`
	Research   Research   `json:"research"`
	Processing Processing `json:"processing"`
	UI         UIState    `json:"ui"`
}

// NewResearchState returns the initial state for a run.
func NewResearchState(query string) ResearchState {
	return ResearchState{
		Status: Status{
			Phase:     PhaseInitialized,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Research: Research{
			Query:   query,
			Stage:   StageNotStarted,
			Sources: []Source{},
		},
		Processing: Processing{},
		UI: UIState{
			ShowProgress: true,
			ActiveTab:    "chat",
		},
	}
}

// Clone returns a copy safe to hand out while the tracker keeps mutating the
// original. Sources is the only shared slice.
func (s ResearchState) Clone() ResearchState {
	out := s
	out.Research.Sources = make([]Source, len(s.Research.Sources))
	copy(out.Research.Sources, s.Research.Sources)
	if s.Processing.Report != nil {
		report := *s.Processing.Report
		out.Processing.Report = &report
	}
	return out
}
