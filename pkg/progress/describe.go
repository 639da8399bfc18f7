package progress

import "github.com/mikeboe/research-agent/pkg/agent"

// Describe maps a phase/stage pair to a human-readable description of what
// the workflow is doing. It is total: unmapped inputs fall back to a generic
// label instead of failing.
func Describe(phase agent.Phase, stage string) string {
	switch phase {
	case agent.PhaseInitialized:
		return "Setting up research parameters"

	case agent.PhaseGathering:
		if stage == agent.StageSearching {
			return "Searching the web for information"
		}
		return "Collecting sources"

	case agent.PhaseAnalyzing:
		if stage == agent.StageOrganizingData {
			return "Organizing and analyzing collected data"
		}
		return "Analyzing gathered information"

	case agent.PhaseGenerating:
		switch stage {
		case agent.StageOutline:
			return "Creating report outline"
		case agent.StageExecutiveSummary:
			return "Writing executive summary"
		case agent.StageIntroduction:
			return "Writing introduction"
		case agent.StageKeyFindings:
			return "Compiling key findings"
		case agent.StageAnalysis:
			return "Writing detailed analysis"
		case agent.StageConclusions:
			return "Drafting conclusions"
		case agent.StageFinalizing:
			return "Finalizing report"
		}
		return "Generating detailed report"

	case agent.PhaseCompleted:
		if stage == agent.StageReportComplete {
			return "Research report complete"
		}
		return "Research complete"
	}
	return "Processing..."
}
