package progress

import (
	"fmt"
	"regexp"

	"github.com/mikeboe/research-agent/pkg/agent"
)

// LogEntry is one renderable progress line.
type LogEntry struct {
	Done    bool   `json:"done"`
	Message string `json:"message"`
}

// maxURLLen caps how much of an embedded URL is shown.
const maxURLLen = 50

var urlPattern = regexp.MustCompile(`https?://\S+`)

// LogEntries converts derived steps into display entries. An entry counts as
// done when its step is completed or when it sits strictly before the current
// step; the positional check covers the transient window where the phase
// pointer has advanced but the prior step's completed flag has not flipped yet.
func LogEntries(steps []Step) []LogEntry {
	currentIdx := -1
	for i, s := range steps {
		if s.Current {
			currentIdx = i
			break
		}
	}

	entries := make([]LogEntry, len(steps))
	for i, s := range steps {
		entries[i] = LogEntry{
			Done:    s.Completed || (currentIdx >= 0 && i < currentIdx),
			Message: TruncateURLs(s.Label + ": " + s.Description),
		}
	}
	return entries
}

// FirstNotDone returns the index of the first entry with Done == false, the
// single entry a renderer shows as active; later not-done entries are
// de-emphasized. Returns -1 when every entry is done.
func FirstNotDone(entries []LogEntry) int {
	for i, e := range entries {
		if !e.Done {
			return i
		}
	}
	return -1
}

// TruncateURLs shortens every URL in s longer than 50 characters to its first
// 47 characters plus "...". Display-only; the underlying state is untouched.
func TruncateURLs(s string) string {
	return urlPattern.ReplaceAllStringFunc(s, func(url string) string {
		runes := []rune(url)
		if len(runes) <= maxURLLen {
			return url
		}
		return string(runes[:maxURLLen-3]) + "..."
	})
}

// SourceCountLabel renders the source counter, or "" when no sources have
// been found yet.
func SourceCountLabel(sourcesFound int) string {
	switch {
	case sourcesFound <= 0:
		return ""
	case sourcesFound == 1:
		return "Found 1 source"
	default:
		return fmt.Sprintf("Found %d sources", sourcesFound)
	}
}

// VisibilityPolicy decides whether the progress log is rendered at all. The
// two policies replace what used to be two near-duplicate page variants.
type VisibilityPolicy int

const (
	// PolicyAlways renders the progress log regardless of run status.
	PolicyAlways VisibilityPolicy = iota
	// PolicyGatedByStatus hides the log until a run has started.
	PolicyGatedByStatus
)

// Visible reports whether the progress log should render under this policy
// for the given run status.
func (p VisibilityPolicy) Visible(status agent.RunStatus) bool {
	if p == PolicyAlways {
		return true
	}
	return status == agent.RunInProgress || status == agent.RunComplete
}
