// Package recolte acquires readable content from arbitrary, possibly
// adversarial web pages for downstream summarization.
//
// One call does everything: the orchestrator runs an ordered fallback chain
// of fetch strategies (browser automation → challenge bypass → plain HTTP),
// validates each result, extracts clean text and metadata from the first
// acceptable page, and chunks the text into bounded overlapping segments.
// The output shape is identical whether acquisition succeeded or every
// strategy failed, so callers never need a separate failure branch.
package recolte

// ContentRecord is the normalized output of one acquisition attempt.
// It is produced exactly once per acquisition, immutable thereafter, and
// structurally identical for successes and total failures.
type ContentRecord struct {
	Text          string `json:"text"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	PublishedDate string `json:"published_date"`
	SourceURL     string `json:"source_url"`
	ContentLength int    `json:"content_length"` // always len(Text)
}

// State tracks acquisition progress through the strategy chain.
type State int

const (
	StateNotStarted State = iota
	StateTryingBrowser
	StateTryingChallengeBypass
	StateTryingHTTP
	StateValidated
	StateAllFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateTryingBrowser:
		return "TRYING_BROWSER"
	case StateTryingChallengeBypass:
		return "TRYING_CHALLENGE_BYPASS"
	case StateTryingHTTP:
		return "TRYING_HTTP"
	case StateValidated:
		return "VALIDATED"
	case StateAllFailed:
		return "ALL_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state yields a ContentRecord.
func (s State) Terminal() bool {
	return s == StateValidated || s == StateAllFailed
}
