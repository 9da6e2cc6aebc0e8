package model

import "time"

// SummaryError replaces the summary when generation failed for good.
const SummaryError = "[Error: Could not generate summary.]"

// Report is the outcome of one summarization cycle.
type Report struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Source       string    `json:"source"`
	Model        string    `json:"model"`
	Summary      string    `json:"summary"`
	Messages     []string  `json:"messages"`      // at most the last 100
	MessageCount int       `json:"message_count"` // all messages fed to the cycle
	Path         string    `json:"path,omitempty"`
}

// Failed reports whether the summary is the error sentinel.
func (r *Report) Failed() bool {
	return r.Summary == SummaryError
}
