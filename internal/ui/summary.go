package ui

import (
	"github.com/charmbracelet/lipgloss"

	"logwhisperer/internal/model"
)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))

	pathStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6ADC8"))
)

// RenderSummary formats a finished report for the terminal. Styling is dropped when
// color is false.
func RenderSummary(r *model.Report, color bool) string {
	heading, summary, saved := "Summary", r.Summary, ""
	if r.Path != "" {
		saved = "Saved to " + r.Path
	}
	if color {
		heading = headingStyle.Render(heading)
		if r.Failed() {
			summary = errorStyle.Render(summary)
		}
		if saved != "" {
			saved = pathStyle.Render(saved)
		}
	}

	out := heading + "\n\n" + summary + "\n"
	if saved != "" {
		out += "\n" + saved + "\n"
	}
	return out
}
