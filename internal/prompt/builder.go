// Package prompt turns collected log messages into the text sent to the model.
package prompt

import "strings"

const (
	// Placeholder is replaced by the log window in user templates.
	Placeholder = "{{LOGS}}"
	// WindowSize bounds how many of the most recent messages go into a prompt.
	WindowSize = 50

	DefaultInstruction = "You are a helpful Linux operations assistant. Summarize the following system log entries, " +
		"identify likely causes of errors, and recommend next steps if possible.\n\n"
)

type Builder interface {
	Build(messages []string) string
}

type templateBuilder struct {
	template string
}

// NewBuilder returns a builder using template, or the default instruction when template is
// empty. Only the window size is bounded: a single very long message still ends up in the
// prompt whole.
func NewBuilder(template string) Builder {
	return &templateBuilder{template: template}
}

func (b *templateBuilder) Build(messages []string) string {
	if len(messages) > WindowSize {
		messages = messages[len(messages)-WindowSize:]
	}
	joined := strings.Join(messages, "\n")

	if b.template != "" {
		return strings.ReplaceAll(b.template, Placeholder, joined)
	}
	return DefaultInstruction + joined
}
