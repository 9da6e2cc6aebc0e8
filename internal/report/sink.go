package report

import (
	"context"

	"github.com/rs/zerolog/log"

	"logwhisperer/internal/model"
)

// Sink receives every finished report in addition to the markdown file.
type Sink interface {
	Name() string
	Publish(ctx context.Context, report *model.Report) error
}

// PublishAll hands report to each sink. Failures are logged and do not affect the others.
func PublishAll(ctx context.Context, sinks []Sink, report *model.Report) int {
	published := 0
	for _, sink := range sinks {
		if err := sink.Publish(ctx, report); err != nil {
			log.Error().Err(err).Str("sink", sink.Name()).Str("report_id", report.ID).Msg("Failed to publish report")
			continue
		}
		published++
		log.Debug().Str("sink", sink.Name()).Str("report_id", report.ID).Msg("Published report")
	}
	return published
}
