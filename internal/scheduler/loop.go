package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"logwhisperer/internal/service"
)

// Loop re-runs the pipeline forever: one cycle, then a fixed pause. The period is therefore
// the cycle duration plus the interval, and cycles never overlap.
type Loop struct {
	pipeline service.Pipeline
	interval time.Duration
}

func NewLoop(pipeline service.Pipeline, interval time.Duration) *Loop {
	return &Loop{pipeline: pipeline, interval: interval}
}

// Run blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	log.Info().Dur("interval", l.interval).Msg("Starting follow mode")
	for {
		runCycle(ctx, l.pipeline)

		timer := time.NewTimer(l.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Follow loop stopping due to context cancellation.")
			return
		case <-timer.C:
		}
	}
}

func runCycle(ctx context.Context, pipeline service.Pipeline) {
	if ctx.Err() != nil {
		return
	}
	_, err := pipeline.RunCycle(ctx)
	switch {
	case err == nil, errors.Is(err, service.ErrNoMessages):
	case errors.Is(err, service.ErrCycleInProgress):
		log.Debug().Msg("Cycle skipped, another one is running")
	default:
		log.Error().Err(err).Msg("Error during summarization cycle")
	}
}
