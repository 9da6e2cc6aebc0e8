package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"logwhisperer/config"
	"logwhisperer/internal/service"
)

// NewCronScheduler triggers a cycle on every tick of cfg.FollowSchedule. The seconds field is
// optional and descriptors such as @every 5m are accepted. Ticks that arrive while a cycle is
// still running are skipped.
func NewCronScheduler(lc fx.Lifecycle, cfg *config.Config, pipeline service.Pipeline) (*cron.Cron, error) {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	schedule := cfg.FollowSchedule
	_, err := c.AddFunc(schedule, func() {
		runCycle(ctx, pipeline)
	})
	if err != nil {
		cancel()
		log.Error().Err(err).Str("schedule", schedule).Msg("Failed to add cron job")
		return nil, err
	}
	log.Info().Str("schedule", schedule).Msg("Scheduled summarization job")

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info().Msg("Starting cron scheduler")
			c.Start()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			log.Info().Msg("Stopping cron scheduler...")
			cancel()
			done := c.Stop()
			select {
			case <-done.Done():
				log.Info().Msg("Cron scheduler stopped gracefully.")
				return nil
			case <-stopCtx.Done():
				log.Error().Msg("Context cancelled while waiting for cron scheduler to stop.")
				return stopCtx.Err()
			}
		},
	})
	return c, nil
}
