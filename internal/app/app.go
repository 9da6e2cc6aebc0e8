package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"logwhisperer/config"
	"logwhisperer/internal/ollama"
	"logwhisperer/internal/scheduler"
	"logwhisperer/internal/service"
	"logwhisperer/internal/source"
	"logwhisperer/internal/ui"
)

const (
	ExitOK     = 0
	ExitError  = 1
	ExitConfig = 2

	startTimeout = 15 * time.Second
	stopTimeout  = 30 * time.Second
)

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ExitOK
		}
		fmt.Fprintln(stderr, "Error:", err)
		return ExitConfig
	}
	if cfg.ShowVersion {
		fmt.Fprintf(stdout, "Logwhisperer version %s\n", config.Version)
		return ExitOK
	}

	setupLogger(cfg.LogLevel, cfg.LogFormat, stderr)
	logConfiguration(cfg)

	src, err := source.New(cfg)
	if err != nil {
		if cfg.Follow {
			log.Error().Err(err).Msg("Follow mode stopped")
			return ExitOK
		}
		log.Error().Err(err).Msg("Cannot read logs")
		return ExitError
	}

	if cfg.Follow {
		return runFollow(ctx, cfg, src)
	}
	return runOnce(ctx, cfg, src, stdout, stderr)
}

func logConfiguration(cfg *config.Config) {
	event := log.Info().Str("source", cfg.Source).Int("entries", cfg.Entries)
	switch cfg.Source {
	case config.SourceJournal:
		event = event.Str("priority", cfg.Priority)
	case config.SourceFile:
		event = event.Str("log_file", cfg.LogFilePath)
	case config.SourceContainer:
		event = event.Str("container", cfg.DockerContainer)
	}
	event.Str("model", cfg.Model).Str("ollama_host", cfg.OllamaHost).Dur("timeout", cfg.Timeout).Msg("Configuration")
}

func runOnce(ctx context.Context, cfg *config.Config, src source.Source, stdout, stderr io.Writer) int {
	var (
		pipeline service.Pipeline
		client   *ollama.Client
	)
	app := fx.New(
		fx.NopLogger,
		coreModule(cfg, src),
		fx.Populate(&pipeline, &client),
	)
	if err := startApp(app); err != nil {
		return ExitError
	}
	defer stopApp(app)

	messages := pipeline.Acquire(ctx)
	if len(messages) == 0 {
		fmt.Fprintln(stdout, "No log messages found.")
		return ExitOK
	}

	client.EnsureModel(ctx)

	spinner := ui.NewSpinner(stderr, "Summarizing logs...")
	spinner.Start()
	r, err := pipeline.Process(ctx, messages)
	spinner.Stop()

	if r != nil {
		fmt.Fprint(stdout, ui.RenderSummary(r, ui.IsTerminal(stdout)))
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to save report")
		return ExitError
	}
	return ExitOK
}

func runFollow(ctx context.Context, cfg *config.Config, src source.Source) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     sync.WaitGroup
		client *ollama.Client
	)
	app := fx.New(
		fx.NopLogger,
		coreModule(cfg, src),
		statusModule(cfg),
		fx.Populate(&client),
		fx.Invoke(func(lc fx.Lifecycle, pipeline service.Pipeline) error {
			return registerFollow(ctx, lc, &wg, cfg, pipeline)
		}),
	)
	if err := startApp(app); err != nil {
		return ExitError
	}

	client.EnsureModel(ctx)
	<-ctx.Done()

	stopApp(app)
	log.Info().Msg("Waiting for background goroutines to finish...")
	wg.Wait()
	return ExitOK
}

// registerFollow hooks the cron scheduler when a schedule is set, the fire-and-sleep loop
// otherwise.
func registerFollow(ctx context.Context, lc fx.Lifecycle, wg *sync.WaitGroup, cfg *config.Config, pipeline service.Pipeline) error {
	if cfg.FollowSchedule != "" {
		_, err := scheduler.NewCronScheduler(lc, cfg, pipeline)
		return err
	}

	loop := scheduler.NewLoop(pipeline, cfg.Interval)
	loopCtx, stop := context.WithCancel(ctx)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				loop.Run(loopCtx)
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			stop()
			return nil
		},
	})
	return nil
}

func startApp(app *fx.App) error {
	if err := app.Err(); err != nil {
		log.Error().Err(err).Msg("Failed to build application")
		return err
	}
	startCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		log.Error().Err(err).Msg("Failed to start application")
		return err
	}
	return nil
}

func stopApp(app *fx.App) {
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown due to error or timeout")
	}
}
