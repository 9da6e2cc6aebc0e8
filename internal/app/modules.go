package app

import (
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"logwhisperer/config"
	"logwhisperer/internal/elasticsearch"
	"logwhisperer/internal/kafka"
	"logwhisperer/internal/ollama"
	"logwhisperer/internal/prompt"
	"logwhisperer/internal/report"
	"logwhisperer/internal/service"
	"logwhisperer/internal/source"
	"logwhisperer/internal/timescaledb"
)

// coreModule provides everything a summarization cycle needs, given the config and the
// already resolved source.
func coreModule(cfg *config.Config, src source.Source) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			func() source.Source { return src },
			ollama.NewClient,
			func(c *ollama.Client) ollama.Generator { return c },
			NewPromptBuilder,
			service.NewSummarizer,
			report.NewMarkdownWriter,
			NewSinks,
			NewPipeline,
		),
	)
}

func NewPromptBuilder(cfg *config.Config) prompt.Builder {
	return prompt.NewBuilder(cfg.Prompt)
}

type pipelineDeps struct {
	fx.In

	Config     *config.Config
	Source     source.Source
	Builder    prompt.Builder
	Summarizer service.Summarizer
	Writer     report.Writer
	Sinks      []report.Sink
}

func NewPipeline(d pipelineDeps) service.Pipeline {
	return service.NewPipeline(service.PipelineParams{
		Source:     d.Source,
		Builder:    d.Builder,
		Summarizer: d.Summarizer,
		Writer:     d.Writer,
		Sinks:      d.Sinks,
		Model:      d.Config.Model,
	})
}

// NewSinks builds the configured report sinks. A sink that fails to initialize is left out;
// the markdown report is still written.
func NewSinks(lc fx.Lifecycle, cfg *config.Config) []report.Sink {
	var sinks []report.Sink
	add := func(name string, enabled bool, build func(fx.Lifecycle, *config.Config) (report.Sink, error)) {
		if !enabled {
			return
		}
		sink, err := build(lc, cfg)
		if err != nil {
			log.Warn().Err(err).Str("sink", name).Msg("Report sink disabled")
			return
		}
		sinks = append(sinks, sink)
	}

	add("kafka", len(cfg.Kafka.Brokers) > 0, kafka.NewReportPublisher)
	add("elasticsearch", len(cfg.Elasticsearch.Addresses) > 0, elasticsearch.NewReportStore)
	add("timescaledb", cfg.TimescaleDB.DSN != "", timescaledb.NewReportStore)
	return sinks
}
