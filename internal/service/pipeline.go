package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"logwhisperer/internal/model"
	"logwhisperer/internal/prompt"
	"logwhisperer/internal/report"
	"logwhisperer/internal/source"
)

var (
	ErrNoMessages      = errors.New("no log messages found")
	ErrCycleInProgress = errors.New("a summarization cycle is already running")
)

// Pipeline runs summarization cycles: acquire, filter, prompt, generate, persist.
type Pipeline interface {
	// Acquire reads the source and returns its messages.
	Acquire(ctx context.Context) []string
	// Process summarizes messages and persists the report.
	Process(ctx context.Context, messages []string) (*model.Report, error)
	// RunCycle acquires and, when there is anything to summarize, processes.
	RunCycle(ctx context.Context) (*model.Report, error)
	// LastReport is the most recent report of this process, or nil.
	LastReport() *model.Report
}

type PipelineParams struct {
	Source     source.Source
	Builder    prompt.Builder
	Summarizer Summarizer
	Writer     report.Writer
	Sinks      []report.Sink
	Model      string
}

type pipeline struct {
	PipelineParams
	now func() time.Time

	cycleLock sync.Mutex
	mu        sync.RWMutex
	last      *model.Report
}

func NewPipeline(p PipelineParams) Pipeline {
	return &pipeline{PipelineParams: p, now: time.Now}
}

func (p *pipeline) Acquire(ctx context.Context) []string {
	records := p.Source.Read(ctx)
	messages := source.FilterMessages(records)
	log.Info().Str("source", p.Source.Kind()).Int("records", len(records)).Int("messages", len(messages)).Msg("Log entries retrieved")
	return messages
}

func (p *pipeline) Process(ctx context.Context, messages []string) (*model.Report, error) {
	text := p.Builder.Build(messages)
	log.Info().Int("prompt_length", len(text)).Msg("Prompt built")

	startTime := time.Now()
	summary := p.Summarizer.Summarize(ctx, text)
	log.Info().Dur("duration", time.Since(startTime)).Bool("failed", summary == model.SummaryError).Msg("Summary generated")

	r := &model.Report{
		ID:           uuid.NewString(),
		CreatedAt:    p.now(),
		Source:       p.Source.Kind(),
		Model:        p.Model,
		Summary:      summary,
		Messages:     report.LastMessages(messages),
		MessageCount: len(messages),
	}

	path, err := p.Writer.Write(ctx, r)
	if err != nil {
		log.Error().Err(err).Str("report_id", r.ID).Msg("Failed to save summary report")
		return r, fmt.Errorf("failed to write report: %w", err)
	}
	r.Path = path

	report.PublishAll(ctx, p.Sinks, r)

	p.mu.Lock()
	p.last = r
	p.mu.Unlock()
	return r, nil
}

func (p *pipeline) RunCycle(ctx context.Context) (*model.Report, error) {
	if !p.cycleLock.TryLock() {
		log.Warn().Msg("Summarization cycle already in progress, skipping run.")
		return nil, ErrCycleInProgress
	}
	defer p.cycleLock.Unlock()

	log.Info().Msg("Starting summarization cycle...")
	messages := p.Acquire(ctx)
	if len(messages) == 0 {
		log.Info().Msg("No log messages found, nothing to summarize")
		return nil, ErrNoMessages
	}
	return p.Process(ctx, messages)
}

func (p *pipeline) LastReport() *model.Report {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}
