package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"logwhisperer/internal/model"
	"logwhisperer/internal/ollama"
)

const (
	warmupPromptLength = 200
	defaultWarmupDelay = 2 * time.Second
)

// Summarizer turns a prompt into summary text. It never fails: an irrecoverable error
// yields model.SummaryError.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) string
}

type retryState int

const (
	stateInitial retryState = iota
	stateWarmup
	stateRetry
	stateDone
)

func (s retryState) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case stateWarmup:
		return "warmup"
	case stateRetry:
		return "retry"
	default:
		return "done"
	}
}

type warmupSummarizer struct {
	generator   ollama.Generator
	warmupDelay time.Duration
}

// NewSummarizer wraps generator with the cold-model recovery protocol: a timed-out first
// request is followed by a short warm-up request and exactly one retry of the full prompt.
func NewSummarizer(generator ollama.Generator) Summarizer {
	return &warmupSummarizer{generator: generator, warmupDelay: defaultWarmupDelay}
}

func (s *warmupSummarizer) Summarize(ctx context.Context, prompt string) string {
	state := stateInitial
	var summary string
	for state != stateDone {
		log.Debug().Stringer("state", state).Msg("Generation step")
		state, summary = s.step(ctx, state, prompt)
	}
	return summary
}

// step runs one state and returns the next one. Only stateInitial can lead to a retry, so at
// most three requests are made per prompt.
func (s *warmupSummarizer) step(ctx context.Context, state retryState, prompt string) (retryState, string) {
	switch state {
	case stateInitial:
		out, err := s.generator.Generate(ctx, prompt)
		switch {
		case err == nil:
			return stateDone, out
		case errors.Is(err, ollama.ErrTimeout):
			log.Warn().Err(err).Msg("First request timed out, triggering model warm-up...")
			return stateWarmup, ""
		default:
			log.Error().Err(err).Msg("Error communicating with local LLM")
			return stateDone, model.SummaryError
		}

	case stateWarmup:
		if _, err := s.generator.Generate(ctx, truncate(prompt, warmupPromptLength)); err != nil {
			log.Warn().Err(err).Msg("Warm-up failed")
		} else {
			log.Info().Msg("Model warm-up complete, retrying full prompt...")
		}
		return stateRetry, ""

	case stateRetry:
		if err := sleep(ctx, s.warmupDelay); err != nil {
			log.Warn().Err(err).Msg("Retry abandoned")
			return stateDone, model.SummaryError
		}
		out, err := s.generator.Generate(ctx, prompt)
		if err != nil {
			log.Error().Err(err).Msg("Retry after warm-up failed")
			return stateDone, model.SummaryError
		}
		return stateDone, out
	}
	return stateDone, model.SummaryError
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
