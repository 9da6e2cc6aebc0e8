package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"logwhisperer/internal/model"
	"logwhisperer/internal/ollama"
)

type result struct {
	out string
	err error
}

// scriptedGenerator replays results in order and records every prompt it saw.
type scriptedGenerator struct {
	mu      sync.Mutex
	results []result
	prompts []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if len(g.prompts) > len(g.results) {
		return "", errors.New("unexpected call")
	}
	r := g.results[len(g.prompts)-1]
	return r.out, r.err
}

var errTimedOut = fmt.Errorf("%w: context deadline exceeded", ollama.ErrTimeout)

func newTestSummarizer(g ollama.Generator) *warmupSummarizer {
	s := NewSummarizer(g).(*warmupSummarizer)
	s.warmupDelay = time.Millisecond
	return s
}

func TestSummarize_FirstAttemptSucceeds(t *testing.T) {
	g := &scriptedGenerator{results: []result{{out: "summary"}}}

	out := newTestSummarizer(g).Summarize(context.Background(), "prompt")

	assert.Equal(t, "summary", out)
	assert.Len(t, g.prompts, 1)
}

func TestSummarize_TimeoutThenSuccess(t *testing.T) {
	full := strings.Repeat("x", 500)
	g := &scriptedGenerator{results: []result{
		{err: errTimedOut},
		{out: "warm"},
		{out: "final summary"},
	}}

	out := newTestSummarizer(g).Summarize(context.Background(), full)

	assert.Equal(t, "final summary", out)
	assert.Len(t, g.prompts, 3)
	assert.Equal(t, full, g.prompts[0])
	assert.Equal(t, full[:200], g.prompts[1], "warm-up uses the first 200 characters")
	assert.Equal(t, full, g.prompts[2])
}

func TestSummarize_WarmupFailureIsNotFatal(t *testing.T) {
	g := &scriptedGenerator{results: []result{
		{err: errTimedOut},
		{err: errTimedOut},
		{out: "recovered"},
	}}

	assert.Equal(t, "recovered", newTestSummarizer(g).Summarize(context.Background(), "p"))
	assert.Len(t, g.prompts, 3)
}

func TestSummarize_SecondTimeoutIsFinal(t *testing.T) {
	g := &scriptedGenerator{results: []result{
		{err: errTimedOut},
		{out: "warm"},
		{err: errTimedOut},
	}}

	assert.Equal(t, model.SummaryError, newTestSummarizer(g).Summarize(context.Background(), "p"))
	assert.Len(t, g.prompts, 3, "exactly one retry")
}

func TestSummarize_NonTimeoutErrorDoesNotRetry(t *testing.T) {
	g := &scriptedGenerator{results: []result{
		{err: &ollama.APIError{StatusCode: 500, Body: "boom"}},
	}}

	assert.Equal(t, model.SummaryError, newTestSummarizer(g).Summarize(context.Background(), "p"))
	assert.Len(t, g.prompts, 1)
}

func TestSummarize_CancelledDuringDelay(t *testing.T) {
	g := &scriptedGenerator{results: []result{{err: errTimedOut}, {out: "warm"}, {out: "never"}}}
	s := newTestSummarizer(g)
	s.warmupDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	assert.Equal(t, model.SummaryError, s.Summarize(ctx, "p"))
	assert.Len(t, g.prompts, 2)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 200))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "héé", truncate("hééllo", 3), "counts runes, not bytes")
}
