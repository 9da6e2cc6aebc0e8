package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog/log"

	"logwhisperer/config"
)

// ErrTimeout marks a request that hit its deadline. It is the only failure worth retrying:
// a cold server usually times out while it loads the model.
var ErrTimeout = errors.New("ollama request timed out")

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ollama API error: status code %d: %s", e.StatusCode, e.Body)
}

type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ShowRequest struct {
	Name string `json:"name"`
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Client struct {
	host       string
	model      string
	timeout    time.Duration
	httpClient *http.Client

	probeTimeout    time.Duration
	probeMaxElapsed time.Duration
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		host:            strings.TrimRight(cfg.OllamaHost, "/"),
		model:           cfg.Model,
		timeout:         cfg.Timeout,
		httpClient:      &http.Client{},
		probeTimeout:    10 * time.Second,
		probeMaxElapsed: 10 * time.Second,
	}
}

func (c *Client) Model() string { return c.model }

// Generate sends a non-streaming generation request bounded by the configured timeout and
// returns the trimmed response text. A deadline hit is reported as ErrTimeout.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(GenerateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	respBody, err := c.post(ctx, "/api/generate", body, c.timeout)
	if err != nil {
		return "", err
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		log.Error().Err(err).Bytes("response_body", respBody).Msg("Failed to unmarshal Ollama generate response")
		return "", fmt.Errorf("failed to parse generate response: %w", err)
	}
	return strings.TrimSpace(genResp.Response), nil
}

// Show asks the server for model details. Ollama loads the model as a side effect, which
// makes it a cheap availability probe.
func (c *Client) Show(ctx context.Context) error {
	body, err := json.Marshal(ShowRequest{Name: c.model})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	_, err = c.post(ctx, "/api/show", body, c.probeTimeout)
	return err
}

// EnsureModel probes the model with a short exponential backoff. It only logs the outcome;
// a failed probe never stops the caller.
func (c *Client) EnsureModel(ctx context.Context) {
	log.Info().Str("model", c.model).Msg("Ensuring model is loaded...")

	probeBackoff := backoff.NewExponentialBackOff()
	probeBackoff.InitialInterval = 500 * time.Millisecond
	probeBackoff.MaxInterval = 3 * time.Second
	probeBackoff.MaxElapsedTime = c.probeMaxElapsed

	attempt := 0
	operation := func() error {
		attempt++
		err := c.Show(ctx)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Model info check failed")
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(probeBackoff, ctx)); err != nil {
		log.Error().Err(err).Str("host", c.host).Msg("Failed to contact Ollama API")
		return
	}
	log.Info().Str("model", c.model).Msg("Model is ready")
}

func (c *Client) post(ctx context.Context, path string, body []byte, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}

// classify wraps deadline errors with ErrTimeout unless the parent context itself ended,
// which is a cancellation rather than a slow server.
func classify(parent context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("ollama request aborted: %w", parent.Err())
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("ollama request failed: %w", err)
}
