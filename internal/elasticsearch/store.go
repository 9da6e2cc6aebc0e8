package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"logwhisperer/config"
	"logwhisperer/internal/model"
	"logwhisperer/internal/report"
)

type reportDocument struct {
	Timestamp    time.Time `json:"@timestamp"`
	ReportID     string    `json:"report_id"`
	Source       string    `json:"source"`
	Model        string    `json:"model"`
	Summary      string    `json:"summary"`
	Failed       bool      `json:"failed"`
	Messages     []string  `json:"messages"`
	MessageCount int       `json:"message_count"`
	Path         string    `json:"path,omitempty"`
}

type elasticReportStore struct {
	client *elasticsearch.Client
	index  string

	connectMaxElapsed time.Duration
}

// NewReportStore returns a sink indexing every report as one document, using the report ID
// as document ID. The connection is verified in the background after start; an unreachable
// cluster is logged but never delays or prevents the application from running.
func NewReportStore(lc fx.Lifecycle, cfg *config.Config) (report.Sink, error) {
	if len(cfg.Elasticsearch.Addresses) == 0 {
		log.Error().Msg("Elasticsearch addresses are not configured.")
		return nil, errors.New("elasticsearch configuration missing")
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost:   10,
		ResponseHeaderTimeout: 10 * time.Second,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	store := &elasticReportStore{
		client:            client,
		index:             cfg.Elasticsearch.Index,
		connectMaxElapsed: 15 * time.Second,
	}
	verifyCtx, cancelVerify := context.WithCancel(context.Background())
	verified := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(verified)
				if err := store.verify(verifyCtx); err != nil {
					log.Warn().Err(err).Msg("Elasticsearch not reachable, reports will be retried per cycle")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancelVerify()
			select {
			case <-verified:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
	return store, nil
}

func (s *elasticReportStore) Name() string { return "elasticsearch" }

func (s *elasticReportStore) verify(ctx context.Context) error {
	operation := func() error {
		res, err := s.client.Info(s.client.Info.WithContext(ctx))
		if err != nil {
			log.Warn().Err(err).Msg("Attempt failed: Error during Elasticsearch Info() call (transport level)")
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("elasticsearch Info() returned error status: %s", res.Status())
		}
		return nil
	}

	connectBackoff := backoff.NewExponentialBackOff()
	connectBackoff.InitialInterval = time.Second
	connectBackoff.MaxInterval = 5 * time.Second
	connectBackoff.MaxElapsedTime = s.connectMaxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(connectBackoff, ctx)); err != nil {
		return err
	}
	log.Info().Str("index", s.index).Msg("Elasticsearch connection verified")
	return nil
}

func (s *elasticReportStore) Publish(ctx context.Context, r *model.Report) error {
	body, err := json.Marshal(newReportDocument(r))
	if err != nil {
		return fmt.Errorf("failed to marshal report document: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithDocumentID(r.ID),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch index error: %s", res.String())
	}
	return nil
}

func newReportDocument(r *model.Report) reportDocument {
	return reportDocument{
		Timestamp:    r.CreatedAt.UTC(),
		ReportID:     r.ID,
		Source:       r.Source,
		Model:        r.Model,
		Summary:      r.Summary,
		Failed:       r.Failed(),
		Messages:     r.Messages,
		MessageCount: r.MessageCount,
		Path:         r.Path,
	}
}
