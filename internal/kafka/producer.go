package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"

	"logwhisperer/config"
	"logwhisperer/internal/model"
	"logwhisperer/internal/report"
)

type kafkaReportPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewReportPublisher returns a sink producing every report as a JSON message keyed by
// report ID. The writer is closed when the application stops.
func NewReportPublisher(lc fx.Lifecycle, cfg *config.Config) (report.Sink, error) {
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" {
		log.Error().Msg("Kafka brokers or topic is not configured.")
		return nil, errors.New("kafka configuration missing")
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: int(kafka.RequireOne),
	})

	p := &kafkaReportPublisher{
		writer: writer,
		topic:  cfg.Kafka.Topic,
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Closing Kafka producer")
			return p.writer.Close()
		},
	})
	log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka report publisher initialized")
	return p, nil
}

func (p *kafkaReportPublisher) Name() string { return "kafka" }

func (p *kafkaReportPublisher) Publish(ctx context.Context, r *model.Report) error {
	msg, err := newReportMessage(r)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().Err(err).Str("topic", p.topic).Msg("Failed to write report to Kafka")
		return fmt.Errorf("kafka produce error: %w", err)
	}
	log.Debug().Str("topic", p.topic).Str("report_id", r.ID).Msg("Produced report to Kafka")
	return nil
}

func newReportMessage(r *model.Report) (kafka.Message, error) {
	value, err := json.Marshal(r)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal report: %w", err)
	}
	return kafka.Message{
		Key:   []byte(r.ID),
		Value: value,
		Time:  r.CreatedAt,
		Headers: []kafka.Header{
			{Key: "source", Value: []byte(r.Source)},
			{Key: "model", Value: []byte(r.Model)},
		},
	}, nil
}
