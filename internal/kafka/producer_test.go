package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"logwhisperer/config"
	"logwhisperer/internal/model"
)

func TestNewReportMessage(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &model.Report{ID: "abc", CreatedAt: created, Source: "journal", Model: "mistral", Summary: "ok", Messages: []string{"m"}, MessageCount: 1}

	msg, err := newReportMessage(r)
	require.NoError(t, err)

	assert.Equal(t, []byte("abc"), msg.Key)
	assert.Equal(t, created, msg.Time)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "journal", string(msg.Headers[0].Value))

	var decoded model.Report
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "ok", decoded.Summary)
	assert.Equal(t, []string{"m"}, decoded.Messages)
}

func TestNewReportPublisher_RequiresBrokers(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	_, err := NewReportPublisher(lc, &config.Config{Kafka: config.KafkaConfig{Topic: "t"}})

	assert.Error(t, err)
}

func TestNewReportPublisher_ClosesOnStop(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	sink, err := NewReportPublisher(lc, &config.Config{Kafka: config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}, Topic: "t"}})
	require.NoError(t, err)
	assert.Equal(t, "kafka", sink.Name())

	lc.RequireStart()
	lc.RequireStop()
}
