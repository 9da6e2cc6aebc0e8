package elasticsearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"logwhisperer/config"
	"logwhisperer/internal/model"
)

type fakeCluster struct {
	mu      sync.Mutex
	paths   []string
	docs    []reportDocument
	failing bool
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if f.failing {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"mapper_parsing_exception"}`))
		return
	}
	if r.Method == http.MethodPut || r.Method == http.MethodPost {
		var doc reportDocument
		_ = json.NewDecoder(r.Body).Decode(&doc)
		f.docs = append(f.docs, doc)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
		return
	}
	_, _ = w.Write([]byte(`{"version":{"number":"8.18.0"},"tagline":"You Know, for Search"}`))
}

func newTestStore(t *testing.T, cluster *fakeCluster) *elasticReportStore {
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	lc := fxtest.NewLifecycle(t)
	sink, err := NewReportStore(lc, &config.Config{Elasticsearch: config.ElasticsearchConfig{
		Addresses: []string{srv.URL},
		Index:     "log-summaries",
	}})
	require.NoError(t, err)
	lc.RequireStart()
	t.Cleanup(lc.RequireStop)
	return sink.(*elasticReportStore)
}

func TestReportStore_Publish(t *testing.T) {
	cluster := &fakeCluster{}
	store := newTestStore(t, cluster)

	r := &model.Report{
		ID:           "7f1c",
		CreatedAt:    time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		Source:       "file",
		Model:        "mistral",
		Summary:      model.SummaryError,
		Messages:     []string{"a", "b"},
		MessageCount: 2,
	}
	require.NoError(t, store.Publish(context.Background(), r))

	cluster.mu.Lock()
	defer cluster.mu.Unlock()
	assert.Contains(t, cluster.paths, "PUT /log-summaries/_doc/7f1c")
	require.Len(t, cluster.docs, 1)
	assert.Equal(t, "7f1c", cluster.docs[0].ReportID)
	assert.True(t, cluster.docs[0].Failed)
	assert.Equal(t, 2, cluster.docs[0].MessageCount)
}

func TestReportStore_PublishError(t *testing.T) {
	cluster := &fakeCluster{}
	store := newTestStore(t, cluster)
	cluster.mu.Lock()
	cluster.failing = true
	cluster.mu.Unlock()

	err := store.Publish(context.Background(), &model.Report{ID: "x"})

	assert.Error(t, err)
}

func TestNewReportStore_UnreachableClusterDoesNotDelayStart(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	lc := fxtest.NewLifecycle(t)
	_, err := NewReportStore(lc, &config.Config{Elasticsearch: config.ElasticsearchConfig{
		Addresses: []string{addr},
		Index:     "log-summaries",
	}})
	require.NoError(t, err)

	start := time.Now()
	lc.RequireStart()
	assert.Less(t, time.Since(start), time.Second)

	start = time.Now()
	lc.RequireStop()
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewReportStore_RequiresAddresses(t *testing.T) {
	_, err := NewReportStore(fxtest.NewLifecycle(t), &config.Config{})
	assert.Error(t, err)
}
