package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingServer struct {
	dim      int
	calls    atomic.Int32
	failWith int
	failures atomic.Int32
}

func (s *embeddingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	if s.failures.Load() > 0 {
		s.failures.Add(-1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.failWith)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
		return
	}

	var req struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data := make([]map[string]any, len(req.Input))
	for i, text := range req.Input {
		vec := make([]float32, s.dim)
		vec[0] = float32(len(text))
		vec[1] = float32(i)
		data[i] = map[string]any{"object": "embedding", "index": i, "embedding": vec}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  req.Model,
		"usage":  map[string]int{"prompt_tokens": len(req.Input), "total_tokens": len(req.Input)},
	})
}

func newTestClient(t *testing.T, srv http.Handler, dim, batch int) *Client {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	c := NewClient(Config{
		APIKey:    "test",
		BaseURL:   ts.URL,
		Model:     "text-embedding-3-small",
		Dimension: dim,
		Timeout:   2 * time.Second,
		BatchSize: batch,
	})
	c.retryConfig.InitialDelay = time.Millisecond
	c.retryConfig.MaxDelay = 5 * time.Millisecond
	return c
}

func TestEmbed(t *testing.T) {
	srv := &embeddingServer{dim: 4}
	c := newTestClient(t, srv, 4, 10)

	vec, err := c.Embed(context.Background(), "child custody rights")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, float32(len("child custody rights")), vec[0])
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestEmbedDoesNotRetry(t *testing.T) {
	srv := &embeddingServer{dim: 4, failWith: http.StatusServiceUnavailable}
	srv.failures.Store(1)
	c := newTestClient(t, srv, 4, 10)

	_, err := c.Embed(context.Background(), "query")
	require.Error(t, err)
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	c := newTestClient(t, &embeddingServer{dim: 4}, 8, 10)

	_, err := c.Embed(context.Background(), "query")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEmbedBatchSplitsAndPreservesOrder(t *testing.T) {
	srv := &embeddingServer{dim: 3}
	c := newTestClient(t, srv, 3, 2)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := c.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vecs[i][0])
	}
	assert.Equal(t, int32(3), srv.calls.Load())
}

func TestEmbedBatchRetriesTransientFailures(t *testing.T) {
	srv := &embeddingServer{dim: 3, failWith: http.StatusInternalServerError}
	srv.failures.Store(2)
	c := newTestClient(t, srv, 3, 10)

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, int32(3), srv.calls.Load())
}

func TestEmbedBatchDoesNotRetryClientErrors(t *testing.T) {
	srv := &embeddingServer{dim: 3, failWith: http.StatusUnauthorized}
	srv.failures.Store(5)
	c := newTestClient(t, srv, 3, 10)

	_, err := c.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestEmbedBatchEmpty(t *testing.T) {
	srv := &embeddingServer{dim: 3}
	c := newTestClient(t, srv, 3, 10)

	vecs, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Zero(t, srv.calls.Load())
}

func TestMeanVector(t *testing.T) {
	got := MeanVector([][]float32{{1, 0}, {0, 1}})
	require.Len(t, got, 2)
	assert.InDelta(t, 0.7071, got[0], 1e-4)
	assert.InDelta(t, 0.7071, got[1], 1e-4)

	assert.Nil(t, MeanVector(nil))
	assert.Nil(t, MeanVector([][]float32{{1, 2}, {1}}))
	assert.Equal(t, []float32{0, 0}, MeanVector([][]float32{{0, 0}}))
}
