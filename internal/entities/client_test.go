package entities

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

func testClient(url string) *Client {
	cfg := DefaultClientConfig()
	cfg.BaseURL = url
	return NewClient(cfg)
}

func TestClassifyBatch_SplitsOversizedRequests(t *testing.T) {
	var calls int32
	var maxBatch int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/classify/batch", r.URL.Path)
		atomic.AddInt32(&calls, 1)

		var texts []string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&texts))
		if int32(len(texts)) > atomic.LoadInt32(&maxBatch) {
			atomic.StoreInt32(&maxBatch, int32(len(texts)))
		}

		out := classifyResponse{Classifications: make([][]Classification, len(texts))}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = "text"
	}

	results, err := testClient(srv.URL).ClassifyBatch(context.Background(), texts)
	require.NoError(t, err)

	assert.Len(t, results, 250)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.LessOrEqual(t, atomic.LoadInt32(&maxBatch), int32(100))
}

func TestExtractBatch_ResultCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(extractResponse{Results: []ExtractResult{{}}})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ExtractBatch(context.Background(), []string{"a", "b"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 results for 2 texts")
}

func TestDoJSON_TimeoutIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	cfg.BaseTimeout = 20 * time.Millisecond
	cfg.PerTextTimeout = 0

	_, err := NewClient(cfg).Health(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceTimeout)
}

func TestSkipEmbeddingTypes_Memoized(t *testing.T) {
	var configHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/config", r.URL.Path)
		atomic.AddInt32(&configHits, 1)
		json.NewEncoder(w).Encode(serviceConfig{SkipEmbeddingTypes: []string{"date", "money"}})
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	ctx := context.Background()

	types, err := client.SkipEmbeddingTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "money"}, types)

	_, err = client.SkipEmbeddingTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&configHits))

	client.InvalidateConfig()
	_, err = client.SkipEmbeddingTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&configHits))
}

func TestErrorResponseSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := testClient(srv.URL).LoadModel(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model not loaded")
}
