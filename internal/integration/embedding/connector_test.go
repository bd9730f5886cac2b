package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/futig/medical-chatbot/internal/config"
	"github.com/futig/medical-chatbot/internal/entity"
	pkgRetry "github.com/futig/medical-chatbot/internal/pkg/retry"
	"go.uber.org/zap/zaptest"
)

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingItem struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingsResponse struct {
	Object string          `json:"object"`
	Data   []embeddingItem `json:"data"`
	Model  string          `json:"model"`
}

// fakeEmbeddingServer encodes the length of each input in the vector
// direction so tests can check result order.
func fakeEmbeddingServer(t *testing.T, dim int, failFirst int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failFirst {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
			return
		}

		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp := embeddingsResponse{Object: "list", Model: req.Model}
		for i, text := range req.Input {
			v := make([]float32, dim)
			v[0] = float32(len(text))
			if dim > 1 {
				v[1] = 1
			}
			resp.Data = append(resp.Data, embeddingItem{Object: "embedding", Embedding: v, Index: i})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	return srv, &calls
}

func testConfig(url string) config.EmbeddingConfig {
	return config.EmbeddingConfig{
		HTTPClientConfig: config.HTTPClientConfig{
			RequestTimeout:        5 * time.Second,
			ConnTimeout:           time.Second,
			KeepAlive:             time.Second,
			IdleConnTimeout:       time.Second,
			ResponseHeaderTimeout: 5 * time.Second,
			Url:                   url,
		},
		Model:       "sentence-transformers/all-MiniLM-L6-v2",
		Dimension:   entity.EmbeddingDimension,
		BatchSize:   2,
		Concurrency: 2,
		Retry: pkgRetry.RetryConfig{
			Attempts: 3,
			Delay:    time.Millisecond,
			MaxDelay: 5 * time.Millisecond,
		},
	}
}

func TestConnector_EmbedQuery(t *testing.T) {
	srv, _ := fakeEmbeddingServer(t, entity.EmbeddingDimension, 0)
	conn := NewConnector(testConfig(srv.URL), zaptest.NewLogger(t))

	v, err := conn.EmbedQuery(context.Background(), "capital of France")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(v) != entity.EmbeddingDimension {
		t.Fatalf("len = %d, want %d", len(v), entity.EmbeddingDimension)
	}
	if norm := math.Sqrt(float64(dot(v, v))); math.Abs(norm-1) > 1e-5 {
		t.Errorf("vector not normalized: norm = %f", norm)
	}
}

func TestConnector_EmbedDocumentsKeepsOrder(t *testing.T) {
	srv, calls := fakeEmbeddingServer(t, entity.EmbeddingDimension, 0)

	cfg := testConfig(srv.URL)
	conn := NewConnector(cfg, zaptest.NewLogger(t))

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := conn.EmbedDocuments(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("len = %d, want %d", len(vectors), len(texts))
	}
	for i, text := range texts {
		want, err := conn.EmbedQuery(context.Background(), text)
		if err != nil {
			t.Fatalf("EmbedQuery() error = %v", err)
		}
		if len(vectors[i]) != len(want) || vectors[i][0] != want[0] {
			t.Errorf("vectors[%d] does not belong to %q", i, text)
		}
	}
	// 5 texts in batches of 2 plus 5 single queries.
	if got := calls.Load(); got != 8 {
		t.Errorf("calls = %d, want 8", got)
	}
}

func TestConnector_EmbedDocumentsRetries(t *testing.T) {
	srv, calls := fakeEmbeddingServer(t, entity.EmbeddingDimension, 1)

	cfg := testConfig(srv.URL)
	cfg.BatchSize = 10
	conn := NewConnector(cfg, zaptest.NewLogger(t))

	if _, err := conn.EmbedDocuments(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("EmbedDocuments() error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestConnector_DimensionMismatch(t *testing.T) {
	srv, calls := fakeEmbeddingServer(t, 8, 0)
	conn := NewConnector(testConfig(srv.URL), zaptest.NewLogger(t))

	_, err := conn.EmbedDocuments(context.Background(), []string{"a"})
	if !errors.Is(err, entity.ErrDimensionMismatch) {
		t.Fatalf("error = %v, want ErrDimensionMismatch", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("dimension mismatch must not be retried, calls = %d", got)
	}
}

func TestConnector_ServerError(t *testing.T) {
	srv, _ := fakeEmbeddingServer(t, entity.EmbeddingDimension, 100)
	conn := NewConnector(testConfig(srv.URL), zaptest.NewLogger(t))

	_, err := conn.EmbedQuery(context.Background(), "a")
	if !errors.Is(err, entity.ErrProviderUnavailable) {
		t.Fatalf("error = %v, want ErrProviderUnavailable", err)
	}

	var pe *entity.ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("error = %v, want status 503", err)
	}
}

func TestMockConnector_SharedWordsAreSimilar(t *testing.T) {
	mock := NewMockConnector(entity.EmbeddingDimension, zaptest.NewLogger(t))

	q, _ := mock.EmbedQuery(context.Background(), "What is the capital of France?")
	docs, _ := mock.EmbedDocuments(context.Background(), []string{
		"The capital of France is Paris.",
		"Aspirin reduces fever.",
	})

	if dot(q, docs[0]) <= dot(q, docs[1]) {
		t.Errorf("expected the France chunk to be closer: %f <= %f", dot(q, docs[0]), dot(q, docs[1]))
	}
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
