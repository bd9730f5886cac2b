package repository

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/futig/medical-chatbot/internal/entity"
)

const testDim = 4

func unit(v ...float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i := range v {
		out[i] = v[i] / norm
	}
	return out
}

func chunk(id, text string, v []float32) entity.EmbeddedChunk {
	return entity.EmbeddedChunk{
		Chunk:  entity.Chunk{ID: id, Text: text, Source: "data/medical.pdf"},
		Vector: v,
	}
}

func TestChunkChromem_Lifecycle(t *testing.T) {
	ctx := context.Background()

	idx, err := NewChunkChromem("", false, "medical-chatbot", testDim)
	if err != nil {
		t.Fatalf("NewChunkChromem() error = %v", err)
	}

	exists, err := idx.Exists(ctx)
	if err != nil || exists {
		t.Fatalf("Exists() = %v, %v; want false, nil", exists, err)
	}

	if _, err := idx.Search(ctx, unit(1, 0, 0, 0), 3); !errors.Is(err, entity.ErrIndexNotFound) {
		t.Fatalf("Search() on missing index error = %v, want ErrIndexNotFound", err)
	}

	if err := idx.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	if err := idx.EnsureIndex(ctx); err != nil {
		t.Fatalf("second EnsureIndex() error = %v", err)
	}

	hits, err := idx.Search(ctx, unit(1, 0, 0, 0), 3)
	if err != nil || len(hits) != 0 {
		t.Fatalf("Search() on empty index = %v, %v; want empty", hits, err)
	}
}

func TestChunkChromem_SearchOrdering(t *testing.T) {
	ctx := context.Background()

	idx, err := NewChunkChromem("", false, "medical-chatbot", testDim)
	if err != nil {
		t.Fatalf("NewChunkChromem() error = %v", err)
	}
	if err := idx.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}

	chunks := []entity.EmbeddedChunk{
		chunk("doc:0002", "tied later", unit(1, 0, 0, 0)),
		chunk("doc:0000", "tied first", unit(1, 0, 0, 0)),
		chunk("doc:0001", "close", unit(1, 1, 0, 0)),
		chunk("doc:0003", "far", unit(0, 0, 1, 0)),
		chunk("doc:0004", "farther", unit(0, 0, 0, 1)),
	}

	n, err := idx.Upsert(ctx, chunks)
	if err != nil || n != len(chunks) {
		t.Fatalf("Upsert() = %d, %v", n, err)
	}

	// Idempotent by ID.
	if _, err := idx.Upsert(ctx, chunks[:2]); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	hits, err := idx.Search(ctx, unit(1, 0, 0, 0), 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	want := []string{"doc:0000", "doc:0002", "doc:0001"}
	if len(hits) != len(want) {
		t.Fatalf("len(hits) = %d, want %d", len(hits), len(want))
	}
	for i, id := range want {
		if hits[i].ID != id {
			t.Errorf("hits[%d] = %s, want %s", i, hits[i].ID, id)
		}
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("scores not descending: %v", hits)
		}
	}
	if hits[0].Text != "tied first" || hits[0].Source != "data/medical.pdf" {
		t.Errorf("hit = %+v", hits[0].Chunk)
	}

	all, err := idx.Search(ctx, unit(1, 0, 0, 0), 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(all) != len(chunks) {
		t.Errorf("k larger than the index returned %d hits, want %d", len(all), len(chunks))
	}
}

func TestChunkChromem_DimensionMismatch(t *testing.T) {
	ctx := context.Background()

	idx, err := NewChunkChromem("", false, "medical-chatbot", testDim)
	if err != nil {
		t.Fatalf("NewChunkChromem() error = %v", err)
	}
	if err := idx.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}

	if _, err := idx.Upsert(ctx, []entity.EmbeddedChunk{chunk("x", "x", []float32{1, 0})}); !errors.Is(err, entity.ErrDimensionMismatch) {
		t.Errorf("Upsert() error = %v, want ErrDimensionMismatch", err)
	}
	if _, err := idx.Search(ctx, []float32{1, 0}, 3); !errors.Is(err, entity.ErrDimensionMismatch) {
		t.Errorf("Search() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestChunkChromem_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := NewChunkChromem(dir, false, "medical-chatbot", testDim)
	if err != nil {
		t.Fatalf("NewChunkChromem() error = %v", err)
	}
	if err := idx.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	if _, err := idx.Upsert(ctx, []entity.EmbeddedChunk{chunk("doc:0000", "kept", unit(1, 0, 0, 0))}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	reopened, err := NewChunkChromem(dir, false, "medical-chatbot", testDim)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	exists, err := reopened.Exists(ctx)
	if err != nil || !exists {
		t.Fatalf("Exists() after reopen = %v, %v", exists, err)
	}

	hits, err := reopened.Search(ctx, unit(1, 0, 0, 0), 3)
	if err != nil || len(hits) != 1 || hits[0].Text != "kept" {
		t.Errorf("Search() after reopen = %v, %v", hits, err)
	}
}
