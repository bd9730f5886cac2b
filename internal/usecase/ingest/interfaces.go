package ingest

import (
	"context"

	"github.com/futig/medical-chatbot/internal/entity"
)

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorIndex interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, chunks []entity.EmbeddedChunk) (int, error)
}
