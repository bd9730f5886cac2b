package repository

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/futig/medical-chatbot/internal/pkg/ranking"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const chromemStore = "chromem"

var _ ChunkIndex = &ChunkChromem{}

// ChunkChromem is an embedded index, in memory or persisted to a directory.
// Embeddings always come from the caller; the collection never embeds text.
type ChunkChromem struct {
	db        *chromem.DB
	name      string
	dimension int
}

// NewChunkChromem opens the index. An empty path keeps it in memory.
func NewChunkChromem(path string, compress bool, name string, dimension int) (*ChunkChromem, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db at %s: %w", path, err)
		}
	}

	return &ChunkChromem{
		db:        db,
		name:      name,
		dimension: dimension,
	}, nil
}

func (r *ChunkChromem) Exists(_ context.Context) (bool, error) {
	return r.collection() != nil, nil
}

func (r *ChunkChromem) EnsureIndex(ctx context.Context) error {
	if r.collection() != nil {
		return nil
	}

	_, err := r.db.GetOrCreateCollection(r.name, map[string]string{
		"dimension": strconv.Itoa(r.dimension),
		"metric":    "cosine",
	}, noEmbedding)
	if err != nil {
		return storeError(chromemStore, "create_index", err)
	}

	ctxzap.Info(ctx, "created chromem collection", zap.String("index", r.name))
	return nil
}

func (r *ChunkChromem) Upsert(ctx context.Context, chunks []entity.EmbeddedChunk) (int, error) {
	c := r.collection()
	if c == nil {
		return 0, fmt.Errorf("%w: %s", entity.ErrIndexNotFound, r.name)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Vector) != r.dimension {
			return 0, fmt.Errorf("%w: chunk %s has %d values, index expects %d",
				entity.ErrDimensionMismatch, chunk.ID, len(chunk.Vector), r.dimension)
		}
		docs = append(docs, chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Text,
			Metadata:  map[string]string{entity.MetadataSource: chunk.Source},
			Embedding: chunk.Vector,
		})
	}

	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return 0, storeError(chromemStore, "upsert", err)
	}

	return len(docs), nil
}

// Search scores every document so ties can be ordered by chunk ID before
// truncating to k.
func (r *ChunkChromem) Search(ctx context.Context, query []float32, k int) ([]entity.ScoredChunk, error) {
	if len(query) != r.dimension {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d",
			entity.ErrDimensionMismatch, len(query), r.dimension)
	}

	c := r.collection()
	if c == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrIndexNotFound, r.name)
	}

	n := c.Count()
	if n == 0 || k <= 0 {
		return []entity.ScoredChunk{}, nil
	}

	results, err := c.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, storeError(chromemStore, "query", err)
	}

	hits := make([]entity.ScoredChunk, 0, len(results))
	for _, res := range results {
		hits = append(hits, entity.ScoredChunk{
			Chunk: entity.Chunk{
				ID:     res.ID,
				Text:   res.Content,
				Source: res.Metadata[entity.MetadataSource],
			},
			Score: res.Similarity,
		})
	}

	return ranking.TopK(hits, k), nil
}

func (r *ChunkChromem) collection() *chromem.Collection {
	return r.db.GetCollection(r.name, noEmbedding)
}

// noEmbedding guards against chromem embedding text on its own, which it
// would do with a remote default model.
func noEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("%w: chromem collection has no embedding function", entity.ErrMalformedResponse)
}
