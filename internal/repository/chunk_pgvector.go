package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/futig/medical-chatbot/internal/pkg/ranking"
	pkgRetry "github.com/futig/medical-chatbot/internal/pkg/retry"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

const pgvectorStore = "pgvector"

// ChunkIndex is a vector index that stores embedded chunks and answers
// nearest-neighbour queries by cosine similarity.
type ChunkIndex interface {
	EnsureIndex(ctx context.Context) error
	Exists(ctx context.Context) (bool, error)
	Upsert(ctx context.Context, chunks []entity.EmbeddedChunk) (int, error)
	Search(ctx context.Context, query []float32, k int) ([]entity.ScoredChunk, error)
}

var _ ChunkIndex = &ChunkPgvector{}

// ChunkPgvector keeps chunks in Postgres with the pgvector extension.
// Each named index is a row of vector_indexes; its chunks reference it.
type ChunkPgvector struct {
	db           *pgxpool.Pool
	name         string
	dimension    int
	queryTimeout time.Duration
	retry        pkgRetry.RetryConfig
}

func NewChunkPgvector(db *pgxpool.Pool, name string, dimension int, queryTimeout time.Duration, retry pkgRetry.RetryConfig) *ChunkPgvector {
	return &ChunkPgvector{
		db:           db,
		name:         name,
		dimension:    dimension,
		queryTimeout: queryTimeout,
		retry:        retry,
	}
}

func (r *ChunkPgvector) Exists(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	var dimension int
	err := r.db.QueryRow(ctx,
		`SELECT dimension FROM vector_indexes WHERE name = $1`, r.name,
	).Scan(&dimension)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, storeError(pgvectorStore, "describe", err)
	}

	if dimension != r.dimension {
		return false, fmt.Errorf("%w: index %s has dimension %d, embeddings have %d",
			entity.ErrDimensionMismatch, r.name, dimension, r.dimension)
	}

	return true, nil
}

func (r *ChunkPgvector) EnsureIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx,
		`INSERT INTO vector_indexes (name, dimension, metric) VALUES ($1, $2, 'cosine')
		 ON CONFLICT (name) DO NOTHING`,
		r.name, r.dimension,
	)
	if err != nil {
		return storeError(pgvectorStore, "create_index", err)
	}

	if tag.RowsAffected() > 0 {
		ctxzap.Info(ctx, "created pgvector index", zap.String("index", r.name), zap.Int("dimension", r.dimension))
	}

	_, err = r.Exists(ctx)
	return err
}

func (r *ChunkPgvector) Upsert(ctx context.Context, chunks []entity.EmbeddedChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	for _, c := range chunks {
		if len(c.Vector) != r.dimension {
			return 0, fmt.Errorf("%w: chunk %s has %d values, index expects %d",
				entity.ErrDimensionMismatch, c.ID, len(c.Vector), r.dimension)
		}
	}

	err := r.retry.Do(ctx, func() error {
		batch := &pgx.Batch{}
		for _, c := range chunks {
			batch.Queue(
				`INSERT INTO chunks (index_name, id, source, content, embedding)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (index_name, id) DO UPDATE
				 SET source = EXCLUDED.source,
				     content = EXCLUDED.content,
				     embedding = EXCLUDED.embedding,
				     updated_at = NOW()`,
				r.name, c.ID, c.Source, c.Text, pgvector.NewVector(c.Vector),
			)
		}

		tx, err := r.db.Begin(ctx)
		if err != nil {
			return storeError(pgvectorStore, "upsert", err)
		}
		defer tx.Rollback(ctx)

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return storeError(pgvectorStore, "upsert", err)
		}

		return storeError(pgvectorStore, "upsert", tx.Commit(ctx))
	}, entity.IsRetryable, func(n uint, err error) {
		ctxzap.Warn(ctx, "retrying pgvector upsert", zap.Uint("attempt", n+1), zap.Error(err))
	})
	if err != nil {
		return 0, err
	}

	return len(chunks), nil
}

func (r *ChunkPgvector) Search(ctx context.Context, query []float32, k int) ([]entity.ScoredChunk, error) {
	if len(query) != r.dimension {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d",
			entity.ErrDimensionMismatch, len(query), r.dimension)
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT id, source, content, 1 - (embedding <=> $1) AS score
		 FROM chunks
		 WHERE index_name = $2
		 ORDER BY embedding <=> $1, id
		 LIMIT $3`,
		pgvector.NewVector(query), r.name, k,
	)
	if err != nil {
		return nil, storeError(pgvectorStore, "query", err)
	}
	defer rows.Close()

	var hits []entity.ScoredChunk
	for rows.Next() {
		var (
			hit   entity.ScoredChunk
			score float64
		)
		if err := rows.Scan(&hit.ID, &hit.Source, &hit.Text, &score); err != nil {
			return nil, storeError(pgvectorStore, "query", err)
		}
		hit.Score = float32(score)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(pgvectorStore, "query", err)
	}

	return ranking.TopK(hits, k), nil
}
