package builder

import (
	"context"
	"fmt"

	"github.com/futig/medical-chatbot/internal/config"
	"github.com/futig/medical-chatbot/internal/integration/embedding"
	"github.com/futig/medical-chatbot/internal/integration/llm"
	"github.com/futig/medical-chatbot/internal/integration/pinecone"
	"github.com/futig/medical-chatbot/internal/repository"
	"github.com/futig/medical-chatbot/internal/usecase/chat"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// embedder is served to both the chat and the ingest use cases, so the
// same model embeds documents and questions.
type embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

func setupEmbedder(cfg *config.Config, logger *zap.Logger) embedder {
	if cfg.EnableMocks {
		logger.Info("Using mock embedding connector")
		return embedding.NewMockConnector(cfg.EmbeddingCfg.Dimension, logger)
	}
	return embedding.NewConnector(cfg.EmbeddingCfg, logger)
}

func setupLLM(cfg *config.Config, logger *zap.Logger) (chat.LLMConnector, error) {
	if cfg.EnableMocks {
		logger.Info("Using mock LLM connector")
		return llm.NewMockConnector(cfg.Prompts, logger), nil
	}
	connector, err := llm.NewConnector(cfg.LLMCfg, logger)
	if err != nil {
		return nil, err
	}
	return connector, nil
}

// setupVectorIndex opens the configured backend. The returned pool is nil
// unless the backend is pgvector.
func setupVectorIndex(ctx context.Context, cfg *config.Config, dimension int, logger *zap.Logger) (repository.ChunkIndex, *pgxpool.Pool, error) {
	vsCfg := cfg.VectorStoreCfg

	logger.Info("Opening vector index",
		zap.String("backend", vsCfg.Type),
		zap.String("index", vsCfg.IndexName),
		zap.Int("dimension", dimension),
	)

	switch vsCfg.Type {
	case config.VectorStorePinecone:
		index, err := pinecone.NewIndex(vsCfg, dimension, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create pinecone index client: %w", err)
		}
		return index, nil, nil

	case config.VectorStorePgvector:
		logger.Info("Running database migrations")
		if err := repository.RunMigrations(vsCfg.Postgres.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("Database migrations completed successfully")

		db, err := setupDatabase(ctx, vsCfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("setup database: %w", err)
		}
		return repository.NewChunkPgvector(db, vsCfg.IndexName, dimension, vsCfg.Postgres.QueryTimeout, vsCfg.Retry), db, nil

	case config.VectorStoreChromem:
		index, err := repository.NewChunkChromem(vsCfg.Chromem.Path, vsCfg.Chromem.Compress, vsCfg.IndexName, dimension)
		if err != nil {
			return nil, nil, fmt.Errorf("open chromem index: %w", err)
		}
		return index, nil, nil
	}

	return nil, nil, fmt.Errorf("unknown vector store %q", vsCfg.Type)
}
