package ingest

import (
	"context"
	"fmt"

	"github.com/futig/medical-chatbot/internal/config"
	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/futig/medical-chatbot/internal/pkg/logger"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Options of one ingestion run.
type Options struct {
	Dir string
	// DryRun stops after splitting; no provider is called.
	DryRun bool
}

// IngestUsecase loads PDFs into the vector index.
type IngestUsecase struct {
	embedder Embedder
	index    VectorIndex
	cfg      config.IngestConfig
	logger   *zap.Logger
}

// NewUsecase creates a new ingestion use case
func NewUsecase(embedder Embedder, index VectorIndex, cfg config.IngestConfig, logger *zap.Logger) *IngestUsecase {
	return &IngestUsecase{
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run loads, filters and splits the PDFs under opts.Dir, then embeds the
// chunks, creates the index if absent and upserts them.
func (uc *IngestUsecase) Run(ctx context.Context, opts Options) (*entity.IngestReport, error) {
	ctx = logger.WithAction(ctx, "Ingest")
	ctx = logger.AddFields(ctx, zap.String("dir", opts.Dir), zap.Bool("dry_run", opts.DryRun))

	docs, files, err := LoadDir(ctx, opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	split, err := Split(FilterToMinimal(docs), uc.cfg.ChunkSize, uc.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	chunks := ToChunks(split)

	report := &entity.IngestReport{
		Files:  files,
		Pages:  len(docs),
		Chunks: len(chunks),
		DryRun: opts.DryRun,
	}

	ctxzap.Info(ctx, "documents split",
		zap.Int("files", report.Files),
		zap.Int("pages", report.Pages),
		zap.Int("chunks", report.Chunks),
	)

	if opts.DryRun {
		return report, nil
	}

	var embedded []entity.EmbeddedChunk
	if len(chunks) > 0 {
		embedded, err = uc.embed(ctx, chunks)
		if err != nil {
			return nil, err
		}
	} else {
		ctxzap.Warn(ctx, "no chunks to ingest")
	}

	if err := uc.index.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}

	if len(embedded) > 0 {
		report.Upserted, err = uc.index.Upsert(ctx, embedded)
		if err != nil {
			return nil, fmt.Errorf("upsert chunks: %w", err)
		}
	}

	ctxzap.Info(ctx, "ingestion finished", zap.Int("upserted", report.Upserted))

	return report, nil
}

func (uc *IngestUsecase) embed(ctx context.Context, chunks []entity.Chunk) ([]entity.EmbeddedChunk, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := uc.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", entity.ErrMalformedResponse, len(vectors), len(chunks))
	}

	embedded := make([]entity.EmbeddedChunk, len(chunks))
	for i, c := range chunks {
		embedded[i] = entity.EmbeddedChunk{Chunk: c, Vector: vectors[i]}
	}
	return embedded, nil
}
