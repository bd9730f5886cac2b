package builder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/futig/medical-chatbot/internal/api"
	chatapi "github.com/futig/medical-chatbot/internal/api/chat"
	"github.com/futig/medical-chatbot/internal/config"
	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/futig/medical-chatbot/internal/pkg/validator"
	"github.com/futig/medical-chatbot/internal/repository"
	"github.com/futig/medical-chatbot/internal/usecase/chat"
	"github.com/futig/medical-chatbot/internal/usecase/ingest"
	"go.uber.org/zap"
)

// startupTimeout bounds the vector index checks done before serving.
const startupTimeout = time.Minute

// Build wires the chat server. It fails when credentials are missing or the
// vector index has not been created by an ingestion run.
func Build(environment string) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	cfg, err := config.LoadConfig(environment)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	logger.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
		zap.String("vector_store", cfg.VectorStoreCfg.Type),
		zap.Bool("mocks", cfg.EnableMocks),
	)

	// Initialize connectors
	embedder := setupEmbedder(cfg, logger)
	llmConnector, err := setupLLM(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup llm: %w", err)
	}

	index, db, err := setupVectorIndex(ctx, cfg, embedder.Dimension(), logger)
	if err != nil {
		return nil, fmt.Errorf("setup vector index: %w", err)
	}
	closeDB := func() {
		if db != nil {
			db.Close()
		}
	}

	// Serving never creates the index
	exists, err := index.Exists(ctx)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("check vector index %q: %w", cfg.VectorStoreCfg.IndexName, err)
	}
	if !exists {
		closeDB()
		return nil, fmt.Errorf("%w: %q, run the ingest command first", entity.ErrIndexNotFound, cfg.VectorStoreCfg.IndexName)
	}
	logger.Info("Vector index ready", zap.String("index", cfg.VectorStoreCfg.IndexName))

	// Initialize repositories
	historyRepo := repository.NewHistoryCache(cfg.HistoryCfg.TTL, cfg.HistoryCfg.CleanupInterval, cfg.HistoryCfg.MaxTurns)

	questionValidator := validator.NewValidator(cfg.MaxQuestionLength)

	// Initialize use cases
	chatUC := chat.NewUsecase(
		historyRepo,
		llmConnector,
		embedder,
		index,
		questionValidator,
		cfg.Prompts,
		logger,
	)
	logger.Info("Use cases initialized")

	chatHandler := chatapi.NewHandler(chatUC)
	router := api.SetupRouter(chatHandler, cfg.SessionCfg, cfg.RequestTimeout, logger)
	logger.Info("HTTP router configured")

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &App{
		server: server,
		db:     db,
		logger: logger,
	}, nil
}

// BuildIngestor wires the ingestion use case. The returned cleanup releases
// the database pool and flushes the logger.
func BuildIngestor(environment string) (*ingest.IngestUsecase, *zap.Logger, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	cfg, err := config.LoadConfig(environment)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("setup logger: %w", err)
	}

	logger.Info("Building ingestor",
		zap.String("environment", cfg.Environment),
		zap.String("vector_store", cfg.VectorStoreCfg.Type),
		zap.Bool("mocks", cfg.EnableMocks),
	)

	embedder := setupEmbedder(cfg, logger)

	index, db, err := setupVectorIndex(ctx, cfg, embedder.Dimension(), logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("setup vector index: %w", err)
	}

	cleanup := func() {
		if db != nil {
			db.Close()
		}
		_ = logger.Sync()
	}

	return ingest.NewUsecase(embedder, index, cfg.IngestCfg, logger), logger, cleanup, nil
}
