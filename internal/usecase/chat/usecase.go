package chat

import (
	"context"
	"fmt"

	"github.com/futig/medical-chatbot/internal/config"
	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/futig/medical-chatbot/internal/pkg/logger"
	"github.com/futig/medical-chatbot/internal/pkg/validator"
	"github.com/futig/medical-chatbot/internal/repository"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// RetrievalK is the number of chunks handed to the LLM per question.
const RetrievalK = 3

// ChatUsecase answers questions from the indexed documents, keeping one
// conversation per session.
type ChatUsecase struct {
	historyRepo  repository.HistoryRepository
	llmConnector LLMConnector
	embedder     Embedder
	index        VectorIndex
	validator    *validator.Validator
	prompts      config.Prompts
	logger       *zap.Logger
}

// NewUsecase creates a new chat use case
func NewUsecase(
	historyRepo repository.HistoryRepository,
	llmConnector LLMConnector,
	embedder Embedder,
	index VectorIndex,
	validator *validator.Validator,
	prompts config.Prompts,
	logger *zap.Logger,
) *ChatUsecase {
	return &ChatUsecase{
		historyRepo:  historyRepo,
		llmConnector: llmConnector,
		embedder:     embedder,
		index:        index,
		validator:    validator,
		prompts:      prompts,
		logger:       logger,
	}
}

// Ask runs rewrite, retrieve and synthesize for one question and records
// the turn. Questions of one session are answered one at a time. On any
// error the history is left unchanged.
func (uc *ChatUsecase) Ask(ctx context.Context, sessionID, question string) (*entity.Query, error) {
	question, err := uc.validator.ValidateQuestion(question)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithSession(ctx, sessionID)

	unlock := uc.historyRepo.Lock(sessionID)
	defer unlock()

	history := uc.historyRepo.Get(ctx, sessionID)
	query := &entity.Query{RawQuestion: question}

	ctxzap.Info(ctx, "answering question",
		zap.String("input", question),
		zap.Int("history_turns", len(history)),
	)

	query.RewrittenQuestion, err = uc.Rewrite(ctx, question, history)
	if err != nil {
		return nil, fmt.Errorf("rewrite question: %w", err)
	}

	query.RetrievedChunks, err = uc.Retrieve(ctx, query.RewrittenQuestion)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	query.Answer, err = uc.Synthesize(ctx, query.RewrittenQuestion, query.RetrievedChunks, history)
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}

	uc.historyRepo.Append(ctx, sessionID, entity.Turn{
		Question: question,
		Answer:   query.Answer,
	})

	ctxzap.Info(ctx, "question answered",
		zap.String("standalone_question", query.RewrittenQuestion),
		zap.Strings("chunk_ids", chunkIDs(query.RetrievedChunks)),
		zap.String("response", query.Answer),
	)

	return query, nil
}

// Reset forgets the conversation of a session.
func (uc *ChatUsecase) Reset(ctx context.Context, sessionID string) {
	uc.historyRepo.Clear(ctx, sessionID)
	ctxzap.Info(ctx, "conversation reset", zap.String("session_id", sessionID))
}

func chunkIDs(chunks []entity.ScoredChunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}
