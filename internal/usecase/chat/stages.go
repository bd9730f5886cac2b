package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/futig/medical-chatbot/internal/config"
	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/futig/medical-chatbot/internal/pkg/logger"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// Rewrite turns a follow-up question into one that stands on its own.
// Without history there is nothing to resolve and the LLM is not called.
func (uc *ChatUsecase) Rewrite(ctx context.Context, question string, history entity.History) (string, error) {
	if len(history) == 0 {
		return question, nil
	}
	ctx = logger.WithStage(ctx, "rewrite")

	messages := make([]llms.MessageContent, 0, 2*len(history)+2)
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, uc.prompts.Contextualize))
	messages = appendHistory(messages, history)
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, question))

	rewritten, err := uc.llmConnector.Generate(ctx, messages)
	if err != nil {
		return "", err
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		ctxzap.Warn(ctx, "empty rewrite, using the original question")
		return question, nil
	}

	ctxzap.Debug(ctx, "question rewritten", zap.String("standalone_question", rewritten))
	return rewritten, nil
}

// Retrieve returns the RetrievalK chunks most similar to the question,
// most similar first.
func (uc *ChatUsecase) Retrieve(ctx context.Context, question string) ([]entity.ScoredChunk, error) {
	ctx = logger.WithStage(ctx, "retrieve")

	vector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	chunks, err := uc.index.Search(ctx, vector, RetrievalK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	if len(chunks) > RetrievalK {
		chunks = chunks[:RetrievalK]
	}

	ctxzap.Debug(ctx, "context retrieved", zap.Int("chunk_count", len(chunks)))
	return chunks, nil
}

// Synthesize asks the LLM to answer from the retrieved chunks. The answer
// is returned as the LLM wrote it.
func (uc *ChatUsecase) Synthesize(
	ctx context.Context,
	question string,
	chunks []entity.ScoredChunk,
	history entity.History,
) (string, error) {
	ctx = logger.WithStage(ctx, "synthesize")
	system := strings.Replace(uc.prompts.System, config.ContextPlaceholder, joinChunks(chunks), 1)

	messages := make([]llms.MessageContent, 0, 2*len(history)+2)
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, system))
	messages = appendHistory(messages, history)
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, question))

	return uc.llmConnector.Generate(ctx, messages)
}

func appendHistory(messages []llms.MessageContent, history entity.History) []llms.MessageContent {
	for _, turn := range history {
		messages = append(messages,
			llms.TextParts(schema.ChatMessageTypeHuman, turn.Question),
			llms.TextParts(schema.ChatMessageTypeAI, turn.Answer),
		)
	}
	return messages
}

func joinChunks(chunks []entity.ScoredChunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n\n")
}
