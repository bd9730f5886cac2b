package chat

import (
	"context"

	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/tmc/langchaingo/llms"
)

type LLMConnector interface {
	Generate(ctx context.Context, messages []llms.MessageContent) (string, error)
}

type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type VectorIndex interface {
	Search(ctx context.Context, query []float32, k int) ([]entity.ScoredChunk, error)
}
