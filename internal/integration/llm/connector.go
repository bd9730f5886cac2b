package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/futig/medical-chatbot/internal/config"
	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/futig/medical-chatbot/internal/integration/common"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const providerName = "llm"

// Connector talks to Groq through its OpenAI-compatible chat API.
type Connector struct {
	config config.LLMConfig
	model  llms.Model
	logger *zap.Logger
}

func NewConnector(cfg config.LLMConfig, logger *zap.Logger) (*Connector, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: GROQ_API_KEY", entity.ErrMissingCredentials)
	}

	model, err := openai.New(
		openai.WithBaseURL(cfg.Url),
		openai.WithToken(cfg.Token),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(common.NewHTTPClient(cfg.HTTPClientConfig)),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	return &Connector{
		config: cfg,
		model:  model,
		logger: logger,
	}, nil
}

// Generate sends one chat completion request and returns the first choice.
// The call is bounded by the configured request timeout.
func (c *Connector) Generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	ctxzap.Debug(ctx, "calling llm",
		zap.String("model", c.config.Model),
		zap.Int("message_count", len(messages)),
	)

	resp, err := c.model.GenerateContent(ctx, messages,
		llms.WithTemperature(c.config.Temperature),
		llms.WithMaxTokens(c.config.MaxTokens),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return "", common.ProviderError(providerName, "generate", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", common.ProviderError(providerName, "generate",
			fmt.Errorf("%w: no choices returned", entity.ErrMalformedResponse))
	}

	content := resp.Choices[0].Content
	ctxzap.Debug(ctx, "llm responded", zap.Int("result_length", len(content)))

	return content, nil
}
