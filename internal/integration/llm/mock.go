package llm

import (
	"context"
	"strings"

	"github.com/futig/medical-chatbot/internal/config"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// MockConnector answers without a provider. A contextualize request echoes
// the question back; an answer request returns the first retrieved line.
type MockConnector struct {
	prompts config.Prompts
	logger  *zap.Logger
}

func NewMockConnector(prompts config.Prompts, logger *zap.Logger) *MockConnector {
	return &MockConnector{
		prompts: prompts,
		logger:  logger,
	}
}

func (m *MockConnector) Generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	system, question := splitMessages(messages)

	if system == m.prompts.Contextualize {
		ctxzap.Info(ctx, "[MOCK] rewriting question", zap.String("question", question))
		return question, nil
	}

	contextText := m.extractContext(system)
	answer := "I don't know."
	for _, line := range strings.Split(contextText, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			answer = line
			break
		}
	}

	ctxzap.Info(ctx, "[MOCK] answering question", zap.String("question", question))
	return answer, nil
}

func (m *MockConnector) extractContext(system string) string {
	prefix, suffix, found := strings.Cut(m.prompts.System, config.ContextPlaceholder)
	if !found {
		return ""
	}
	system = strings.TrimPrefix(system, prefix)
	return strings.TrimSuffix(system, suffix)
}

// splitMessages returns the system text and the last human text.
func splitMessages(messages []llms.MessageContent) (string, string) {
	var system, human string
	for _, msg := range messages {
		text := textOf(msg)
		switch msg.Role {
		case schema.ChatMessageTypeSystem:
			system = text
		case schema.ChatMessageTypeHuman:
			human = text
		}
	}
	return system, human
}

func textOf(msg llms.MessageContent) string {
	var sb strings.Builder
	for _, part := range msg.Parts {
		if tc, ok := part.(llms.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
