package chat

import (
	"context"

	"github.com/futig/medical-chatbot/internal/entity"
)

type ChatUsecase interface {
	Ask(ctx context.Context, sessionID, question string) (*entity.Query, error)
	Reset(ctx context.Context, sessionID string)
}
