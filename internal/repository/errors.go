package repository

import (
	"context"
	"errors"

	"github.com/futig/medical-chatbot/internal/entity"
)

// storeError reports a vector store failure the same way remote providers
// are reported, so callers map it to one status.
func storeError(store, op string, err error) error {
	if err == nil {
		return nil
	}
	return &entity.ProviderError{
		Provider: store,
		Op:       op,
		Timeout:  errors.Is(err, context.DeadlineExceeded),
		Err:      err,
	}
}
