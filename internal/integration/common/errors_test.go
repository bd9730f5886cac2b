package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/futig/medical-chatbot/internal/entity"
	pkgHTTP "github.com/futig/medical-chatbot/pkg/http"
)

func TestProviderError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantTimeout bool
		wantStatus  int
		retryable   bool
	}{
		{
			name:        "deadline",
			err:         &pkgHTTP.NetworkError{Err: fmt.Errorf("do: %w", context.DeadlineExceeded)},
			wantTimeout: true,
			retryable:   true,
		},
		{
			name:       "server error",
			err:        &pkgHTTP.HTTPError{StatusCode: 503, Message: "busy"},
			wantStatus: 503,
			retryable:  true,
		},
		{
			name:       "bad request",
			err:        &pkgHTTP.HTTPError{StatusCode: 400, Message: "bad"},
			wantStatus: 400,
		},
		{
			name: "malformed",
			err:  fmt.Errorf("decode: %w", entity.ErrMalformedResponse),
		},
		{
			name: "undecodable body",
			err:  &pkgHTTP.DecodeError{Err: errors.New("invalid character")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ProviderError("test", "call", tt.err)

			if got := errors.Is(err, entity.ErrProviderTimeout); got != tt.wantTimeout {
				t.Errorf("is timeout = %v, want %v", got, tt.wantTimeout)
			}
			if got := errors.Is(err, entity.ErrProviderUnavailable); got == tt.wantTimeout {
				t.Errorf("is unavailable = %v, want %v", got, !tt.wantTimeout)
			}

			var pe *entity.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("error %v is not a ProviderError", err)
			}
			if pe.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", pe.StatusCode, tt.wantStatus)
			}
			if got := entity.IsRetryable(err); got != tt.retryable {
				t.Errorf("retryable = %v, want %v", got, tt.retryable)
			}
		})
	}

	if ProviderError("test", "call", nil) != nil {
		t.Error("nil error must stay nil")
	}
}
