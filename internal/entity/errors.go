package entity

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Input errors
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrQuestionTooLong = errors.New("question is too long")
	ErrMissingField    = errors.New("required field is missing")

	// Configuration errors
	ErrIndexNotFound      = errors.New("vector index not found")
	ErrMissingCredentials = errors.New("missing credentials")

	// Provider errors
	ErrProviderTimeout     = errors.New("provider timeout")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrMalformedResponse   = errors.New("malformed provider response")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
)

// ProviderError describes a failed call to an external provider
// (embedding service, vector index or LLM).
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match provider errors against the timeout and
// unavailable sentinels.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrProviderTimeout:
		return e.Timeout
	case ErrProviderUnavailable:
		return !e.Timeout
	}
	return false
}

// IsRetryable reports whether a provider error is worth another attempt:
// network failures, timeouts, rate limiting and 5xx responses.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	if pe.Timeout || pe.StatusCode == 0 {
		return !errors.Is(pe.Err, ErrMalformedResponse) && !errors.Is(pe.Err, ErrDimensionMismatch)
	}
	return pe.StatusCode == 429 || pe.StatusCode >= 500
}
