package common

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/futig/medical-chatbot/internal/entity"
	pkgHTTP "github.com/futig/medical-chatbot/pkg/http"
)

// ProviderError wraps a failed outbound call into an entity.ProviderError,
// classifying deadline expiry as a timeout.
func ProviderError(provider, op string, err error) error {
	if err == nil {
		return nil
	}

	var pe *entity.ProviderError
	if errors.As(err, &pe) {
		return err
	}

	var decodeErr *pkgHTTP.DecodeError
	if errors.As(err, &decodeErr) {
		err = fmt.Errorf("%w: %w", entity.ErrMalformedResponse, err)
	}

	perr := &entity.ProviderError{
		Provider: provider,
		Op:       op,
		Timeout:  IsTimeout(err),
		Err:      err,
	}

	var httpErr *pkgHTTP.HTTPError
	if errors.As(err, &httpErr) {
		perr.StatusCode = httpErr.StatusCode
	}

	return perr
}

// IsTimeout reports whether err is a deadline expiry of any kind.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
