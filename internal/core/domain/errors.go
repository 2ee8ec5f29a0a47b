package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrTooLarge          = errors.New("text exceeds size limit")
	ErrTooManyChunks     = errors.New("chunk count limit exceeded")
	ErrDimensionMismatch = errors.New("embedding dimensionality mismatch")
	ErrDocumentNotFound  = errors.New("document not found")

	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrRateLimited        = errors.New("rate limited")
	ErrAuth               = errors.New("authentication failed")
	ErrProtocol           = errors.New("malformed gateway response")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
