package domain

import (
	"errors"
	"fmt"
)

var (
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrStorage           = errors.New("storage failure")
	ErrTimeout           = errors.New("analysis timed out")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")
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
