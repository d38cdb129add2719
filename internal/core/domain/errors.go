package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrRateLimited      = errors.New("rate limited")
	ErrTemporary        = errors.New("temporary failure")
	ErrNoSources        = errors.New("no sources available")
	ErrNotEnoughData    = errors.New("not enough data")
	ErrEscalationClosed = errors.New("escalation already resolved")
	ErrNotFound         = errors.New("not found")
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
