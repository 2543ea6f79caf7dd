package friendships

import (
	"errors"
	"fmt"

	"github.com/socialapp/backend/internal/repositories"
)

var (
	// ErrNotFound reports a missing user or edge, or an edge the caller does not own.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a request that is incompatible with the current edge state.
	ErrConflict = errors.New("conflict")
)

// Outcome classifies an operation result for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

// translate maps store sentinels onto service sentinels and wraps anything else.
func translate(err error, action string) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, action)
	case errors.Is(err, repositories.ErrConflict):
		return fmt.Errorf("%w: %s", ErrConflict, action)
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}
