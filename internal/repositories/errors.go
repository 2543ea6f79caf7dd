package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write was refused by a uniqueness or check constraint.
	ErrConflict = errors.New("record conflict")
)

// constraintError maps integrity violations onto the store sentinels. It
// returns nil when err is not a constraint failure.
func constraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.Code {
	case "23505", "23514": // unique_violation, check_violation
		return ErrConflict
	case "23503": // foreign_key_violation: an endpoint user is missing
		return ErrNotFound
	default:
		return nil
	}
}
