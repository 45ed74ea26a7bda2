package postgres

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"Agora/internal/core/votes"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	classConnectionException = "08"
)

// classify maps driver errors onto the vote domain's retry categories
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%s: %w: %w", op, votes.ErrTransient, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == codeUniqueViolation:
			return fmt.Errorf("%s: %w: %w", op, votes.ErrConflict, err)
		case pqErr.Code == codeSerializationFailure,
			pqErr.Code == codeDeadlockDetected,
			pqErr.Code.Class() == classConnectionException:
			return fmt.Errorf("%s: %w: %w", op, votes.ErrTransient, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
