package statements

import "errors"

var (
	// ErrStatementNotFound indicates the statement doesn't exist
	// (or, for write paths, exists but is not active)
	ErrStatementNotFound = errors.New("statement not found")

	// ErrInvalidStatus indicates an unknown statement status
	ErrInvalidStatus = errors.New("invalid statement status")
)
