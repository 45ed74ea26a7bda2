package votes

import "errors"

var (
	// ErrUnauthenticated indicates no user identity was supplied
	ErrUnauthenticated = errors.New("authentication required")

	// ErrInvalidDecision indicates the decision is not agree, neutral or disagree
	ErrInvalidDecision = errors.New("invalid decision: must be 'agree', 'neutral' or 'disagree'")

	// ErrInvalidStatementID indicates the statement ID is missing or not a UUID
	ErrInvalidStatementID = errors.New("invalid statement id")

	// ErrInvalidSource indicates a malformed source channel
	ErrInvalidSource = errors.New("invalid source")

	// ErrVoteNotFound indicates the user has not voted on the statement
	ErrVoteNotFound = errors.New("vote not found")

	// ErrConflict indicates a concurrent write on the same (statement, user) won the race.
	// Repositories return it so the service can retry; callers never see it.
	ErrConflict = errors.New("concurrent vote conflict")

	// ErrTransient marks store failures that are safe to retry (serialization failures,
	// deadlocks, dropped connections)
	ErrTransient = errors.New("transient store failure")

	// ErrServerError indicates the vote could not be recorded; nothing was committed
	ErrServerError = errors.New("failed to record vote")
)

// IsInvalidInput reports whether err is a request validation failure
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidDecision) ||
		errors.Is(err, ErrInvalidStatementID) ||
		errors.Is(err, ErrInvalidSource)
}
