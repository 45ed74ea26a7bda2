package votes

import (
	"context"
	"time"

	"github.com/google/uuid"

	"Agora/internal/core/pagination"
	"Agora/internal/core/statements"
)

// Service defines the business logic interface for votes
type Service interface {
	// RecordVote stores the user's decision on a statement.
	// Upsert on (statement, user):
	//   - No vote -> insert, increment total and the decision bucket
	//   - Same decision -> no-op, counters untouched
	//   - Different decision -> update, move one count between buckets
	// The vote row and the counters commit together or not at all.
	RecordVote(ctx context.Context, req RecordVoteRequest) (*RecordVoteResponse, error)

	// GetVote returns the user's current vote on a statement, or ErrVoteNotFound
	GetVote(ctx context.Context, userID string, statementID uuid.UUID) (*Vote, error)

	// ListVotes pages through the user's votes, newest first
	ListVotes(ctx context.Context, req ListVotesRequest) (*ListVotesResponse, error)
}

// Repository defines the data access interface for votes
type Repository interface {
	// UpsertVote applies a vote and its counter adjustment in one atomic unit.
	// Returns statements.ErrStatementNotFound for missing or inactive statements and
	// ErrConflict when a concurrent first vote by the same user committed first.
	UpsertVote(ctx context.Context, vote *Vote) (*UpsertResult, error)

	// GetByUserAndStatement retrieves a user's vote on a statement
	GetByUserAndStatement(ctx context.Context, userID string, statementID uuid.UUID) (*Vote, error)

	// ListByUser retrieves a user's votes ordered by (created_at DESC, id DESC),
	// strictly after the cursor when one is given
	ListByUser(ctx context.Context, userID string, after *pagination.Cursor, limit int) ([]*Vote, error)
}

// CounterCache is invalidated after counters change so reads pick up fresh values
type CounterCache interface {
	Invalidate(ctx context.Context, statementID uuid.UUID) error
}

// Observer receives vote recording outcomes for metrics
type Observer interface {
	ObserveVote(transition Transition, duration time.Duration)
	ObserveRetry(reason string)
	ObserveFailure(reason string)
}

// RecordVoteRequest is the validated input of RecordVote.
// UserID comes from the authenticated session, never from the request body.
type RecordVoteRequest struct {
	UserID      string `json:"-"`
	StatementID string `json:"statementId"`
	Decision    string `json:"decision"`
	Source      string `json:"source,omitempty"`
}

// RecordVoteResponse acknowledges a committed vote
type RecordVoteResponse struct {
	StatementID uuid.UUID        `json:"statementId"`
	Decision    Decision         `json:"decision"`
	Previous    Decision         `json:"previous,omitempty"`
	Transition  Transition       `json:"transition"`
	Stats       statements.Stats `json:"stats"`
}

// ListVotesRequest represents input for the user's vote history
type ListVotesRequest struct {
	Cursor *string `json:"cursor,omitempty"`
	UserID string  `json:"-"`
	Limit  int     `json:"limit"`
}

// ListVotesResponse is a page of the user's vote history
type ListVotesResponse struct {
	Cursor *string `json:"nextCursor,omitempty"`
	Votes  []*Vote `json:"votes"`
}
