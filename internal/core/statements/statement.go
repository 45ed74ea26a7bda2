package statements

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the editorial state of a statement. Only active statements are swipeable.
type Status string

const (
	StatusActive  Status = "active"
	StatusPending Status = "pending"
	StatusFlagged Status = "flagged"
	StatusHidden  Status = "hidden"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusFlagged, StatusHidden:
		return true
	}
	return false
}

// Statement is a single swipeable proposition.
// The counters are owned by the vote recorder; nothing else writes them.
type Statement struct {
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	Topic     string    `json:"topic,omitempty" db:"topic"`
	Region    string    `json:"region,omitempty" db:"region"`
	Status    Status    `json:"status" db:"status"`
	Stats     Stats     `json:"stats"`
	ID        uuid.UUID `json:"id" db:"id"`
}

// IsActive reports whether the statement can be voted on.
func (s *Statement) IsActive() bool {
	return s.Status == StatusActive
}

// Stats holds the aggregate vote counters of a statement.
// The same shape is used for signed deltas when a vote changes buckets.
type Stats struct {
	VotesTotal    int64 `json:"votesTotal"`
	VotesAgree    int64 `json:"votesAgree"`
	VotesNeutral  int64 `json:"votesNeutral"`
	VotesDisagree int64 `json:"votesDisagree"`
}

// Add returns s with every counter shifted by d.
func (s Stats) Add(d Stats) Stats {
	return Stats{
		VotesTotal:    s.VotesTotal + d.VotesTotal,
		VotesAgree:    s.VotesAgree + d.VotesAgree,
		VotesNeutral:  s.VotesNeutral + d.VotesNeutral,
		VotesDisagree: s.VotesDisagree + d.VotesDisagree,
	}
}

// Consistent reports whether the decision buckets sum to the total and nothing is negative.
func (s Stats) Consistent() bool {
	if s.VotesTotal < 0 || s.VotesAgree < 0 || s.VotesNeutral < 0 || s.VotesDisagree < 0 {
		return false
	}
	return s.VotesAgree+s.VotesNeutral+s.VotesDisagree == s.VotesTotal
}

// Repository defines read access to statements.
// Statements are authored elsewhere; Create exists for seeding and tests.
type Repository interface {
	// GetByID returns the statement in any status, or ErrStatementNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*Statement, error)

	// Create inserts a statement with zeroed counters
	Create(ctx context.Context, statement *Statement) error

	// ListIDs pages through statement IDs in ascending order, starting after the given ID
	// (uuid.Nil for the first page)
	ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}
