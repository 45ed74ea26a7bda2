package swipes

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"

	"Agora/internal/core/pagination"
	"Agora/internal/core/statements"
	"Agora/internal/core/votes"
)

// Service builds the per-user swipe feed and vote projections
type Service interface {
	// GetFeed returns the next page of active statements the user hasn't voted on,
	// newest first (created_at DESC, id DESC)
	GetFeed(ctx context.Context, req GetFeedRequest) (*FeedResponse, error)

	// GetEventualities projects the statement's counters for every decision the user could cast
	GetEventualities(ctx context.Context, req GetEventualitiesRequest) (*EventualitiesResponse, error)
}

// Repository defines feed data access
type Repository interface {
	// ListFeed returns up to q.Limit active statements without a vote by q.UserID, ordered by
	// (created_at DESC, id DESC) and strictly after q.After. Must be a single set-based
	// query; exclusion is never checked per item.
	ListFeed(ctx context.Context, q FeedQuery) ([]*statements.Statement, error)
}

// Filter narrows the feed. Empty fields match everything.
type Filter struct {
	Topic  string `json:"topic,omitempty"`
	Region string `json:"region,omitempty"`
}

var filterPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Validate rejects malformed filter values
func (f Filter) Validate() error {
	if f.Topic != "" && !filterPattern.MatchString(f.Topic) {
		return NewFilterError("topic", "topic must be a lowercase slug of at most 64 characters")
	}
	if f.Region != "" && !filterPattern.MatchString(f.Region) {
		return NewFilterError("region", "region must be a lowercase slug of at most 64 characters")
	}
	return nil
}

// FeedQuery is the repository-level feed request
type FeedQuery struct {
	After  *pagination.Cursor
	UserID string
	Filter Filter
	Limit  int
}

// GetFeedRequest represents input for fetching a feed page
type GetFeedRequest struct {
	Cursor *string `json:"cursor,omitempty"`
	Filter *Filter `json:"filter,omitempty"`
	UserID string  `json:"-"` // Extracted from the session, never from the body
	Limit  int     `json:"limit"`
}

// FeedResponse is one page of the swipe feed
type FeedResponse struct {
	NextCursor *string          `json:"nextCursor,omitempty"`
	Items      []*StatementView `json:"items"`
}

// StatementView is a statement as shown on a swipe card, with live results
type StatementView struct {
	CreatedAt time.Time        `json:"createdAt"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Topic     string           `json:"topic,omitempty"`
	Region    string           `json:"region,omitempty"`
	Stats     statements.Stats `json:"stats"`
	ID        uuid.UUID        `json:"id"`
}

// NewStatementView projects a statement for the feed
func NewStatementView(s *statements.Statement) *StatementView {
	return &StatementView{
		ID:        s.ID,
		Title:     s.Title,
		Body:      s.Body,
		Topic:     s.Topic,
		Region:    s.Region,
		CreatedAt: s.CreatedAt,
		Stats:     s.Stats,
	}
}

// GetEventualitiesRequest represents input for a vote projection
type GetEventualitiesRequest struct {
	UserID      string `json:"-"`
	StatementID string `json:"statementId"`
}

// EventualitiesResponse describes what each possible decision would do to the counters
type EventualitiesResponse struct {
	Current       *votes.Decision  `json:"currentDecision,omitempty"`
	Eventualities []Eventuality    `json:"eventualities"`
	Stats         statements.Stats `json:"stats"`
	StatementID   uuid.UUID        `json:"statementId"`
}

// Eventuality is the projected outcome of one hypothetical vote
type Eventuality struct {
	Decision votes.Decision   `json:"decision"`
	Stats    statements.Stats `json:"stats"`
	Delta    statements.Stats `json:"delta"`
	Changes  bool             `json:"changes"`
}

// Errors
var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidStatementID = errors.New("invalid statement id")
)

// FilterError is returned for malformed feed filters
type FilterError struct {
	Field   string
	Message string
}

func (e *FilterError) Error() string {
	return e.Message
}

// NewFilterError creates a new filter validation error
func NewFilterError(field, message string) error {
	return &FilterError{
		Field:   field,
		Message: message,
	}
}

// IsFilterError checks if an error is a filter validation error
func IsFilterError(err error) bool {
	var fe *FilterError
	return errors.As(err, &fe)
}
