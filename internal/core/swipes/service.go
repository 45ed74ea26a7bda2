package swipes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"Agora/internal/core/pagination"
	"Agora/internal/core/statements"
	"Agora/internal/core/votes"
	"Agora/internal/logging"
)

type swipeService struct {
	repo          Repository
	statementRepo statements.Repository
	voteRepo      votes.Repository
	cursors       *pagination.Codec
	logger        *logging.Logger
}

// NewService creates a new swipe feed service
func NewService(
	repo Repository,
	statementRepo statements.Repository,
	voteRepo votes.Repository,
	cursors *pagination.Codec,
	logger *logging.Logger,
) Service {
	return &swipeService{
		repo:          repo,
		statementRepo: statementRepo,
		voteRepo:      voteRepo,
		cursors:       cursors,
		logger:        logging.OrNop(logger).With("component", "swipes"),
	}
}

// GetFeed returns the next page of statements for the user to swipe on
func (s *swipeService) GetFeed(ctx context.Context, req GetFeedRequest) (*FeedResponse, error) {
	if req.UserID == "" {
		return nil, ErrUnauthenticated
	}

	var filter Filter
	if req.Filter != nil {
		filter = *req.Filter
		if err := filter.Validate(); err != nil {
			return nil, err
		}
	}

	limit := pagination.ClampLimit(req.Limit)

	// An undecodable cursor restarts the feed; already-voted statements are excluded anyway.
	var after *pagination.Cursor
	if req.Cursor != nil && *req.Cursor != "" {
		cur, err := s.cursors.Decode(*req.Cursor)
		if err != nil {
			s.logger.Debug("ignoring invalid feed cursor", "error", err)
		} else {
			after = &cur
		}
	}

	items, err := s.repo.ListFeed(ctx, FeedQuery{
		UserID: req.UserID,
		Filter: filter,
		After:  after,
		Limit:  limit + 1, // +1 to check for next page
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	resp := &FeedResponse{Items: make([]*StatementView, 0, min(len(items), limit))}
	for i, st := range items {
		if i == limit {
			break
		}
		resp.Items = append(resp.Items, NewStatementView(st))
	}

	if len(items) > limit {
		last := resp.Items[len(resp.Items)-1]
		next := s.cursors.Encode(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		resp.NextCursor = &next
	}

	return resp, nil
}

// GetEventualities projects the counters for each decision the user could cast, relative to
// the user's current vote
func (s *swipeService) GetEventualities(ctx context.Context, req GetEventualitiesRequest) (*EventualitiesResponse, error) {
	if req.UserID == "" {
		return nil, ErrUnauthenticated
	}

	statementID, err := uuid.Parse(req.StatementID)
	if err != nil || statementID == uuid.Nil {
		return nil, ErrInvalidStatementID
	}

	statement, err := s.statementRepo.GetByID(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if !statement.IsActive() {
		return nil, statements.ErrStatementNotFound
	}

	var current votes.Decision
	existing, err := s.voteRepo.GetByUserAndStatement(ctx, req.UserID, statementID)
	switch {
	case err == nil:
		current = existing.Decision
	case errors.Is(err, votes.ErrVoteNotFound):
	default:
		return nil, fmt.Errorf("failed to get current vote: %w", err)
	}

	resp := &EventualitiesResponse{
		StatementID:   statementID,
		Stats:         statement.Stats,
		Eventualities: make([]Eventuality, 0, len(votes.Decisions)),
	}
	if current != "" {
		resp.Current = &current
	}

	for _, d := range votes.Decisions {
		delta := votes.Delta(current, d)
		resp.Eventualities = append(resp.Eventualities, Eventuality{
			Decision: d,
			Stats:    statement.Stats.Add(delta),
			Delta:    delta,
			Changes:  d != current,
		})
	}

	return resp, nil
}
