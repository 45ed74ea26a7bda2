package votes

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"Agora/internal/core/pagination"
	"Agora/internal/core/statements"
	"Agora/internal/logging"
)

const (
	// DefaultSource is used when a vote arrives without a channel
	DefaultSource = "swipe"

	defaultMaxRetries  = 2 // three attempts in total
	defaultBaseBackoff = 25 * time.Millisecond
)

var sourcePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

type voteService struct {
	repo       Repository
	cache      CounterCache
	observer   Observer
	cursors    *pagination.Codec
	logger     *logging.Logger
	maxRetries uint64
	backoff    time.Duration
}

// Option customizes the vote service
type Option func(*voteService)

// WithRetryPolicy sets how many times a transient failure is retried and the initial backoff
func WithRetryPolicy(maxRetries uint64, base time.Duration) Option {
	return func(s *voteService) {
		s.maxRetries = maxRetries
		s.backoff = base
	}
}

// WithObserver reports outcomes to o (e.g. Prometheus metrics)
func WithObserver(o Observer) Option {
	return func(s *voteService) {
		s.observer = o
	}
}

// WithCounterCache invalidates c after every committed counter change
func WithCounterCache(c CounterCache) Option {
	return func(s *voteService) {
		s.cache = c
	}
}

// NewService creates a new vote service instance
func NewService(repo Repository, cursors *pagination.Codec, logger *logging.Logger, opts ...Option) Service {
	s := &voteService{
		repo:       repo,
		cursors:    cursors,
		logger:     logging.OrNop(logger).With("component", "votes"),
		maxRetries: defaultMaxRetries,
		backoff:    defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordVote validates the request and applies it through the repository's atomic upsert.
// Conflicts and transient store failures are retried a bounded number of times; when
// retries run out nothing has been committed and ErrServerError is returned.
func (s *voteService) RecordVote(ctx context.Context, req RecordVoteRequest) (*RecordVoteResponse, error) {
	vote, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var result *UpsertResult

	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := s.repo.UpsertVote(ctx, vote)
		if err == nil {
			result = res
			return nil
		}
		if reason, ok := retryReason(err); ok {
			s.logger.Debug("retrying vote upsert",
				"reason", reason,
				"statement", vote.StatementID,
				"error", err)
			s.observeRetry(reason)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, s.classifyFailure(err, vote)
	}

	if result.Transition != TransitionUnchanged && s.cache != nil {
		// The commit already happened; a stale cache entry only delays fresh reads by one TTL.
		if cerr := s.cache.Invalidate(ctx, vote.StatementID); cerr != nil {
			s.logger.Warn("failed to invalidate stats cache",
				"statement", vote.StatementID,
				"error", cerr)
		}
	}

	if s.observer != nil {
		s.observer.ObserveVote(result.Transition, time.Since(start))
	}

	s.logger.Debug("vote recorded",
		"statement", vote.StatementID,
		"decision", result.Vote.Decision,
		"previous", result.Previous,
		"transition", result.Transition)

	return &RecordVoteResponse{
		StatementID: result.Vote.StatementID,
		Decision:    result.Vote.Decision,
		Previous:    result.Previous,
		Transition:  result.Transition,
		Stats:       result.Stats,
	}, nil
}

// GetVote retrieves the user's vote on a statement
func (s *voteService) GetVote(ctx context.Context, userID string, statementID uuid.UUID) (*Vote, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if statementID == uuid.Nil {
		return nil, ErrInvalidStatementID
	}
	return s.repo.GetByUserAndStatement(ctx, userID, statementID)
}

// ListVotes pages through the user's vote history, newest first
func (s *voteService) ListVotes(ctx context.Context, req ListVotesRequest) (*ListVotesResponse, error) {
	if req.UserID == "" {
		return nil, ErrUnauthenticated
	}
	limit := pagination.ClampLimit(req.Limit)

	var after *pagination.Cursor
	if req.Cursor != nil && *req.Cursor != "" {
		cur, err := s.cursors.Decode(*req.Cursor)
		if err != nil {
			s.logger.Debug("ignoring invalid history cursor", "error", err)
		} else {
			after = &cur
		}
	}

	list, err := s.repo.ListByUser(ctx, req.UserID, after, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}

	resp := &ListVotesResponse{Votes: list}
	if len(list) > limit {
		resp.Votes = list[:limit]
		last := resp.Votes[len(resp.Votes)-1]
		next := s.cursors.Encode(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		resp.Cursor = &next
	}
	if resp.Votes == nil {
		resp.Votes = []*Vote{}
	}
	return resp, nil
}

func (s *voteService) validateRequest(req RecordVoteRequest) (*Vote, error) {
	if req.UserID == "" {
		return nil, ErrUnauthenticated
	}

	statementID, err := uuid.Parse(req.StatementID)
	if err != nil || statementID == uuid.Nil {
		return nil, ErrInvalidStatementID
	}

	decision, err := ParseDecision(req.Decision)
	if err != nil {
		return nil, err
	}

	source := req.Source
	if source == "" {
		source = DefaultSource
	}
	if !sourcePattern.MatchString(source) {
		return nil, ErrInvalidSource
	}

	return &Vote{
		StatementID: statementID,
		UserID:      req.UserID,
		Decision:    decision,
		Source:      source,
	}, nil
}

func (s *voteService) classifyFailure(err error, vote *Vote) error {
	switch {
	case errors.Is(err, statements.ErrStatementNotFound):
		s.observeFailure("not_found")
		return statements.ErrStatementNotFound
	case IsInvalidInput(err):
		s.observeFailure("invalid")
		return err
	}

	reason := "store"
	if _, ok := retryReason(err); ok {
		reason = "retries_exhausted"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		reason = "canceled"
	}
	s.observeFailure(reason)
	s.logger.Error("failed to record vote",
		"statement", vote.StatementID,
		"decision", vote.Decision,
		"reason", reason,
		"error", err)
	return fmt.Errorf("%w: %w", ErrServerError, err)
}

func (s *voteService) observeRetry(reason string) {
	if s.observer != nil {
		s.observer.ObserveRetry(reason)
	}
}

func (s *voteService) observeFailure(reason string) {
	if s.observer != nil {
		s.observer.ObserveFailure(reason)
	}
}

// retryReason reports whether err is worth another attempt, and why
func retryReason(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrConflict):
		return "conflict", true
	case errors.Is(err, ErrTransient):
		return "transient", true
	}
	return "", false
}
