package votes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"Agora/internal/core/pagination"
	"Agora/internal/core/statements"
)

// Mock repositories for testing
type mockVoteRepository struct {
	mock.Mock
}

func (m *mockVoteRepository) UpsertVote(ctx context.Context, vote *Vote) (*UpsertResult, error) {
	args := m.Called(ctx, vote)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*UpsertResult), args.Error(1)
}

func (m *mockVoteRepository) GetByUserAndStatement(ctx context.Context, userID string, statementID uuid.UUID) (*Vote, error) {
	args := m.Called(ctx, userID, statementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Vote), args.Error(1)
}

func (m *mockVoteRepository) ListByUser(ctx context.Context, userID string, after *pagination.Cursor, limit int) ([]*Vote, error) {
	args := m.Called(ctx, userID, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Vote), args.Error(1)
}

type mockCounterCache struct {
	mock.Mock
}

func (m *mockCounterCache) Invalidate(ctx context.Context, statementID uuid.UUID) error {
	args := m.Called(ctx, statementID)
	return args.Error(0)
}

type recordingObserver struct {
	votes    []Transition
	retries  []string
	failures []string
}

func (o *recordingObserver) ObserveVote(t Transition, _ time.Duration) { o.votes = append(o.votes, t) }
func (o *recordingObserver) ObserveRetry(reason string) { o.retries = append(o.retries, reason) }
func (o *recordingObserver) ObserveFailure(reason string) { o.failures = append(o.failures, reason) }

func newTestService(repo Repository, opts ...Option) Service {
	opts = append([]Option{WithRetryPolicy(2, time.Millisecond)}, opts...)
	return NewService(repo, pagination.NewCodec("test-secret"), nil, opts...)
}

func createdResult(statementID uuid.UUID, d Decision) *UpsertResult {
	return &UpsertResult{
		Vote:       &Vote{ID: uuid.New(), StatementID: statementID, UserID: "user-1", Decision: d, Source: DefaultSource},
		Transition: TransitionCreated,
		Stats:      statements.Stats{}.Add(Delta("", d)),
	}
}

// TestVoteService_ValidateInput tests input validation
func TestVoteService_ValidateInput(t *testing.T) {
	repo := new(mockVoteRepository)
	service := newTestService(repo)
	ctx := context.Background()
	statementID := uuid.NewString()

	tests := []struct {
		name        string
		req         RecordVoteRequest
		expectedErr error
	}{
		{
			name:        "missing user",
			req:         RecordVoteRequest{StatementID: statementID, Decision: "agree"},
			expectedErr: ErrUnauthenticated,
		},
		{
			name:        "missing statement",
			req:         RecordVoteRequest{UserID: "user-1", Decision: "agree"},
			expectedErr: ErrInvalidStatementID,
		},
		{
			name:        "malformed statement id",
			req:         RecordVoteRequest{UserID: "user-1", StatementID: "not-a-uuid", Decision: "agree"},
			expectedErr: ErrInvalidStatementID,
		},
		{
			name:        "nil statement id",
			req:         RecordVoteRequest{UserID: "user-1", StatementID: uuid.Nil.String(), Decision: "agree"},
			expectedErr: ErrInvalidStatementID,
		},
		{
			name:        "unknown decision",
			req:         RecordVoteRequest{UserID: "user-1", StatementID: statementID, Decision: "maybe"},
			expectedErr: ErrInvalidDecision,
		},
		{
			name:        "decision is case sensitive",
			req:         RecordVoteRequest{UserID: "user-1", StatementID: statementID, Decision: "Agree"},
			expectedErr: ErrInvalidDecision,
		},
		{
			name:        "malformed source",
			req:         RecordVoteRequest{UserID: "user-1", StatementID: statementID, Decision: "agree", Source: "Bad Source!"},
			expectedErr: ErrInvalidSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.RecordVote(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}

	repo.AssertNotCalled(t, "UpsertVote", mock.Anything, mock.Anything)
}

func TestVoteService_RecordVote_DefaultsSource(t *testing.T) {
	repo := new(mockVoteRepository)
	statementID := uuid.New()

	repo.On("UpsertVote", mock.Anything, mock.MatchedBy(func(v *Vote) bool {
		return v.Source == DefaultSource && v.UserID == "user-1" && v.StatementID == statementID
	})).Return(createdResult(statementID, DecisionAgree), nil).Once()

	resp, err := newTestService(repo).RecordVote(context.Background(), RecordVoteRequest{
		UserID:      "user-1",
		StatementID: statementID.String(),
		Decision:    "agree",
	})
	require.NoError(t, err)
	assert.Equal(t, TransitionCreated, resp.Transition)
	assert.Equal(t, int64(1), resp.Stats.VotesAgree)
	repo.AssertExpectations(t)
}

func TestVoteService_RecordVote_RetriesConflicts(t *testing.T) {
	repo := new(mockVoteRepository)
	observer := &recordingObserver{}
	statementID := uuid.New()

	repo.On("UpsertVote", mock.Anything, mock.Anything).Return(nil, ErrConflict).Once()
	repo.On("UpsertVote", mock.Anything, mock.Anything).Return(nil, ErrTransient).Once()
	repo.On("UpsertVote", mock.Anything, mock.Anything).Return(createdResult(statementID, DecisionNeutral), nil).Once()

	resp, err := newTestService(repo, WithObserver(observer)).RecordVote(context.Background(), RecordVoteRequest{
		UserID:      "user-1",
		StatementID: statementID.String(),
		Decision:    "neutral",
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionNeutral, resp.Decision)
	assert.Equal(t, []string{"conflict", "transient"}, observer.retries)
	assert.Equal(t, []Transition{TransitionCreated}, observer.votes)
	repo.AssertNumberOfCalls(t, "UpsertVote", 3)
}

func TestVoteService_RecordVote_RetriesExhausted(t *testing.T) {
	repo := new(mockVoteRepository)
	observer := &recordingObserver{}

	repo.On("UpsertVote", mock.Anything, mock.Anything).Return(nil, ErrTransient)

	_, err := newTestService(repo, WithObserver(observer)).RecordVote(context.Background(), RecordVoteRequest{
		UserID:      "user-1",
		StatementID: uuid.NewString(),
		Decision:    "disagree",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerError)
	repo.AssertNumberOfCalls(t, "UpsertVote", 3)
	assert.Equal(t, []string{"retries_exhausted"}, observer.failures)
	assert.Empty(t, observer.votes)
}

func TestVoteService_RecordVote_StatementNotFound(t *testing.T) {
	repo := new(mockVoteRepository)
	repo.On("UpsertVote", mock.Anything, mock.Anything).Return(nil, statements.ErrStatementNotFound).Once()

	_, err := newTestService(repo).RecordVote(context.Background(), RecordVoteRequest{
		UserID:      "user-1",
		StatementID: uuid.NewString(),
		Decision:    "agree",
	})
	assert.ErrorIs(t, err, statements.ErrStatementNotFound)
	assert.NotErrorIs(t, err, ErrServerError)
	repo.AssertNumberOfCalls(t, "UpsertVote", 1)
}

func TestVoteService_RecordVote_StoreFailureNotRetried(t *testing.T) {
	repo := new(mockVoteRepository)
	repo.On("UpsertVote", mock.Anything, mock.Anything).Return(nil, errors.New("disk on fire")).Once()

	_, err := newTestService(repo).RecordVote(context.Background(), RecordVoteRequest{
		UserID:      "user-1",
		StatementID: uuid.NewString(),
		Decision:    "agree",
	})
	assert.ErrorIs(t, err, ErrServerError)
	repo.AssertNumberOfCalls(t, "UpsertVote", 1)
}

func TestVoteService_RecordVote_InvalidatesCacheOnChange(t *testing.T) {
	statementID := uuid.New()

	tests := []struct {
		name       string
		transition Transition
		invalidate bool
	}{
		{"created", TransitionCreated, true},
		{"changed", TransitionChanged, true},
		{"unchanged", TransitionUnchanged, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockVoteRepository)
			cache := new(mockCounterCache)

			result := createdResult(statementID, DecisionAgree)
			result.Transition = tt.transition
			repo.On("UpsertVote", mock.Anything, mock.Anything).Return(result, nil).Once()
			if tt.invalidate {
				cache.On("Invalidate", mock.Anything, statementID).Return(errors.New("redis down")).Once()
			}

			_, err := newTestService(repo, WithCounterCache(cache)).RecordVote(context.Background(), RecordVoteRequest{
				UserID:      "user-1",
				StatementID: statementID.String(),
				Decision:    "agree",
			})
			// Cache failures never fail a committed vote
			require.NoError(t, err)
			if tt.invalidate {
				cache.AssertExpectations(t)
			} else {
				cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestVoteService_RecordVote_ContextCanceled(t *testing.T) {
	repo := new(mockVoteRepository)
	repo.On("UpsertVote", mock.Anything, mock.Anything).Return(nil, context.Canceled).Once()

	_, err := newTestService(repo).RecordVote(context.Background(), RecordVoteRequest{
		UserID:      "user-1",
		StatementID: uuid.NewString(),
		Decision:    "agree",
	})
	assert.ErrorIs(t, err, ErrServerError)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVoteService_GetVote(t *testing.T) {
	repo := new(mockVoteRepository)
	service := newTestService(repo)
	ctx := context.Background()
	statementID := uuid.New()

	_, err := service.GetVote(ctx, "", statementID)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = service.GetVote(ctx, "user-1", uuid.Nil)
	assert.ErrorIs(t, err, ErrInvalidStatementID)

	repo.On("GetByUserAndStatement", ctx, "user-1", statementID).Return(nil, ErrVoteNotFound).Once()
	_, err = service.GetVote(ctx, "user-1", statementID)
	assert.ErrorIs(t, err, ErrVoteNotFound)
}

func TestVoteService_ListVotes_Pagination(t *testing.T) {
	repo := new(mockVoteRepository)
	service := newTestService(repo)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	page := make([]*Vote, 3)
	for i := range page {
		page[i] = &Vote{ID: uuid.New(), StatementID: uuid.New(), Decision: DecisionAgree, CreatedAt: base.Add(-time.Duration(i) * time.Minute)}
	}

	repo.On("ListByUser", ctx, "user-1", (*pagination.Cursor)(nil), 3).Return(page, nil).Once()

	resp, err := service.ListVotes(ctx, ListVotesRequest{UserID: "user-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Votes, 2)
	require.NotNil(t, resp.Cursor)

	cur, err := pagination.NewCodec("test-secret").Decode(*resp.Cursor)
	require.NoError(t, err)
	assert.Equal(t, page[1].ID, cur.ID)
	assert.True(t, page[1].CreatedAt.Equal(cur.CreatedAt))
}

func TestVoteService_ListVotes_EmptyIsNotNil(t *testing.T) {
	repo := new(mockVoteRepository)
	service := newTestService(repo)
	ctx := context.Background()

	garbage := "garbage"
	repo.On("ListByUser", ctx, "user-1", (*pagination.Cursor)(nil), pagination.DefaultLimit+1).Return(nil, nil).Once()

	resp, err := service.ListVotes(ctx, ListVotesRequest{UserID: "user-1", Cursor: &garbage})
	require.NoError(t, err)
	assert.NotNil(t, resp.Votes)
	assert.Empty(t, resp.Votes)
	assert.Nil(t, resp.Cursor)
}
