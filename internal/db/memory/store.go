// Package memory is a process-local implementation of every repository interface.
// It backs unit tests and local runs without Postgres, and follows the same
// one-vote-per-user and counter rules as the SQL store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"Agora/internal/core/pagination"
	"Agora/internal/core/statements"
	"Agora/internal/core/stats"
	"Agora/internal/core/swipes"
	"Agora/internal/core/votes"
)

type voteKey struct {
	statementID uuid.UUID
	userID      string
}

// Store keeps statements and votes in maps guarded by a single mutex, so each upsert
// is atomic with its counter update.
type Store struct {
	clock      clockwork.Clock
	statements map[uuid.UUID]*statements.Statement
	votes      map[voteKey]*votes.Vote
	upsertErrs []error
	mu         sync.Mutex
}

var (
	_ statements.Repository = (*Store)(nil)
	_ votes.Repository      = (*Store)(nil)
	_ swipes.Repository     = (*Store)(nil)
	_ stats.Repository      = (*Store)(nil)
)

// NewStore creates an empty store. A nil clock uses the real clock.
func NewStore(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:      clock,
		statements: make(map[uuid.UUID]*statements.Statement),
		votes:      make(map[voteKey]*votes.Vote),
	}
}

// InjectUpsertErrors makes the next len(errs) UpsertVote calls fail with errs in order,
// without touching any state
func (s *Store) InjectUpsertErrors(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertErrs = append(s.upsertErrs, errs...)
}

// SetCounters overwrites a statement's counters, simulating drift
func (s *Store) SetCounters(id uuid.UUID, c statements.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statements[id]
	if !ok {
		return statements.ErrStatementNotFound
	}
	st.Stats = c
	return nil
}

// SetStatus changes a statement's editorial status
func (s *Store) SetStatus(id uuid.UUID, status statements.Status) error {
	if !status.Valid() {
		return statements.ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statements[id]
	if !ok {
		return statements.ErrStatementNotFound
	}
	st.Status = status
	return nil
}

// CountVotes returns the number of stored votes for a statement
func (s *Store) CountVotes(statementID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.votes {
		if k.statementID == statementID {
			n++
		}
	}
	return n
}

// GetByID returns a copy of the statement
func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*statements.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statements[id]
	if !ok {
		return nil, statements.ErrStatementNotFound
	}
	cp := *st
	return &cp, nil
}

// Create inserts a statement with zeroed counters. Missing ID, status and timestamp are filled in.
func (s *Store) Create(_ context.Context, st *statements.Statement) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	if st.Status == "" {
		st.Status = statements.StatusActive
	}
	if !st.Status.Valid() {
		return statements.ErrInvalidStatus
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.clock.Now().UTC()
	}
	st.Stats = statements.Stats{}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.statements[st.ID] = &cp
	return nil
}

// ListIDs pages through statement IDs in ascending order
func (s *Store) ListIDs(_ context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.statements))
	for id := range s.statements {
		if after == uuid.Nil || strings.Compare(id.String(), after.String()) > 0 {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// UpsertVote records the vote and applies the counter delta in one critical section
func (s *Store) UpsertVote(ctx context.Context, v *votes.Vote) (*votes.UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.upsertErrs) > 0 {
		err := s.upsertErrs[0]
		s.upsertErrs = s.upsertErrs[1:]
		return nil, err
	}

	st, ok := s.statements[v.StatementID]
	if !ok || !st.IsActive() {
		return nil, statements.ErrStatementNotFound
	}

	now := s.clock.Now().UTC()
	key := voteKey{statementID: v.StatementID, userID: v.UserID}
	existing, found := s.votes[key]

	var prev votes.Decision
	if found {
		prev = existing.Decision
	}
	transition := votes.TransitionFor(prev, v.Decision)

	switch transition {
	case votes.TransitionCreated:
		existing = &votes.Vote{
			ID:          uuid.New(),
			StatementID: v.StatementID,
			UserID:      v.UserID,
			Decision:    v.Decision,
			Source:      v.Source,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.votes[key] = existing
	case votes.TransitionChanged:
		existing.Decision = v.Decision
		existing.Source = v.Source
		existing.UpdatedAt = now
	}
	st.Stats = st.Stats.Add(votes.Delta(prev, v.Decision))

	cp := *existing
	return &votes.UpsertResult{
		Vote:       &cp,
		Previous:   prev,
		Transition: transition,
		Stats:      st.Stats,
	}, nil
}

// GetByUserAndStatement returns a copy of the user's vote
func (s *Store) GetByUserAndStatement(_ context.Context, userID string, statementID uuid.UUID) (*votes.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[voteKey{statementID: statementID, userID: userID}]
	if !ok {
		return nil, votes.ErrVoteNotFound
	}
	cp := *v
	return &cp, nil
}

// ListByUser returns the user's votes newest first, strictly after the cursor
func (s *Store) ListByUser(_ context.Context, userID string, after *pagination.Cursor, limit int) ([]*votes.Vote, error) {
	s.mu.Lock()
	var out []*votes.Vote
	for k, v := range s.votes {
		if k.userID != userID {
			continue
		}
		if after != nil && !after.Before(v.CreatedAt, v.ID) {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListFeed returns active statements the user hasn't voted on, newest first
func (s *Store) ListFeed(_ context.Context, q swipes.FeedQuery) ([]*statements.Statement, error) {
	s.mu.Lock()
	var out []*statements.Statement
	for id, st := range s.statements {
		if !st.IsActive() {
			continue
		}
		if _, voted := s.votes[voteKey{statementID: id, userID: q.UserID}]; voted {
			continue
		}
		if q.Filter.Topic != "" && st.Topic != q.Filter.Topic {
			continue
		}
		if q.Filter.Region != "" && st.Region != q.Filter.Region {
			continue
		}
		if q.After != nil && !q.After.Before(st.CreatedAt, st.ID) {
			continue
		}
		cp := *st
		out = append(out, &cp)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// CountVotesByBucket buckets votes by creation time, clamping outliers to the edge buckets
func (s *Store) CountVotesByBucket(_ context.Context, statementID uuid.UUID, start, end time.Time, buckets int) ([]stats.BucketCount, error) {
	if buckets < 1 {
		return nil, stats.ErrInvalidBucketCount
	}
	span := end.Sub(start)

	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[int]*stats.BucketCount)
	for k, v := range s.votes {
		if k.statementID != statementID {
			continue
		}
		b := 1
		if span > 0 {
			b = int(float64(v.CreatedAt.Sub(start))/float64(span)*float64(buckets)) + 1
		}
		b = min(max(b, 1), buckets)

		c, ok := counts[b]
		if !ok {
			c = &stats.BucketCount{Bucket: b}
			counts[b] = c
		}
		switch v.Decision {
		case votes.DecisionAgree:
			c.Agree++
		case votes.DecisionNeutral:
			c.Neutral++
		case votes.DecisionDisagree:
			c.Disagree++
		}
	}

	out := make([]stats.BucketCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket < out[j].Bucket })
	return out, nil
}

// ReconcileCounters recomputes a statement's counters from its votes
func (s *Store) ReconcileCounters(_ context.Context, statementID uuid.UUID) (statements.Stats, statements.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statements[statementID]
	if !ok {
		return statements.Stats{}, statements.Stats{}, statements.ErrStatementNotFound
	}

	var recomputed statements.Stats
	for k, v := range s.votes {
		if k.statementID == statementID {
			recomputed = recomputed.Add(votes.Delta("", v.Decision))
		}
	}

	before := st.Stats
	st.Stats = recomputed
	return before, recomputed, nil
}

func newerFirst(ta time.Time, ida uuid.UUID, tb time.Time, idb uuid.UUID) bool {
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return ida.String() > idb.String()
}
