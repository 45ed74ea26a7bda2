package stats

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"Agora/internal/core/statements"
	"Agora/internal/logging"
)

// sharedReadTimeout bounds a store read that may be serving several callers
const sharedReadTimeout = 5 * time.Second

type statsService struct {
	repo          Repository
	statementRepo statements.Repository
	cache         Cache
	clock         clockwork.Clock
	logger        *logging.Logger
	group         singleflight.Group
	epoch         atomic.Int64 // bumped by every Invalidate in this process
}

// NewService creates a stats service. cache may be nil; clock defaults to the real clock.
func NewService(repo Repository, statementRepo statements.Repository, cache Cache, clock clockwork.Clock, logger *logging.Logger) Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &statsService{
		repo:          repo,
		statementRepo: statementRepo,
		cache:         cache,
		clock:         clock,
		logger:        logging.OrNop(logger).With("component", "stats"),
	}
}

// GetStats reads the statement counters, through the cache when one is configured.
//
// Concurrent misses for the same statement share one store read. The shared read runs
// detached from any single caller, so one cancelled request doesn't fail the others, and
// callers that miss after an invalidation never join a read that started before it.
func (s *statsService) GetStats(ctx context.Context, statementID uuid.UUID) (statements.Stats, error) {
	generation := int64(-1)
	if s.cache != nil {
		lookup, err := s.cache.Get(ctx, statementID)
		switch {
		case err != nil:
			s.logger.Debug("stats cache read failed", "statement", statementID, "error", err)
		case lookup.Hit:
			return lookup.Stats, nil
		default:
			generation = lookup.Generation
		}
	}

	key := statementID.String() + ":" +
		strconv.FormatInt(generation, 10) + ":" +
		strconv.FormatInt(s.epoch.Load(), 10)

	ch := s.group.DoChan(key, func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()

		st, err := s.statementRepo.GetByID(readCtx, statementID)
		if err != nil {
			return statements.Stats{}, err
		}
		if !st.IsActive() {
			return statements.Stats{}, statements.ErrStatementNotFound
		}
		if generation >= 0 {
			if err := s.cache.Set(readCtx, statementID, st.Stats, generation); err != nil {
				s.logger.Debug("stats cache write failed", "statement", statementID, "error", err)
			}
		}
		return st.Stats, nil
	})

	select {
	case <-ctx.Done():
		return statements.Stats{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return statements.Stats{}, res.Err
		}
		return res.Val.(statements.Stats), nil
	}
}

// GetTimeseries buckets the statement's votes into bucketCount equal windows between its
// creation and now
func (s *statsService) GetTimeseries(ctx context.Context, statementID uuid.UUID, bucketCount int) (*Timeseries, error) {
	bucketCount = ClampBuckets(bucketCount)

	st, err := s.statementRepo.GetByID(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if !st.IsActive() {
		return nil, statements.ErrStatementNotFound
	}

	start := st.CreatedAt.UTC()
	end := s.clock.Now().UTC()
	if !end.After(start) {
		// Statement created "now" (or clock skew); keep windows non-empty.
		end = start.Add(time.Duration(bucketCount) * time.Second)
	}

	counts, err := s.repo.CountVotesByBucket(ctx, statementID, start, end, bucketCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes by bucket: %w", err)
	}

	return buildTimeseries(start, end, bucketCount, counts), nil
}

// Reconcile recomputes counters from the vote ledger
func (s *statsService) Reconcile(ctx context.Context, statementID uuid.UUID) (*ReconcileResult, error) {
	before, after, err := s.repo.ReconcileCounters(ctx, statementID)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		StatementID: statementID,
		Before:      before,
		After:       after,
		Drifted:     before != after,
	}
	if result.Drifted {
		s.logger.Warn("statement counters drifted from vote ledger",
			"statement", statementID,
			"before", before,
			"after", after)
		if err := s.Invalidate(ctx, statementID); err != nil {
			s.logger.Warn("failed to invalidate stats cache", "statement", statementID, "error", err)
		}
	}
	return result, nil
}

// Invalidate drops cached counters for the statement
func (s *statsService) Invalidate(ctx context.Context, statementID uuid.UUID) error {
	s.epoch.Add(1)
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, statementID)
}

// buildTimeseries lays out every window (empty ones included) and accumulates running totals
func buildTimeseries(start, end time.Time, n int, counts []BucketCount) *Timeseries {
	width := end.Sub(start) / time.Duration(n)

	byBucket := make(map[int]BucketCount, len(counts))
	for _, c := range counts {
		b := min(max(c.Bucket, 1), n)
		agg := byBucket[b]
		agg.Agree += c.Agree
		agg.Neutral += c.Neutral
		agg.Disagree += c.Disagree
		byBucket[b] = agg
	}

	ts := &Timeseries{Start: start, End: end, Buckets: make([]TimeseriesPoint, n)}
	var running statements.Stats
	for i := 0; i < n; i++ {
		c := byBucket[i+1]
		delta := statements.Stats{
			VotesAgree:    c.Agree,
			VotesNeutral:  c.Neutral,
			VotesDisagree: c.Disagree,
			VotesTotal:    c.Agree + c.Neutral + c.Disagree,
		}
		running = running.Add(delta)

		windowEnd := start.Add(width * time.Duration(i+1))
		if i == n-1 {
			windowEnd = end
		}
		ts.Buckets[i] = TimeseriesPoint{
			Start:      start.Add(width * time.Duration(i)),
			End:        windowEnd,
			Delta:      delta,
			Cumulative: running,
		}
	}
	return ts
}
