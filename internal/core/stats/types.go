package stats

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"Agora/internal/core/statements"
)

// Service reads statement counters and vote history
type Service interface {
	// GetStats returns the live counters of a statement (zeroed when nobody voted yet).
	// Returns statements.ErrStatementNotFound for unknown or inactive statements.
	GetStats(ctx context.Context, statementID uuid.UUID) (statements.Stats, error)

	// GetTimeseries splits [statement created_at, now] into bucketCount equal windows and
	// counts votes per window by creation time. bucketCount is clamped with ClampBuckets.
	// Unknown or inactive statements return statements.ErrStatementNotFound.
	GetTimeseries(ctx context.Context, statementID uuid.UUID, bucketCount int) (*Timeseries, error)

	// Reconcile recomputes the counters of a statement from its votes and repairs drift
	Reconcile(ctx context.Context, statementID uuid.UUID) (*ReconcileResult, error)

	// Invalidate drops any cached counters for the statement
	Invalidate(ctx context.Context, statementID uuid.UUID) error
}

// Repository defines vote-history queries that can't be served from counters
type Repository interface {
	// CountVotesByBucket groups a statement's votes into buckets equal-width windows over
	// [start, end]. Buckets are 1-based; votes outside the range land in the nearest edge
	// bucket. Empty buckets may be omitted.
	CountVotesByBucket(ctx context.Context, statementID uuid.UUID, start, end time.Time, buckets int) ([]BucketCount, error)

	// ReconcileCounters rewrites the statement counters from the votes ledger atomically
	// and returns the values before and after
	ReconcileCounters(ctx context.Context, statementID uuid.UUID) (before, after statements.Stats, err error)
}

// Cache stores statement counters for a short time.
//
// Every statement has a generation that Delete bumps. Set only writes when the generation
// still matches the one a miss returned, so counters read before an invalidation can't
// overwrite it.
type Cache interface {
	Get(ctx context.Context, statementID uuid.UUID) (Lookup, error)
	Set(ctx context.Context, statementID uuid.UUID, s statements.Stats, generation int64) error
	Delete(ctx context.Context, statementID uuid.UUID) error
}

// Lookup is the outcome of a cache read
type Lookup struct {
	Stats      statements.Stats
	Generation int64
	Hit        bool
}

// BucketCount is the number of votes per decision in one window
type BucketCount struct {
	Bucket   int
	Agree    int64
	Neutral  int64
	Disagree int64
}

// Timeseries is the bucketed vote history of a statement
type Timeseries struct {
	Start   time.Time         `json:"start"`
	End     time.Time         `json:"end"`
	Buckets []TimeseriesPoint `json:"buckets"`
}

// TimeseriesPoint holds per-window deltas and running totals up to the end of the window
type TimeseriesPoint struct {
	Start      time.Time        `json:"start"`
	End        time.Time        `json:"end"`
	Delta      statements.Stats `json:"delta"`
	Cumulative statements.Stats `json:"cumulative"`
}

// ReconcileResult reports the counters before and after a repair
type ReconcileResult struct {
	Before      statements.Stats `json:"before"`
	After       statements.Stats `json:"after"`
	StatementID uuid.UUID        `json:"statementId"`
	Drifted     bool             `json:"drifted"`
}

const (
	DefaultBuckets = 10
	MaxBuckets     = 100
)

// ErrInvalidBucketCount is returned by repositories asked for fewer than one bucket
var ErrInvalidBucketCount = errors.New("bucket count must be between 1 and 100")

// ClampBuckets maps a requested bucket count into [1, MaxBuckets], using DefaultBuckets
// for zero or negative requests
func ClampBuckets(n int) int {
	switch {
	case n <= 0:
		return DefaultBuckets
	case n > MaxBuckets:
		return MaxBuckets
	default:
		return n
	}
}
