package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"Agora/internal/core/statements"
	"Agora/internal/core/stats"
	"Agora/internal/logging"
)

type postgresStatsRepo struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewStatsRepository creates a new PostgreSQL stats repository
func NewStatsRepository(db *sql.DB, logger *logging.Logger) stats.Repository {
	return &postgresStatsRepo{db: db, logger: logging.OrNop(logger)}
}

// CountVotesByBucket groups votes into equal-width windows by creation time.
// width_bucket returns 0 and n+1 for values outside the range; those are clamped.
func (r *postgresStatsRepo) CountVotesByBucket(ctx context.Context, statementID uuid.UUID, start, end time.Time, buckets int) ([]stats.BucketCount, error) {
	if buckets < 1 {
		return nil, stats.ErrInvalidBucketCount
	}

	query := `
		SELECT
			LEAST(GREATEST(width_bucket(EXTRACT(EPOCH FROM created_at)::float8, $2::float8, $3::float8, $4), 1), $4) AS bucket,
			COUNT(*) FILTER (WHERE decision = 'agree') AS agree,
			COUNT(*) FILTER (WHERE decision = 'neutral') AS neutral,
			COUNT(*) FILTER (WHERE decision = 'disagree') AS disagree
		FROM votes
		WHERE statement_id = $1
		GROUP BY bucket
		ORDER BY bucket
	`

	startEpoch := float64(start.UnixNano()) / float64(time.Second)
	endEpoch := float64(end.UnixNano()) / float64(time.Second)

	rows, err := r.db.QueryContext(ctx, query, statementID, startEpoch, endEpoch, buckets)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes by bucket: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []stats.BucketCount
	for rows.Next() {
		var c stats.BucketCount
		if err := rows.Scan(&c.Bucket, &c.Agree, &c.Neutral, &c.Disagree); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating buckets: %w", err)
	}
	return result, nil
}

// ReconcileCounters locks the statement row and rewrites its counters from the votes table
func (r *postgresStatsRepo) ReconcileCounters(ctx context.Context, statementID uuid.UUID) (statements.Stats, statements.Stats, error) {
	var before, after statements.Stats

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return before, after, fmt.Errorf("failed to begin reconcile transaction: %w", err)
	}
	defer rollback(tx, r.logger)

	err = tx.QueryRowContext(ctx, `
		SELECT votes_total, votes_agree, votes_neutral, votes_disagree
		FROM statements WHERE id = $1
		FOR UPDATE
	`, statementID).Scan(&before.VotesTotal, &before.VotesAgree, &before.VotesNeutral, &before.VotesDisagree)
	if err == sql.ErrNoRows {
		return before, after, statements.ErrStatementNotFound
	}
	if err != nil {
		return before, after, fmt.Errorf("failed to lock statement: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		WITH tally AS (
			SELECT
				COUNT(*) AS total,
				COUNT(*) FILTER (WHERE decision = 'agree') AS agree,
				COUNT(*) FILTER (WHERE decision = 'neutral') AS neutral,
				COUNT(*) FILTER (WHERE decision = 'disagree') AS disagree
			FROM votes
			WHERE statement_id = $1
		)
		UPDATE statements s
		SET votes_total = tally.total,
			votes_agree = tally.agree,
			votes_neutral = tally.neutral,
			votes_disagree = tally.disagree,
			updated_at = NOW()
		FROM tally
		WHERE s.id = $1
		RETURNING s.votes_total, s.votes_agree, s.votes_neutral, s.votes_disagree
	`, statementID).Scan(&after.VotesTotal, &after.VotesAgree, &after.VotesNeutral, &after.VotesDisagree)
	if err != nil {
		return before, after, fmt.Errorf("failed to rewrite counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return before, after, fmt.Errorf("failed to commit reconcile: %w", err)
	}
	return before, after, nil
}
