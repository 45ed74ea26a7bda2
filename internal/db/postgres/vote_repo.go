package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"Agora/internal/core/pagination"
	"Agora/internal/core/statements"
	"Agora/internal/core/votes"
	"Agora/internal/logging"
)

type postgresVoteRepo struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewVoteRepository creates a new PostgreSQL vote repository
func NewVoteRepository(db *sql.DB, logger *logging.Logger) votes.Repository {
	return &postgresVoteRepo{db: db, logger: logging.OrNop(logger)}
}

// UpsertVote writes the vote row and the statement counters in one transaction.
//
// Locks are always taken in the same order (vote row, then statement row), so two
// requests touching the same statement can't deadlock each other. A concurrent first
// vote by the same user surfaces as votes.ErrConflict via ON CONFLICT DO NOTHING; the
// caller retries and takes the update path.
func (r *postgresVoteRepo) UpsertVote(ctx context.Context, v *votes.Vote) (*votes.UpsertResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err, "begin vote transaction")
	}
	defer rollback(tx, r.logger)

	var status statements.Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM statements WHERE id = $1`, v.StatementID).Scan(&status)
	if err == sql.ErrNoRows || (err == nil && status != statements.StatusActive) {
		return nil, statements.ErrStatementNotFound
	}
	if err != nil {
		return nil, classify(err, "check statement")
	}

	existing := votes.Vote{StatementID: v.StatementID, UserID: v.UserID}
	err = tx.QueryRowContext(ctx, `
		SELECT id, decision, source, created_at, updated_at
		FROM votes
		WHERE statement_id = $1 AND user_id = $2
		FOR UPDATE
	`, v.StatementID, v.UserID).Scan(
		&existing.ID, &existing.Decision, &existing.Source, &existing.CreatedAt, &existing.UpdatedAt,
	)

	var prev votes.Decision
	switch {
	case err == sql.ErrNoRows:
		if err := r.insertVote(ctx, tx, v, &existing); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, classify(err, "lock vote")
	case existing.Decision == v.Decision:
		// Same decision again: nothing to write
		if err := tx.Commit(); err != nil {
			return nil, classify(err, "commit vote")
		}
		current, err := r.currentStats(ctx, v.StatementID)
		if err != nil {
			return nil, err
		}
		return &votes.UpsertResult{
			Vote:       &existing,
			Previous:   existing.Decision,
			Transition: votes.TransitionUnchanged,
			Stats:      current,
		}, nil
	default:
		prev = existing.Decision
		err = tx.QueryRowContext(ctx, `
			UPDATE votes
			SET decision = $2, source = $3, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`, existing.ID, v.Decision, v.Source).Scan(&existing.UpdatedAt)
		if err != nil {
			return nil, classify(err, "update vote")
		}
		existing.Decision = v.Decision
		existing.Source = v.Source
	}

	after, err := applyDelta(ctx, tx, v.StatementID, votes.Delta(prev, v.Decision))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(err, "commit vote")
	}

	return &votes.UpsertResult{
		Vote:       &existing,
		Previous:   prev,
		Transition: votes.TransitionFor(prev, v.Decision),
		Stats:      after,
	}, nil
}

func (r *postgresVoteRepo) insertVote(ctx context.Context, tx *sql.Tx, v *votes.Vote, out *votes.Vote) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO votes (statement_id, user_id, decision, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (statement_id, user_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`, v.StatementID, v.UserID, v.Decision, v.Source).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)

	// No row back means a concurrent transaction inserted first
	if err == sql.ErrNoRows {
		return votes.ErrConflict
	}
	if err != nil {
		return classify(err, "insert vote")
	}
	out.Decision = v.Decision
	out.Source = v.Source
	return nil
}

// applyDelta shifts the statement counters by d and returns the new values
func applyDelta(ctx context.Context, tx *sql.Tx, statementID uuid.UUID, d statements.Stats) (statements.Stats, error) {
	var s statements.Stats
	err := tx.QueryRowContext(ctx, `
		UPDATE statements
		SET votes_agree = votes_agree + $2,
			votes_neutral = votes_neutral + $3,
			votes_disagree = votes_disagree + $4,
			votes_total = votes_total + $5,
			updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING votes_total, votes_agree, votes_neutral, votes_disagree
	`, statementID, d.VotesAgree, d.VotesNeutral, d.VotesDisagree, d.VotesTotal).Scan(
		&s.VotesTotal, &s.VotesAgree, &s.VotesNeutral, &s.VotesDisagree,
	)
	// Statement was deactivated between the status check and the update
	if err == sql.ErrNoRows {
		return statements.Stats{}, statements.ErrStatementNotFound
	}
	if err != nil {
		return statements.Stats{}, classify(err, "update statement counters")
	}
	return s, nil
}

func (r *postgresVoteRepo) currentStats(ctx context.Context, statementID uuid.UUID) (statements.Stats, error) {
	var s statements.Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT votes_total, votes_agree, votes_neutral, votes_disagree
		FROM statements WHERE id = $1
	`, statementID).Scan(&s.VotesTotal, &s.VotesAgree, &s.VotesNeutral, &s.VotesDisagree)
	if err == sql.ErrNoRows {
		return statements.Stats{}, statements.ErrStatementNotFound
	}
	if err != nil {
		return statements.Stats{}, classify(err, "read statement counters")
	}
	return s, nil
}

// GetByUserAndStatement retrieves a user's vote on a statement
func (r *postgresVoteRepo) GetByUserAndStatement(ctx context.Context, userID string, statementID uuid.UUID) (*votes.Vote, error) {
	query := `
		SELECT id, statement_id, user_id, decision, source, created_at, updated_at
		FROM votes
		WHERE user_id = $1 AND statement_id = $2
	`

	var vote votes.Vote
	err := r.db.QueryRowContext(ctx, query, userID, statementID).Scan(
		&vote.ID, &vote.StatementID, &vote.UserID, &vote.Decision, &vote.Source,
		&vote.CreatedAt, &vote.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, votes.ErrVoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote by user and statement: %w", err)
	}
	return &vote, nil
}

// ListByUser retrieves a user's votes newest first, strictly after the cursor
func (r *postgresVoteRepo) ListByUser(ctx context.Context, userID string, after *pagination.Cursor, limit int) ([]*votes.Vote, error) {
	query := `
		SELECT id, statement_id, user_id, decision, source, created_at, updated_at
		FROM votes
		WHERE user_id = $1
	`
	args := []any{userID}
	if after != nil {
		query += ` AND (created_at < $2 OR (created_at = $2 AND id < $3))`
		args = append(args, after.CreatedAt, after.ID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes by user: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*votes.Vote
	for rows.Next() {
		var vote votes.Vote
		err := rows.Scan(
			&vote.ID, &vote.StatementID, &vote.UserID, &vote.Decision, &vote.Source,
			&vote.CreatedAt, &vote.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		result = append(result, &vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes: %w", err)
	}
	return result, nil
}
