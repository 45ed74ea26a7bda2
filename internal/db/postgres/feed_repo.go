package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"Agora/internal/core/statements"
	"Agora/internal/core/swipes"
)

type postgresFeedRepo struct {
	db *sql.DB
}

// NewFeedRepository creates a new PostgreSQL swipe feed repository
func NewFeedRepository(db *sql.DB) swipes.Repository {
	return &postgresFeedRepo{db: db}
}

// ListFeed returns active statements the user hasn't voted on, newest first.
// Exclusion is an anti-join inside the same query, so a page is never short because
// already-voted items were dropped after the fact.
func (r *postgresFeedRepo) ListFeed(ctx context.Context, q swipes.FeedQuery) ([]*statements.Statement, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + statementColumns + `
		FROM statements s
		WHERE s.status = 'active'
		  AND NOT EXISTS (
			SELECT 1 FROM votes v
			WHERE v.statement_id = s.id AND v.user_id = $1
		  )`)
	args := []any{q.UserID}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Filter.Topic != "" {
		b.WriteString(` AND s.topic = ` + arg(q.Filter.Topic))
	}
	if q.Filter.Region != "" {
		b.WriteString(` AND s.region = ` + arg(q.Filter.Region))
	}
	if q.After != nil {
		createdAt := arg(q.After.CreatedAt)
		id := arg(q.After.ID)
		fmt.Fprintf(&b, ` AND (s.created_at < %[1]s OR (s.created_at = %[1]s AND s.id < %[2]s))`, createdAt, id)
	}
	b.WriteString(` ORDER BY s.created_at DESC, s.id DESC LIMIT ` + arg(q.Limit))

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*statements.Statement
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed statement: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed: %w", err)
	}
	return result, nil
}
