package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"Agora/internal/core/statements"
)

type postgresStatementRepo struct {
	db *sql.DB
}

// NewStatementRepository creates a new PostgreSQL statement repository
func NewStatementRepository(db *sql.DB) statements.Repository {
	return &postgresStatementRepo{db: db}
}

const statementColumns = `
	id, title, body, topic, region, status,
	votes_total, votes_agree, votes_neutral, votes_disagree,
	created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatement(row rowScanner) (*statements.Statement, error) {
	var s statements.Statement
	err := row.Scan(
		&s.ID, &s.Title, &s.Body, &s.Topic, &s.Region, &s.Status,
		&s.Stats.VotesTotal, &s.Stats.VotesAgree, &s.Stats.VotesNeutral, &s.Stats.VotesDisagree,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID retrieves a statement in any status
func (r *postgresStatementRepo) GetByID(ctx context.Context, id uuid.UUID) (*statements.Statement, error) {
	query := `SELECT ` + statementColumns + ` FROM statements WHERE id = $1`

	s, err := scanStatement(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, statements.ErrStatementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statement: %w", err)
	}
	return s, nil
}

// Create inserts a statement with zeroed counters
func (r *postgresStatementRepo) Create(ctx context.Context, s *statements.Statement) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = statements.StatusActive
	}
	if !s.Status.Valid() {
		return statements.ErrInvalidStatus
	}
	s.Stats = statements.Stats{}

	query := `
		INSERT INTO statements (id, title, body, topic, region, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		RETURNING created_at
	`

	var createdAt sql.NullTime
	if !s.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: s.CreatedAt, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		s.ID, s.Title, s.Body, s.Topic, s.Region, s.Status, createdAt,
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert statement: %w", err)
	}
	return nil
}

// ListIDs pages through statement IDs in ascending order
func (r *postgresStatementRepo) ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM statements WHERE id > $1 ORDER BY id ASC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list statement ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan statement id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statement ids: %w", err)
	}
	return ids, nil
}
