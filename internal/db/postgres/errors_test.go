package postgres

import (
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"Agora/internal/core/votes"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err      error
		expected error
		name     string
	}{
		{name: "unique violation", err: &pq.Error{Code: "23505"}, expected: votes.ErrConflict},
		{name: "serialization failure", err: &pq.Error{Code: "40001"}, expected: votes.ErrTransient},
		{name: "deadlock", err: &pq.Error{Code: "40P01"}, expected: votes.ErrTransient},
		{name: "connection failure", err: &pq.Error{Code: "08006"}, expected: votes.ErrTransient},
		{name: "bad conn", err: driver.ErrBadConn, expected: votes.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err, "upsert vote")
			assert.ErrorIs(t, got, tt.expected)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	plain := classify(&pq.Error{Code: "23514"}, "upsert vote")
	assert.NotErrorIs(t, plain, votes.ErrConflict)
	assert.NotErrorIs(t, plain, votes.ErrTransient)

	assert.NoError(t, classify(nil, "noop"))
	assert.Contains(t, classify(errors.New("boom"), "get feed").Error(), "get feed: boom")
}
