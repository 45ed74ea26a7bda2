package main

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Agora/internal/config"
	"Agora/internal/core/statements"
	"Agora/internal/core/stats"
	"Agora/internal/db/memory"
)

// deleteTracker records which statements had their cached counters dropped
type deleteTracker struct {
	mu      sync.Mutex
	deleted map[uuid.UUID]int
}

func (c *deleteTracker) Get(context.Context, uuid.UUID) (stats.Lookup, error) {
	return stats.Lookup{}, nil
}

func (c *deleteTracker) Set(context.Context, uuid.UUID, statements.Stats, int64) error {
	return nil
}

func (c *deleteTracker) Delete(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted[id]++
	return nil
}

func TestReconcileAll(t *testing.T) {
	store := memory.NewStore(nil)
	ctx := context.Background()

	var ids []*statements.Statement
	for i := 0; i < pageSize+3; i++ {
		st := &statements.Statement{Title: "Statement"}
		require.NoError(t, store.Create(ctx, st))
		ids = append(ids, st)
	}
	require.NoError(t, store.SetCounters(ids[0].ID, statements.Stats{VotesTotal: 2, VotesAgree: 2}))
	require.NoError(t, store.SetCounters(ids[pageSize+1].ID, statements.Stats{VotesTotal: 1, VotesNeutral: 1}))

	cache := &deleteTracker{deleted: make(map[uuid.UUID]int)}
	service := stats.NewService(store, store, cache, nil, nil)
	checked, drifted, err := reconcileAll(ctx, store, service, nil)
	require.NoError(t, err)
	assert.Equal(t, pageSize+3, checked)
	assert.Equal(t, 2, drifted)

	got, err := store.GetByID(ctx, ids[0].ID)
	require.NoError(t, err)
	assert.Equal(t, statements.Stats{}, got.Stats)

	// Only repaired statements are evicted from the cache
	assert.Equal(t, map[uuid.UUID]int{ids[0].ID: 1, ids[pageSize+1].ID: 1}, cache.deleted)

	// Second pass finds nothing left to repair
	_, drifted, err = reconcileAll(ctx, store, service, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, drifted)
}

func TestOpenStatsCache_WithoutRedis(t *testing.T) {
	cache, closeCache, err := openStatsCache(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, cache)
	closeCache()
}
