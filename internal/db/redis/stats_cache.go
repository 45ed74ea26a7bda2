package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"Agora/internal/core/statements"
	"Agora/internal/core/stats"
	"Agora/internal/logging"
)

const (
	statsKeyPrefix      = "agora:stats:"
	generationKeyPrefix = "agora:stats-gen:"

	// generationTTL keeps idle generation keys from piling up. It only has to outlive the
	// slowest read that could race an invalidation.
	generationTTL = 24 * time.Hour
)

// setIfGenerationScript writes the counters hash only while the statement's generation
// still equals the one observed on the preceding miss.
// KEYS: [1]=stats hash, [2]=generation
// ARGV: [1]=generation, [2]=total, [3]=agree, [4]=neutral, [5]=disagree, [6]=ttl_ms
var setIfGenerationScript = goredis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'total', ARGV[2], 'agree', ARGV[3], 'neutral', ARGV[4], 'disagree', ARGV[5])
redis.call('PEXPIRE', KEYS[1], ARGV[6])
return 1
`)

// CacheObserver receives cache outcomes (hit, miss, stale, error, skipped) and breaker transitions
type CacheObserver interface {
	ObserveCacheResult(result string)
	ObserveBreakerState(name, state string)
}

// StatsCache keeps statement counters in a Redis hash per statement.
// All calls go through a circuit breaker so a struggling Redis costs nothing but cache misses.
type StatsCache struct {
	rdb      goredis.Cmdable
	cb       *gobreaker.CircuitBreaker
	observer CacheObserver
	logger   *logging.Logger
	ttl      time.Duration
}

var _ stats.Cache = (*StatsCache)(nil)

// NewStatsCache creates a counters cache. observer may be nil.
func NewStatsCache(rdb goredis.Cmdable, ttl time.Duration, observer CacheObserver, logger *logging.Logger) *StatsCache {
	c := &StatsCache{
		rdb:      rdb,
		ttl:      ttl,
		observer: observer,
		logger:   logging.OrNop(logger).With("component", "stats_cache"),
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-stats-cache",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, goredis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if c.observer != nil {
				c.observer.ObserveBreakerState(name, to.String())
			}
		},
	})
	return c
}

// State reports the breaker state
func (c *StatsCache) State() gobreaker.State {
	return c.cb.State()
}

type cacheRead struct {
	fields     map[string]string
	generation int64
}

// Get returns cached counters. A miss carries the generation to hand back to Set.
func (c *StatsCache) Get(ctx context.Context, statementID uuid.UUID) (stats.Lookup, error) {
	v, err := c.cb.Execute(func() (interface{}, error) {
		var (
			fields *goredis.MapStringStringCmd
			gen    *goredis.StringCmd
		)
		_, err := c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			fields = pipe.HGetAll(ctx, statsKey(statementID))
			gen = pipe.Get(ctx, generationKey(statementID))
			return nil
		})
		// A statement that was never invalidated has no generation key
		if err != nil && !errors.Is(err, goredis.Nil) {
			return nil, err
		}
		generation, err := gen.Int64()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return nil, err
		}
		return cacheRead{fields: fields.Val(), generation: generation}, nil
	})
	if err != nil {
		c.observe(resultFor(err))
		return stats.Lookup{}, fmt.Errorf("stats cache get: %w", err)
	}

	read := v.(cacheRead)
	miss := stats.Lookup{Generation: read.generation}
	if len(read.fields) == 0 {
		c.observe("miss")
		return miss, nil
	}

	s, err := decodeStats(read.fields)
	if err != nil {
		// Corrupt entry: drop it and fall through to the store
		c.observe("miss")
		_ = c.Delete(ctx, statementID)
		miss.Generation++
		return miss, nil
	}
	c.observe("hit")
	return stats.Lookup{Stats: s, Generation: read.generation, Hit: true}, nil
}

// Set stores counters with the configured TTL, unless the statement was invalidated since
// the miss that returned generation
func (c *StatsCache) Set(ctx context.Context, statementID uuid.UUID, s statements.Stats, generation int64) error {
	v, err := c.cb.Execute(func() (interface{}, error) {
		return setIfGenerationScript.Run(ctx, c.rdb,
			[]string{statsKey(statementID), generationKey(statementID)},
			strconv.FormatInt(generation, 10),
			s.VotesTotal,
			s.VotesAgree,
			s.VotesNeutral,
			s.VotesDisagree,
			c.ttl.Milliseconds(),
		).Int64()
	})
	if err != nil {
		c.observe(resultFor(err))
		return fmt.Errorf("stats cache set: %w", err)
	}
	if v.(int64) == 0 {
		c.observe("stale")
		c.logger.Debug("dropped stale stats cache write", "statement", statementID, "generation", generation)
	}
	return nil
}

// Delete drops cached counters and bumps the generation so in-flight reads can't restore them
func (c *StatsCache) Delete(ctx context.Context, statementID uuid.UUID) error {
	genKey := generationKey(statementID)
	_, err := c.cb.Execute(func() (interface{}, error) {
		return c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, statsKey(statementID))
			pipe.Incr(ctx, genKey)
			pipe.Expire(ctx, genKey, generationTTL)
			return nil
		})
	})
	if err != nil {
		c.observe(resultFor(err))
		return fmt.Errorf("stats cache delete: %w", err)
	}
	return nil
}

func (c *StatsCache) observe(result string) {
	if c.observer != nil {
		c.observer.ObserveCacheResult(result)
	}
}

func resultFor(err error) string {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "skipped"
	}
	return "error"
}

func statsKey(id uuid.UUID) string {
	return statsKeyPrefix + id.String()
}

func generationKey(id uuid.UUID) string {
	return generationKeyPrefix + id.String()
}

func decodeStats(fields map[string]string) (statements.Stats, error) {
	var s statements.Stats
	for name, dst := range map[string]*int64{
		"total":    &s.VotesTotal,
		"agree":    &s.VotesAgree,
		"neutral":  &s.VotesNeutral,
		"disagree": &s.VotesDisagree,
	} {
		raw, ok := fields[name]
		if !ok {
			return s, fmt.Errorf("missing field %q", name)
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return s, fmt.Errorf("field %q: %w", name, err)
		}
		*dst = n
	}
	if !s.Consistent() {
		return s, errors.New("inconsistent cached counters")
	}
	return s, nil
}
