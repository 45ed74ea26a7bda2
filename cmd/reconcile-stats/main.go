// Command reconcile-stats recomputes statement counters from the votes table and repairs drift.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"Agora/internal/config"
	"Agora/internal/core/statements"
	"Agora/internal/core/stats"
	postgresRepo "Agora/internal/db/postgres"
	redisStore "Agora/internal/db/redis"
	"Agora/internal/logging"
	"Agora/internal/metrics"
)

const pageSize = 500

func main() {
	only := flag.String("statement", "", "reconcile a single statement ID")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgresRepo.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer func() { _ = db.Close() }()

	// Repaired counters must evict what the server cached
	cache, closeCache, err := openStatsCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", "error", err)
	}
	defer closeCache()

	statementRepo := postgresRepo.NewStatementRepository(db)
	service := stats.NewService(postgresRepo.NewStatsRepository(db, logger), statementRepo, cache, nil, logger)

	if *only != "" {
		id, err := uuid.Parse(*only)
		if err != nil {
			logger.Fatal("Invalid statement ID", "statement", *only, "error", err)
		}
		res, err := service.Reconcile(ctx, id)
		if err != nil {
			logger.Fatal("Failed to reconcile statement", "statement", id, "error", err)
		}
		logger.Info("Reconciled statement", "statement", id, "drifted", res.Drifted, "after", res.After)
		return
	}

	checked, drifted, err := reconcileAll(ctx, statementRepo, service, logger)
	if err != nil {
		logger.Fatal("Reconcile stopped", "checked", checked, "drifted", drifted, "error", err)
	}
	logger.Info("Reconcile complete", "checked", checked, "drifted", drifted)
}

// openStatsCache connects the server's stats cache when Redis is configured. Without
// REDIS_URL the server caches nothing, so there is nothing to evict.
func openStatsCache(ctx context.Context, cfg *config.Config, logger *logging.Logger) (stats.Cache, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}
	rdb, err := redisStore.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return redisStore.NewStatsCache(rdb, cfg.StatsCacheTTL, metrics.Recorder{}, logger), func() { _ = rdb.Close() }, nil
}

// reconcileAll walks every statement in ID order. A statement removed mid-run is skipped.
func reconcileAll(ctx context.Context, repo statements.Repository, service stats.Service, logger *logging.Logger) (checked, drifted int, err error) {
	logger = logging.OrNop(logger)
	after := uuid.Nil
	for {
		ids, err := repo.ListIDs(ctx, after, pageSize)
		if err != nil {
			return checked, drifted, err
		}
		if len(ids) == 0 {
			return checked, drifted, nil
		}

		for _, id := range ids {
			res, err := service.Reconcile(ctx, id)
			if errors.Is(err, statements.ErrStatementNotFound) {
				continue
			}
			if err != nil {
				return checked, drifted, err
			}
			checked++
			if res.Drifted {
				drifted++
			}
		}

		logger.Debug("Reconciled page", "checked", checked, "drifted", drifted)
		after = ids[len(ids)-1]
	}
}
