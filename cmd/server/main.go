package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"Agora/internal/api/middleware"
	"Agora/internal/api/routes"
	"Agora/internal/config"
	"Agora/internal/core/pagination"
	"Agora/internal/core/stats"
	"Agora/internal/core/swipes"
	"Agora/internal/core/votes"
	"Agora/internal/db/migrations"
	postgresRepo "Agora/internal/db/postgres"
	redisStore "Agora/internal/db/redis"
	"Agora/internal/logging"
	"Agora/internal/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger isn't configured yet
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server exited with error", "error", err)
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	db, err := postgresRepo.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	logger.Info("Connected to database")

	if cfg.RunMigrations {
		if err := migrations.Up(db); err != nil {
			return err
		}
		logger.Info("Migrations completed successfully")
	}

	recorder := metrics.Recorder{}

	// Redis is optional; without it the stats cache is disabled and rate limits are per process
	var (
		statsCache  stats.Cache
		voteLimiter middleware.Limiter
	)
	memoryLimiters := []*middleware.MemoryLimiter{}

	if cfg.RedisURL != "" {
		rdb, err := redisStore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		logger.Info("Connected to Redis")

		if cfg.StatsCacheTTL > 0 {
			statsCache = redisStore.NewStatsCache(rdb, cfg.StatsCacheTTL, recorder, logger)
		}
		voteLimiter = redisStore.NewRateLimiter(rdb, "vote", cfg.VoteRateLimit, cfg.VoteRateWindow)
	} else {
		logger.Warn("REDIS_URL not set, stats cache disabled and rate limits are per process")
		mem := middleware.NewMemoryLimiter(cfg.VoteRateLimit, cfg.VoteRateWindow, nil)
		memoryLimiters = append(memoryLimiters, mem)
		voteLimiter = mem
	}

	globalLimiter := middleware.NewMemoryLimiter(cfg.GlobalRateLimit, time.Minute, nil)
	memoryLimiters = append(memoryLimiters, globalLimiter)

	// Initialize repositories and services
	statementRepo := postgresRepo.NewStatementRepository(db)
	voteRepo := postgresRepo.NewVoteRepository(db, logger)
	feedRepo := postgresRepo.NewFeedRepository(db)
	statsRepo := postgresRepo.NewStatsRepository(db, logger)

	cursors := pagination.NewCodec(cfg.CursorSecret)

	statsService := stats.NewService(statsRepo, statementRepo, statsCache, nil, logger)
	voteService := votes.NewService(voteRepo, cursors, logger,
		votes.WithObserver(recorder),
		votes.WithCounterCache(statsService))
	swipeService := swipes.NewService(feedRepo, statementRepo, voteRepo, cursors, logger)

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	authMiddleware := middleware.NewSessionAuth(sessionStore, cfg.SessionName, cfg.JWTSecret, logger)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RateLimit("global", globalLimiter, recorder, logger))

	routes.RegisterSwipeRoutes(r, swipeService, voteService, authMiddleware, recorder,
		middleware.RateLimit("vote", voteLimiter, recorder, logger), logger)
	routes.RegisterStatsRoutes(r, statsService, authMiddleware, logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, l := range memoryLimiters {
		g.Go(func() error {
			l.Cleanup(gctx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Agora starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
