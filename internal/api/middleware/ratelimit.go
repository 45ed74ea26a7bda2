package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"Agora/internal/logging"
)

// Limiter decides whether one more request for key fits in the current window
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimitObserver is told about rejected requests
type RateLimitObserver interface {
	ObserveRateLimited(limiter string)
}

// MemoryLimiter is a fixed-window limiter local to this process
type MemoryLimiter struct {
	clock    clockwork.Clock
	clients  map[string]*clientLimit
	requests int
	window   time.Duration
	mu       sync.Mutex
}

type clientLimit struct {
	resetTime time.Time
	count     int
}

// NewMemoryLimiter creates a limiter allowing requests per window. A nil clock uses the real clock.
func NewMemoryLimiter(requests int, window time.Duration, clock clockwork.Clock) *MemoryLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryLimiter{
		clock:    clock,
		clients:  make(map[string]*clientLimit),
		requests: requests,
		window:   window,
	}
}

// Allow checks if a client is allowed to make a request
func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()

	client, exists := rl.clients[key]
	if !exists || !now.Before(client.resetTime) {
		rl.clients[key] = &clientLimit{
			count:     1,
			resetTime: now.Add(rl.window),
		}
		return true, nil
	}

	if client.count < rl.requests {
		client.count++
		return true, nil
	}
	return false, nil
}

// Cleanup removes expired entries every window until ctx is done
func (rl *MemoryLimiter) Cleanup(ctx context.Context) {
	ticker := rl.clock.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			rl.mu.Lock()
			now := rl.clock.Now()
			for key, client := range rl.clients {
				if !now.Before(client.resetTime) {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// RateLimit rejects requests over the limiter's budget with 429. Requests are keyed by
// the authenticated user when known, else by client IP. Limiter errors let the request through.
func RateLimit(name string, limiter Limiter, observer RateLimitObserver, logger *logging.Logger) func(http.Handler) http.Handler {
	logger = logging.OrNop(logger).With("component", "ratelimit", "limiter", name)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + getClientIP(r)
			if userID := GetUserID(r); userID != "" {
				key = "user:" + userID
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request", "error", err)
				allowed = true
			}
			if !allowed {
				if observer != nil {
					observer.ObserveRateLimited(name)
				}
				writeJSONError(w, http.StatusTooManyRequests, "RateLimited", "Rate limit exceeded. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP keys on the peer address only. Forwarding headers are client-controlled;
// behind a trusted proxy, RealIP rewrites RemoteAddr before this runs.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
