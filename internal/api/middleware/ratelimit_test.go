package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis unavailable")
}

type countingObserver struct{ rejected int }

func (o *countingObserver) ObserveRateLimited(string) { o.rejected++ }

func TestMemoryLimiter_Window(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewMemoryLimiter(2, time.Minute, clock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := limiter.Allow(ctx, "k")
	assert.False(t, ok)

	ok, _ = limiter.Allow(ctx, "other")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	ok, _ = limiter.Allow(ctx, "k")
	assert.True(t, ok, "budget resets after the window")
}

func TestRateLimit_Middleware(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute, clockwork.NewFakeClock())
	observer := &countingObserver{}
	handler := RateLimit("votes", limiter, observer, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(userID, ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/swipes/vote", nil)
		req.RemoteAddr = ip + ":12345"
		if userID != "" {
			req = req.WithContext(SetTestUserID(req.Context(), userID))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("u1", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("u1", "10.0.0.2"), "keyed by user, not IP")
	assert.Equal(t, http.StatusOK, send("u2", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("", "10.0.0.3"))
	assert.Equal(t, http.StatusTooManyRequests, send("", "10.0.0.3"))
	assert.Equal(t, 2, observer.rejected)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	handler := RateLimit("votes", failingLimiter{}, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:4000"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	// Spoofed forwarding headers do not change the key
	req.Header.Set("X-Real-IP", "198.51.100.7")
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "192.0.2.1", getClientIP(req))
}

func TestRateLimit_IgnoresRotatingForwardedFor(t *testing.T) {
	limiter := NewMemoryLimiter(2, time.Minute, clockwork.NewFakeClock())
	handler := RateLimit("global", limiter, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for _, hop := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:4000"
		req.Header.Set("X-Forwarded-For", hop)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_TrustedProxyUsesRealIP(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute, clockwork.NewFakeClock())
	handler := chiMiddleware.RealIP(RateLimit("global", limiter, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	for _, client := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		req.Header.Set("X-Real-IP", client)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code, client)
	}
}
