package routes

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Agora/internal/api/middleware"
	"Agora/internal/core/pagination"
	"Agora/internal/core/statements"
	"Agora/internal/core/stats"
	"Agora/internal/core/swipes"
	"Agora/internal/core/votes"
	"Agora/internal/db/memory"
)

const testJWTSecret = "routes-test-jwt-secret-0123456789abcdef"

func bearer(t *testing.T, subject string) string {
	t.Helper()
	tok, err := jwt.NewBuilder().Subject(subject).Expiration(time.Now().Add(time.Hour)).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(testJWTSecret)))
	require.NoError(t, err)
	return "Bearer " + string(signed)
}

func newTestRouter(t *testing.T, votesPerWindow int) (chi.Router, *statements.Statement) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := memory.NewStore(clock)
	st := &statements.Statement{Title: "Tax on second homes"}
	require.NoError(t, store.Create(context.Background(), st))

	codec := pagination.NewCodec("cursor-secret")
	statsService := stats.NewService(store, store, nil, clock, nil)
	voteService := votes.NewService(store, codec, nil, votes.WithCounterCache(statsService))
	swipeService := swipes.NewService(store, store, store, codec, nil)

	auth := middleware.NewSessionAuth(sessions.NewCookieStore([]byte("session-secret-0123456789abcdef")), "agora_session", testJWTSecret, nil)
	limiter := middleware.NewMemoryLimiter(votesPerWindow, time.Minute, clock)

	r := chi.NewRouter()
	RegisterSwipeRoutes(r, swipeService, voteService, auth, nil, middleware.RateLimit("vote", limiter, nil, nil), nil)
	RegisterStatsRoutes(r, statsService, auth, nil)
	return r, st
}

func serve(r http.Handler, method, path, body, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSwipeRoutes_RequireAuth(t *testing.T) {
	r, st := newTestRouter(t, 10)

	for _, path := range []string{"/swipes/feed", "/swipes/eventualities", "/swipes/vote"} {
		rec := serve(r, http.MethodPost, path, `{"statementId":"`+st.ID.String()+`","decision":"agree"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := serve(r, http.MethodGet, "/swipes/votes", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSwipeRoutes_VoteThenStats(t *testing.T) {
	r, st := newTestRouter(t, 10)
	authz := bearer(t, "user-42")

	rec := serve(r, http.MethodPost, "/swipes/feed", `{}`, authz)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), st.ID.String())

	rec = serve(r, http.MethodPost, "/swipes/vote", `{"statementId":"`+st.ID.String()+`","decision":"agree"}`, authz)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)

	rec = serve(r, http.MethodPost, "/swipes/feed", `{}`, authz)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())

	rec = serve(r, http.MethodGet, "/statements/"+st.ID.String()+"/stats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"votesAgree":1`)

	rec = serve(r, http.MethodGet, "/votes/stats/"+st.ID.String()+"?buckets=3", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"timeseries"`)
}

func TestSwipeRoutes_VoteRateLimited(t *testing.T) {
	r, st := newTestRouter(t, 2)
	authz := bearer(t, "user-7")
	body := `{"statementId":"` + st.ID.String() + `","decision":"neutral"}`

	for i := 0; i < 2; i++ {
		rec := serve(r, http.MethodPost, "/swipes/vote", body, authz)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := serve(r, http.MethodPost, "/swipes/vote", body, authz)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RateLimited")

	// Other endpoints are not affected
	rec = serve(r, http.MethodPost, "/swipes/feed", `{}`, authz)
	assert.Equal(t, http.StatusOK, rec.Code)
}
