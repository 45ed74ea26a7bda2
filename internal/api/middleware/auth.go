package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"Agora/internal/logging"
)

// Context keys for storing user information
type contextKey string

const (
	UserIDKey     contextKey = "user_id"
	AuthMethodKey contextKey = "auth_method"
)

// SessionUserIDKey is the session value holding the authenticated user's ID
const SessionUserIDKey = "user_id"

// SessionAuth resolves the caller's identity from a Bearer token (HS256 JWT, identity
// in "sub") or, failing that, from the signed session cookie
type SessionAuth struct {
	store       sessions.Store
	logger      *logging.Logger
	sessionName string
	jwtSecret   []byte
}

// NewSessionAuth creates the auth middleware. An empty jwtSecret disables Bearer tokens.
func NewSessionAuth(store sessions.Store, sessionName, jwtSecret string, logger *logging.Logger) *SessionAuth {
	return &SessionAuth{
		store:       store,
		sessionName: sessionName,
		jwtSecret:   []byte(jwtSecret),
		logger:      logging.OrNop(logger).With("component", "auth"),
	}
}

// RequireAuth rejects unauthenticated requests with 401 and injects the user ID otherwise
func (m *SessionAuth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, method, err := m.authenticate(r)
		if err != nil {
			m.logger.Info("authentication failed",
				"ip", r.RemoteAddr,
				"method", r.Method,
				"path", r.URL.Path,
				"error", err)
			writeAuthError(w, "Invalid or expired credentials")
			return
		}
		if userID == "" {
			writeAuthError(w, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		ctx = context.WithValue(ctx, AuthMethodKey, method)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth loads the user ID when present but never rejects
func (m *SessionAuth) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, method, err := m.authenticate(r)
		if err != nil || userID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		ctx = context.WithValue(ctx, AuthMethodKey, method)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate returns ("", "", nil) when no credentials were presented
func (m *SessionAuth) authenticate(r *http.Request) (string, string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") || len(m.jwtSecret) == 0 {
			return "", "", errUnsupportedAuthorization
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		parsed, err := jwt.Parse([]byte(token), jwt.WithKey(jwa.HS256, m.jwtSecret), jwt.WithValidate(true))
		if err != nil {
			return "", "", err
		}
		if parsed.Subject() == "" {
			return "", "", errMissingSubject
		}
		return parsed.Subject(), "bearer", nil
	}

	session, err := m.store.Get(r, m.sessionName)
	if err != nil {
		// Tampered or stale cookie; treat as anonymous
		return "", "", nil
	}
	userID, _ := session.Values[SessionUserIDKey].(string)
	return userID, "session", nil
}

// GetUserID extracts the authenticated user's ID from the request context
// Returns empty string if not authenticated
func GetUserID(r *http.Request) string {
	id, _ := r.Context().Value(UserIDKey).(string)
	return id
}

// GetAuthMethod reports how the request was authenticated ("bearer" or "session")
func GetAuthMethod(r *http.Request) string {
	m, _ := r.Context().Value(AuthMethodKey).(string)
	return m
}

// SetTestUserID sets the user ID in the context for testing purposes
// This function should ONLY be used in tests to mock authenticated users
func SetTestUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// writeAuthError writes a JSON error response for authentication failures
func writeAuthError(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, "AuthenticationRequired", message)
}
