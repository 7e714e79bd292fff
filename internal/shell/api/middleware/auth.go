// Package middleware provides HTTP middleware for the formdesk API.
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/artpar/formdesk/internal/core/auth"
)

// =============================================================================
// Token Verifier Interface
// =============================================================================

// TokenVerifier checks a session token. *auth.Issuer implements it.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// =============================================================================
// Session Configuration
// =============================================================================

// SessionConfig holds configuration for the session middleware.
type SessionConfig struct {
	// Verifier validates session tokens.
	Verifier TokenVerifier

	// CookieName is the cookie carrying the token. Requests may instead send
	// "Authorization: Bearer <token>".
	CookieName string

	// Logger for auth middleware logging.
	Logger *slog.Logger
}

type tokenRejectedKey struct{}

// TokenRejected reports whether the request carried a token that failed
// verification, as opposed to carrying none.
func TokenRejected(ctx context.Context) bool {
	rejected, _ := ctx.Value(tokenRejectedKey{}).(bool)
	return rejected
}

// =============================================================================
// Session Middleware
// =============================================================================

// SessionMiddleware resolves the session token of a request into an
// auth.Context stored in the request context.
type SessionMiddleware struct {
	config SessionConfig
}

// NewSessionMiddleware creates a new session middleware with the given config.
func NewSessionMiddleware(cfg SessionConfig) *SessionMiddleware {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "auth"
	}
	return &SessionMiddleware{config: cfg}
}

// Handler returns the middleware handler function. It never rejects a
// request; RequireAuth does that for protected routes.
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		authCtx := auth.Context{}

		if token := auth.TokenFromRequest(r, m.config.CookieName); token != "" {
			claims, err := m.config.Verifier.Verify(token)
			if err != nil {
				m.config.Logger.Debug("rejected session token",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)
				ctx = context.WithValue(ctx, tokenRejectedKey{}, true)
			} else {
				authCtx = auth.ContextFromClaims(claims)
			}
		}

		next.ServeHTTP(w, r.WithContext(auth.WithContext(ctx, authCtx)))
	})
}

// =============================================================================
// Require Auth Middleware
// =============================================================================

// RequireAuth rejects requests without a valid session.
// Must be used AFTER SessionMiddleware.
func RequireAuth(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.FromContext(r.Context())

			if !ctx.Authenticated {
				logger.Warn("unauthenticated request to protected endpoint",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
				)
				if TokenRejected(r.Context()) {
					WriteError(w, http.StatusUnauthorized, "Invalid token", "invalid_token")
					return
				}
				WriteError(w, http.StatusUnauthorized, "Not authenticated", "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// JSON Error Response
// =============================================================================

// ErrorResponse is the error body returned by every endpoint.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteError writes an ErrorResponse.
func WriteError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}
