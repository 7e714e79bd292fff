// Package auth provides authentication context, credential hashing and
// session tokens.
package auth

import (
	"context"
	"net/http"
	"strings"
)

// =============================================================================
// Context Key
// =============================================================================

type contextKey string

const authContextKey contextKey = "auth"

// =============================================================================
// Types
// =============================================================================

// Context represents the authenticated user of a request. It is built from a
// verified session token and stored in the request context.
type Context struct {
	// UserID is the id of the signed-in user (the token's sub claim).
	UserID string

	// Email and Name are copied from the token so handlers need no lookup.
	Email string
	Name  string

	// Authenticated indicates whether the request carried a valid token.
	Authenticated bool
}

// ContextFromClaims builds an authenticated context from verified claims.
func ContextFromClaims(c Claims) Context {
	return Context{
		UserID:        c.Subject,
		Email:         c.Email,
		Name:          c.Name,
		Authenticated: c.Subject != "",
	}
}

// =============================================================================
// Token Extraction
// =============================================================================

// HeaderGetter is an interface for getting header values.
// This allows testing without requiring an http.Request.
type HeaderGetter interface {
	Get(key string) string
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(headers HeaderGetter) string {
	h := strings.TrimSpace(headers.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// TokenFromRequest returns the session token from the named cookie, falling
// back to a Bearer header. It returns "" when neither is present.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return BearerToken(r.Header)
}

// =============================================================================
// Context Storage
// =============================================================================

// WithContext stores the auth context in the request context.
func WithContext(ctx context.Context, authCtx Context) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// FromContext retrieves the auth context from the request context.
// If no auth context is found, returns an unauthenticated context.
func FromContext(ctx context.Context) Context {
	if authCtx, ok := ctx.Value(authContextKey).(Context); ok {
		return authCtx
	}
	return Context{Authenticated: false}
}

// =============================================================================
// Helper Types for Testing
// =============================================================================

// MapHeaderGetter wraps a map to implement HeaderGetter interface.
type MapHeaderGetter map[string]string

func (m MapHeaderGetter) Get(key string) string {
	return m[key]
}
