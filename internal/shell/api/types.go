package api

import (
	"github.com/artpar/formdesk/internal/core/domain"
	"github.com/artpar/formdesk/internal/shell/api/middleware"
)

// =============================================================================
// Request Types
// =============================================================================

// RegisterRequest is the request body for creating an account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest is the request body for signing in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// =============================================================================
// Response Types
// =============================================================================

// UserResponse wraps the signed-in user. User is null when nobody is signed in.
type UserResponse struct {
	User *domain.PublicUser `json:"user"`
}

// OKResponse acknowledges logout and delete.
type OKResponse struct {
	OK bool `json:"ok"`
}

// CreatedResponse is returned for a new submission.
type CreatedResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the response for errors.
type ErrorResponse = middleware.ErrorResponse

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for readiness check.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
