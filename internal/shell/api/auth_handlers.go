package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/artpar/formdesk/internal/core/auth"
	"github.com/artpar/formdesk/internal/core/domain"
	"github.com/artpar/formdesk/internal/shell/store"
)

// =============================================================================
// Auth Handlers
// =============================================================================

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if errs := domain.ValidateRegistration(req.Email, req.Password, req.Name); len(errs) > 0 {
		h.writeValidation(w, errs)
		return
	}

	hash, err := auth.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		h.internalError(w, r, "register", err)
		return
	}

	user := domain.NewUser(req.Email, req.Name, hash)
	if err := h.store.CreateUser(r.Context(), &user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			h.writeError(w, http.StatusBadRequest, "Email already registered", "email_taken")
			return
		}
		h.internalError(w, r, "register", err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	h.writeJSON(w, http.StatusCreated, user.Public())
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusUnauthorized, "Invalid credentials", "invalid_credentials")
			return
		}
		h.internalError(w, r, "login", err)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		h.writeError(w, http.StatusUnauthorized, "Invalid credentials", "invalid_credentials")
		return
	}

	public := user.Public()
	token, _, err := h.issuer.Issue(public)
	if err != nil {
		h.internalError(w, r, "login", err)
		return
	}

	http.SetCookie(w, h.sessionCookie(token, int(h.issuer.TTL()/time.Second)))
	h.writeJSON(w, http.StatusOK, UserResponse{User: &public})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", -1))
	h.writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// handleMe never fails: without a valid session it reports a null user.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := auth.FromContext(r.Context())
	if !ctx.Authenticated {
		h.writeJSON(w, http.StatusOK, UserResponse{})
		return
	}
	h.writeJSON(w, http.StatusOK, UserResponse{User: &domain.PublicUser{
		ID:    ctx.UserID,
		Email: ctx.Email,
		Name:  ctx.Name,
	}})
}

// sessionCookie builds the auth cookie. A negative maxAge deletes it.
func (h *Handler) sessionCookie(token string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	}
}
