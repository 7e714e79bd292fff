// Package api provides HTTP handlers for the formdesk API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/formdesk/internal/core/auth"
	"github.com/artpar/formdesk/internal/core/domain"
	"github.com/artpar/formdesk/internal/shell/api/middleware"
	"github.com/artpar/formdesk/internal/shell/api/openapi"
	"github.com/artpar/formdesk/internal/shell/metrics"
	"github.com/artpar/formdesk/internal/shell/store"
	"github.com/artpar/formdesk/internal/shell/uploads"
)

// maxJSONBody caps JSON request bodies. Multipart bodies are bounded by the
// upload size limit instead.
const maxJSONBody = 1 << 20

// =============================================================================
// Configuration
// =============================================================================

// CookieConfig controls the session cookie set at login.
type CookieConfig struct {
	Name     string
	Secure   bool
	SameSite http.SameSite
}

// Config holds everything the handler needs.
type Config struct {
	Store    store.Store
	Issuer   *auth.Issuer
	Uploader *uploads.Uploader
	// UploadDir is served under /uploads/ when uploads are stored locally.
	UploadDir string
	// FrontendDir, when set, holds a built builder UI served for every
	// path outside /api.
	FrontendDir string
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	Cookie     CookieConfig
	BcryptCost int
	CORS       middleware.CORSConfig

	// SubmitRateLimit limits public submissions per client IP.
	SubmitRateLimit middleware.RateLimitConfig

	// Webhooks enables queueing deliveries for forms with a webhook URL.
	Webhooks bool

	Version string
}

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store      store.Store
	issuer     *auth.Issuer
	uploader   *uploads.Uploader
	uploadDir  string
	frontend   string
	metrics    *metrics.Metrics
	logger     *slog.Logger
	// baseLogger is the untagged logger; middleware add their own component.
	baseLogger *slog.Logger
	cookie     CookieConfig
	bcryptCost int
	cors       middleware.CORSConfig
	session    *middleware.SessionMiddleware
	limiter    *middleware.RateLimiter
	webhooks   bool
	docs       *openapi.Generator
	now        func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = "auth"
	}
	if cfg.Cookie.SameSite == 0 {
		cfg.Cookie.SameSite = http.SameSiteLaxMode
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = auth.DefaultBcryptCost
	}
	if cfg.SubmitRateLimit.Logger == nil {
		cfg.SubmitRateLimit.Logger = cfg.Logger
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	h := &Handler{
		store:      cfg.Store,
		issuer:     cfg.Issuer,
		uploader:   cfg.Uploader,
		uploadDir:  cfg.UploadDir,
		frontend:   cfg.FrontendDir,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With("component", "api"),
		baseLogger: cfg.Logger,
		cookie:     cfg.Cookie,
		bcryptCost: cfg.BcryptCost,
		cors:       cfg.CORS,
		session: middleware.NewSessionMiddleware(middleware.SessionConfig{
			Verifier:   cfg.Issuer,
			CookieName: cfg.Cookie.Name,
			Logger:     cfg.Logger,
		}),
		limiter:  middleware.NewRateLimiter(cfg.SubmitRateLimit),
		webhooks: cfg.Webhooks,
		docs: openapi.NewGenerator(
			openapi.WithTitle("formdesk API"),
			openapi.WithVersion(cfg.Version),
			openapi.WithDescription("Form builder: forms, public submissions and exports."),
		),
		now: time.Now,
	}
	h.registerDocs()
	return h
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Instrument(h.metrics, h.baseLogger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(h.cors))
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	if h.uploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.uploadDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(h.jsonContentType)
		r.Use(h.session.Handler)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			h.writeError(w, http.StatusNotFound, "Not found", "not_found")
		})

		r.Get("/docs", h.docs.Handler())

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.handleRegister)
			r.Post("/login", h.handleLogin)
			r.Post("/logout", h.handleLogout)
			r.Get("/me", h.handleMe)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.handleListTemplates)
			r.Get("/{id}", h.handleGetTemplate)
		})

		// Public respondent routes
		r.Get("/forms/public/{publicId}", h.handleGetPublicForm)
		r.With(h.limiter.Handler).Post("/submissions/{publicId}", h.handleSubmit)
		r.With(h.limiter.Handler).Post("/submissions/public/{publicId}", h.handleSubmit)

		// Owner routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.logger))

			r.Route("/forms", func(r chi.Router) {
				r.Get("/", h.handleListForms)
				r.Post("/", h.handleCreateForm)
				r.Get("/{id}", h.handleGetForm)
				r.Put("/{id}", h.handleUpdateForm)
				r.Patch("/{id}", h.handleUpdateForm)
				r.Delete("/{id}", h.handleDeleteForm)
			})

			r.Get("/submissions/form/{formId}", h.handleListSubmissions)
			r.Get("/submissions/export/{formId}/{type}", h.handleExport)
			r.Get("/submissions/stats/{formId}", h.handleStats)
		})
	})

	if h.frontend != "" {
		r.NotFound(FrontendHandler(h.frontend).ServeHTTP)
	}

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json. Handlers that
// write another type override it.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := chimw.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "check", "database", "error", err)
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	middleware.WriteError(w, status, message, code)
}

// writeValidation renders err as a 400 with per-key details when it is a
// domain.ValidationErrors, and as a plain 400 otherwise.
func (h *Handler) writeValidation(w http.ResponseWriter, err error) {
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Code:    "validation_error",
			Details: verrs,
		})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
}

// internalError logs err and writes a 500 that does not leak it.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error("request failed",
		"op", op,
		"path", r.URL.Path,
		"request_id", chimw.GetReqID(r.Context()),
		"error", err,
	)
	h.writeError(w, http.StatusInternalServerError, "Internal server error", "internal_error")
}

// decodeJSON reads a JSON body into v, writing a 400 on failure.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, domain.ErrMaxSubmissions) {
			h.writeValidation(w, domain.ValidationErrors{"maxSubmissions": err.Error()})
			return false
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return false
	}
	return true
}

// listOptions reads limit and offset query parameters.
// listOptions reads ?limit and ?offset. paged is false when neither is given.
func listOptions(r *http.Request) (opts store.ListOptions, paged bool) {
	opts = store.DefaultListOptions()
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		opts.Limit = v
		paged = true
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		opts.Offset = v
		paged = true
	}
	return opts.Normalize(), paged
}

func isNotFound(err error) bool {
	return store.IsNotFound(err)
}
