package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/formdesk/internal/shell/metrics"
)

// Instrument logs each request and records it in m. The route label is the
// matched chi pattern so ids in paths do not become label values.
func Instrument(m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			route := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			m.ObserveRequest(r.Method, route, status, elapsed)

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case route == "/health" || route == "/metrics":
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
				"request_id", chimw.GetReqID(r.Context()),
				"client_ip", ClientIP(r),
			)
		})
	}
}
