package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// CORSConfig lists the browser origins allowed to call the API with
// credentials.
type CORSConfig struct {
	// FrontendOrigin is the builder UI, e.g. http://localhost:3000.
	FrontendOrigin string
	// AllowedOrigins are further exact origins.
	AllowedOrigins []string
	// AllowedSuffixes admit any origin whose host ends with one of them,
	// e.g. ".vercel.app" for preview deployments.
	AllowedSuffixes []string
}

const (
	corsMethods = "GET, HEAD, PUT, PATCH, POST, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization"
)

// CORS answers preflight requests with 204 and echoes allowed origins with
// credentials enabled. Requests without an Origin header pass untouched;
// disallowed origins get no CORS headers.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowed := map[string]bool{
		"http://localhost:3000":  true,
		"https://localhost:3000": true,
	}
	if cfg.FrontendOrigin != "" {
		allowed[strings.TrimRight(cfg.FrontendOrigin, "/")] = true
	}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	suffixes := make([]string, 0, len(cfg.AllowedSuffixes))
	for _, s := range cfg.AllowedSuffixes {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			suffixes = append(suffixes, s)
		}
	}

	originAllowed := func(origin string) bool {
		if allowed[origin] {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Hostname() == "" {
			return false
		}
		host := strings.ToLower(u.Hostname())
		for _, s := range suffixes {
			if strings.HasSuffix(host, s) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			if originAllowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if originAllowed(origin) {
					w.Header().Set("Access-Control-Allow-Methods", corsMethods)
					w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
