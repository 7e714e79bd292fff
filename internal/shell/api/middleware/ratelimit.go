package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures a per-client token bucket.
type RateLimitConfig struct {
	// PerMinute is the sustained number of requests allowed per client.
	PerMinute int
	// Burst is how many requests a client may make at once. Defaults to PerMinute.
	Burst int
	// IdleTTL is how long an idle client's bucket is kept. Defaults to 10 minutes.
	IdleTTL time.Duration
	Logger  *slog.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	lastScan time.Time
	now      func() time.Time
	logger   *slog.Logger
}

// NewRateLimiter creates a limiter. A PerMinute of 0 defaults to 10.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.PerMinute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(cfg.PerMinute)),
		burst:    cfg.Burst,
		idleTTL:  cfg.IdleTTL,
		now:      time.Now,
		logger:   cfg.Logger,
	}
}

// Allow reports whether key may make a request now, and if not, how long
// until it may.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	r := v.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweep drops idle buckets at most once per idleTTL. Caller holds mu.
func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastScan) < l.idleTTL {
		return
	}
	l.lastScan = now
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idleTTL {
			delete(l.visitors, key)
		}
	}
}

// Handler rejects over-limit requests with 429 and a Retry-After header.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		ok, wait := l.Allow(ip)
		if !ok {
			l.logger.Warn("rate limit exceeded", "client_ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			WriteError(w, http.StatusTooManyRequests, "Too many requests, please try again later", "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the host part of the request's remote address. Behind
// chi's RealIP middleware this is the forwarded client address.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
