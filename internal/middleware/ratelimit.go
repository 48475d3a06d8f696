package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"instantsaver/internal/metrics"
)

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	// RPS of zero disables limiting.
	RPS   float64
	Burst int
	// SkipPaths are never limited.
	SkipPaths []string
	// IdleTTL drops buckets for clients not seen for this long.
	IdleTTL time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client IP.
type RateLimiter struct {
	config    RateLimitConfig
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a limiter.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &RateLimiter{config: config, visitors: make(map[string]*visitor), lastSweep: time.Now(), now: time.Now}
}

// Allow reports whether the client may proceed now.
func (l *RateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.config.RPS), l.config.Burst)}
		l.visitors[client] = v
	}
	v.lastSeen = now

	if now.Sub(l.lastSweep) > l.config.IdleTTL {
		for k, other := range l.visitors {
			if now.Sub(other.lastSeen) > l.config.IdleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}
	return v.limiter.AllowN(now, 1)
}

// Middleware answers 429 once a client exhausts its bucket.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l.config.RPS <= 0 {
		return next
	}
	skip := make(map[string]bool, len(l.config.SkipPaths))
	for _, p := range l.config.SkipPaths {
		skip[p] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skip[r.URL.Path] || l.Allow(clientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}
		metrics.HTTPRateLimitedTotal.Inc()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": "too many requests",
			"retry": true,
		})
	})
}
