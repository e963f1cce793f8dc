package handlers

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"statusgen/internal/logx"
	"statusgen/internal/metrics"
)

// RateLimiterOptions configures the rate limiter.
type RateLimiterOptions struct {
	// Limit is the sustained rate in requests per second.
	Limit rate.Limit
	Burst int
	// ExpiryDuration is how long an idle client's bucket is kept.
	ExpiryDuration time.Duration
	// KeyFunc extracts the limiting key from a request.
	KeyFunc func(*http.Request) string
}

// DefaultRateLimiterOptions limits each client IP to 5 requests per second with
// bursts of 10.
func DefaultRateLimiterOptions() RateLimiterOptions {
	return RateLimiterOptions{
		Limit:          5,
		Burst:          10,
		ExpiryDuration: time.Hour,
		KeyFunc:        remoteIP,
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu      sync.Mutex
	options RateLimiterOptions
	clients map[string]*client
	metrics *metrics.Metrics
}

func NewRateLimiter(m *metrics.Metrics, options ...RateLimiterOptions) *RateLimiter {
	opts := DefaultRateLimiterOptions()
	if len(options) > 0 {
		opts = options[0]
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = remoteIP
	}
	if opts.ExpiryDuration <= 0 {
		opts.ExpiryDuration = time.Hour
	}
	return &RateLimiter{
		options: opts,
		clients: make(map[string]*client),
		metrics: m,
	}
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.options.KeyFunc(r)
		if !l.limiter(key).Allow() {
			log := logx.Ctx(r.Context())
			log.Warn().Str("client", key).Str(logx.FieldPath, r.URL.Path).Msg("rate limit exceeded")
			l.metrics.RateLimited()
			w.Header().Set("Retry-After", "1")
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.options.Burst))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Too many requests. Please try again later."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.options.Limit, l.options.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = time.Now()
	return c.limiter
}

// Cleanup drops buckets idle for longer than the expiry duration.
func (l *RateLimiter) Cleanup(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, c := range l.clients {
		if now.Sub(c.lastSeen) > l.options.ExpiryDuration {
			delete(l.clients, k)
			removed++
		}
	}
	return removed
}

// Run cleans up every minute until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			l.Cleanup(now)
		}
	}
}
