package httpmiddleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client rate limiter.
type RateLimitConfig struct {
	// RPS is the sustained number of requests allowed per second per client.
	RPS float64

	// Burst is how many requests a client may issue at once before the
	// sustained rate applies.
	Burst int

	// TTL is how long an idle client's bucket is kept before eviction.
	TTL time.Duration
}

// tokenBucket is a classic refilling bucket. Tokens accrue continuously at
// the configured rate up to the burst capacity.
type tokenBucket struct {
	tokens   float64
	lastSeen time.Time
}

type rateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*tokenBucket
	now     func() time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RPS)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 3 * time.Minute
	}
	return &rateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*tokenBucket),
		now:     time.Now,
	}
}

// allow reports whether the client identified by key may proceed, consuming
// one token when it can.
func (l *rateLimiter) allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: float64(l.cfg.Burst), lastSeen: now}
		l.buckets[key] = b
	} else {
		elapsed := now.Sub(b.lastSeen).Seconds()
		b.tokens += elapsed * l.cfg.RPS
		if limit := float64(l.cfg.Burst); b.tokens > limit {
			b.tokens = limit
		}
		b.lastSeen = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evictIdle drops buckets not seen within the TTL.
func (l *rateLimiter) evictIdle() {
	cutoff := l.now().Add(-l.cfg.TTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// RateLimit returns a middleware limiting each client IP to the configured
// request rate. Over-limit requests receive 429 with a Retry-After hint.
// Idle client buckets are evicted in the background until stop is closed.
func RateLimit(cfg RateLimitConfig, stop <-chan struct{}) Middleware {
	l := newRateLimiter(cfg)

	go func() {
		t := time.NewTicker(l.cfg.TTL)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				l.evictIdle()
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !l.allow(key) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the originating address, preferring X-Forwarded-For when
// present so limits apply per client behind a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
