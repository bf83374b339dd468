package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_WithinBurst(t *testing.T) {
	stop := make(chan struct{})
	defer close(stop)

	handler := RateLimit(RateLimitConfig{RPS: 1, Burst: 5}, stop)(okHandler())

	for i := range 5 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}
}

func TestRateLimit_OverBurst(t *testing.T) {
	stop := make(chan struct{})
	defer close(stop)

	handler := RateLimit(RateLimitConfig{RPS: 1, Burst: 2}, stop)(okHandler())

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:9999"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimit_DifferentIPs(t *testing.T) {
	stop := make(chan struct{})
	defer close(stop)

	handler := RateLimit(RateLimitConfig{RPS: 1, Burst: 1}, stop)(okHandler())

	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req1)
	assert.Equal(t, http.StatusOK, w1.Code)

	// Independent bucket for a second client.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "10.0.0.2:1234"
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusOK, w2.Code)

	// First client again, different source port, same bucket.
	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	req3.RemoteAddr = "10.0.0.1:5678"
	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, req3)
	assert.Equal(t, http.StatusTooManyRequests, w3.Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	stop := make(chan struct{})
	defer close(stop)

	handler := RateLimit(RateLimitConfig{RPS: 1, Burst: 1}, stop)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:4444"
	req.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Same forwarded client behind a different proxy hop is still limited.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "192.168.1.2:5555"
	req2.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
}

func TestRateLimiter_Refill(t *testing.T) {
	l := newRateLimiter(RateLimitConfig{RPS: 2, Burst: 1})
	now := time.Now()
	l.now = func() time.Time { return now }

	require.True(t, l.allow("c"))
	require.False(t, l.allow("c"))

	// Half a second at 2 rps refills one token.
	now = now.Add(500 * time.Millisecond)
	assert.True(t, l.allow("c"))
	assert.False(t, l.allow("c"))
}

func TestRateLimiter_RefillCappedAtBurst(t *testing.T) {
	l := newRateLimiter(RateLimitConfig{RPS: 10, Burst: 2})
	now := time.Now()
	l.now = func() time.Time { return now }

	require.True(t, l.allow("c"))
	require.True(t, l.allow("c"))

	// A long idle period refills to burst, no further.
	now = now.Add(time.Hour)
	assert.True(t, l.allow("c"))
	assert.True(t, l.allow("c"))
	assert.False(t, l.allow("c"))
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	l := newRateLimiter(RateLimitConfig{RPS: 1, Burst: 1, TTL: time.Minute})
	now := time.Now()
	l.now = func() time.Time { return now }

	require.True(t, l.allow("stale"))
	now = now.Add(2 * time.Minute)
	require.True(t, l.allow("fresh"))

	l.evictIdle()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.buckets, "stale")
	assert.Contains(t, l.buckets, "fresh")
}
