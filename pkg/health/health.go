// Package health exposes liveness and readiness probes for the shop service.
//
// Probes are evaluated on demand when the endpoint is hit, each under its own
// timeout. Results are cached for a short window so aggressive probe intervals
// do not hammer dependencies like the database.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// ProbeFunc checks one component. A nil return means healthy.
type ProbeFunc func(ctx context.Context) error

// probe is a named check with its timeout and a cached last result.
type probe struct {
	name    string
	timeout time.Duration
	check   ProbeFunc

	mu       sync.Mutex
	lastErr  error
	cacheOK  bool
	cacheDue time.Time
}

// run evaluates the probe, serving a cached result when it is still fresh.
func (p *probe) run(ctx context.Context, now time.Time, cacheFor time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cacheOK && now.Before(p.cacheDue) {
		return p.lastErr
	}

	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.check(checkCtx)
	cancel()

	p.lastErr = err
	p.cacheOK = true
	p.cacheDue = now.Add(cacheFor)
	return err
}

// Checker aggregates liveness and readiness probes for a service.
type Checker struct {
	ready atomic.Bool

	// cacheFor bounds how often a probe actually executes.
	cacheFor time.Duration

	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
}

// Option configures a Checker.
type Option func(*Checker)

// WithCacheWindow overrides how long a probe result is served from cache.
func WithCacheWindow(d time.Duration) Option {
	return func(c *Checker) { c.cacheFor = d }
}

// NewChecker creates a Checker. The service starts not ready; call
// SetReady(true) once initialization completes.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{cacheFor: 2 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddLiveness registers a liveness probe, answering "is the process alive".
func (c *Checker) AddLiveness(name string, timeout time.Duration, fn ProbeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveness = append(c.liveness, &probe{name: name, timeout: timeout, check: fn})
}

// AddReadiness registers a readiness probe, answering "can this instance
// serve traffic right now". Database connectivity belongs here.
func (c *Checker) AddReadiness(name string, timeout time.Duration, fn ProbeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readiness = append(c.readiness, &probe{name: name, timeout: timeout, check: fn})
}

// SetReady flips the manual readiness gate. Set false during graceful
// shutdown so the load balancer drains this instance.
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// IsReady reports whether the gate is open and all readiness probes pass.
func (c *Checker) IsReady(ctx context.Context) bool {
	if !c.ready.Load() {
		return false
	}
	return len(c.evaluate(ctx, c.snapshot(&c.readiness))) == 0
}

func (c *Checker) snapshot(src *[]*probe) []*probe {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*probe, len(*src))
	copy(out, *src)
	return out
}

// evaluate runs the given probes and returns a name -> message map of
// failures. An empty map means all passed.
func (c *Checker) evaluate(ctx context.Context, probes []*probe) map[string]string {
	now := time.Now()
	failures := make(map[string]string)
	for _, p := range probes {
		if err := p.run(ctx, now, c.cacheFor); err != nil {
			failures[p.name] = err.Error()
		}
	}
	return failures
}

// probeResponse is the JSON body for probe endpoints.
type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves the /livez route.
func (c *Checker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, c.evaluate(r.Context(), c.snapshot(&c.liveness)))
}

// ReadyEndpoint serves the /readyz route. The manual gate is reported as a
// failure alongside any failing probes.
func (c *Checker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	failures := c.evaluate(r.Context(), c.snapshot(&c.readiness))
	if !c.ready.Load() {
		failures["service"] = "not ready"
	}
	writeProbe(w, failures)
}

func writeProbe(w http.ResponseWriter, failures map[string]string) {
	resp := probeResponse{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
