package cart

import (
	"context"
	"sync"
	"time"

	"github.com/xenking/localshop/internal/domain/inventory"
	"github.com/xenking/localshop/internal/domain/product"
)

// Registry maps session IDs to their carts. Carts are created on first use
// and abandoned (reservations released) after sitting idle past the
// configured timeout.
type Registry struct {
	ledger  *inventory.Ledger
	catalog product.Repository
	opts    []Option

	idleTimeout time.Duration
	now         func() time.Time

	mu    sync.Mutex
	carts map[string]*session
}

type session struct {
	cart     *Cart
	lastSeen time.Time
}

// NewRegistry creates a cart registry. New carts are built with the given
// ledger, catalog, and options. Sessions idle longer than idleTimeout are
// swept by Sweep (or the background goroutine started by StartSweeper).
func NewRegistry(ledger *inventory.Ledger, catalog product.Repository, idleTimeout time.Duration, opts ...Option) *Registry {
	return &Registry{
		ledger:      ledger,
		catalog:     catalog,
		opts:        opts,
		idleTimeout: idleTimeout,
		now:         time.Now,
		carts:       make(map[string]*session),
	}
}

// Get returns the cart for a session, creating one on first use. It also
// marks the session as recently active.
func (r *Registry) Get(sessionID string) *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.carts[sessionID]
	if !ok {
		s = &session{cart: New(r.ledger, r.catalog, r.opts...)}
		r.carts[sessionID] = s
	}
	s.lastSeen = r.now()
	return s.cart
}

// Sweep abandons every cart idle past the timeout, releasing its
// reservations, and returns the number of sessions removed.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	var stale []*session
	for id, s := range r.carts {
		if now.Sub(s.lastSeen) > r.idleTimeout {
			stale = append(stale, s)
			delete(r.carts, id)
		}
	}
	r.mu.Unlock()

	// Release outside the registry lock: ReleaseAll takes cart and ledger
	// locks of its own.
	for _, s := range stale {
		s.cart.ReleaseAll()
	}
	return len(stale)
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}
