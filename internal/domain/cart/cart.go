// Package cart implements the per-session reservation cart: a collection of
// time-boxed stock claims against the shared inventory ledger.
package cart

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/localshop/internal/domain/inventory"
	"github.com/xenking/localshop/internal/domain/product"
)

// ReservationTTL is how long a cart item holds its stock claim before it is
// reclaimed. Quantity changes refresh the window; inspection does not.
const ReservationTTL = 15 * time.Minute

var (
	// ErrItemNotFound is returned by RemoveItem when the product is not in
	// the cart. Callers treat it as informational, not fatal.
	ErrItemNotFound = errors.New("item not found in cart")

	// ErrNilProduct is returned by AddItem when no product is given.
	ErrNilProduct = errors.New("invalid product")

	// ErrInvalidQuantity is returned by AddItem for quantities below 1.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Item is a snapshot of one cart entry. Product is the catalog record as it
// was at add time; Total consults the live catalog instead.
type Item struct {
	Product    product.Product
	Quantity   int
	ReservedAt time.Time
	ExpiresAt  time.Time
}

// entry is the internal mutable cart line.
type entry struct {
	prod       product.Product
	quantity   int
	reservedAt time.Time
}

// Cart holds one session's reservations. It is owned by a single session but
// guarded by a mutex since one session may issue concurrent requests.
//
// Expiry is lazy: every operation that reads availability purges expired
// entries first, releasing their ledger claims exactly once.
type Cart struct {
	ledger  *inventory.Ledger
	catalog product.Repository

	mu      sync.Mutex
	entries map[string]*entry

	ttl time.Duration
	now func() time.Time
}

// Option configures a Cart.
type Option func(*Cart)

// WithTTL overrides the reservation window. Used in tests.
func WithTTL(d time.Duration) Option {
	return func(c *Cart) { c.ttl = d }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cart) { c.now = now }
}

// New creates an empty cart bound to the shared ledger and catalog.
func New(ledger *inventory.Ledger, catalog product.Repository, opts ...Option) *Cart {
	c := &Cart{
		ledger:  ledger,
		catalog: catalog,
		entries: make(map[string]*entry),
		ttl:     ReservationTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddItem reserves qty units of p and records them in the cart. When the
// product is already present the quantities merge into a single entry and the
// reservation window restarts. On any reservation failure the cart and ledger
// are left untouched and an *inventory.InsufficientStockError is returned.
func (c *Cart) AddItem(p *product.Product, qty int) error {
	if p == nil {
		return ErrNilProduct
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpired()

	available := c.ledger.Available(p.ID)
	if available < qty {
		return &inventory.InsufficientStockError{
			ProductID: p.ID,
			Requested: qty,
			Available: available,
		}
	}

	// Merge into the existing entry when present: reserve only the
	// additional units, then refresh the window for the whole claim.
	if e, ok := c.entries[p.ID]; ok {
		if !c.ledger.Reserve(p.ID, qty) {
			return &inventory.InsufficientStockError{
				ProductID: p.ID,
				Requested: qty,
				Available: c.ledger.Available(p.ID),
			}
		}
		e.quantity += qty
		e.reservedAt = c.now()
		return nil
	}

	if !c.ledger.Reserve(p.ID, qty) {
		return &inventory.InsufficientStockError{
			ProductID: p.ID,
			Requested: qty,
			Available: c.ledger.Available(p.ID),
		}
	}
	c.entries[p.ID] = &entry{
		prod:       *p,
		quantity:   qty,
		reservedAt: c.now(),
	}
	return nil
}

// RemoveItem releases the entry's full reservation back to the ledger and
// deletes it. Returns ErrItemNotFound when the product is not in the cart.
func (c *Cart) RemoveItem(productID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpired()

	e, ok := c.entries[productID]
	if !ok {
		return ErrItemNotFound
	}
	c.ledger.Release(productID, e.quantity)
	delete(c.entries, productID)
	return nil
}

// CleanExpiredItems releases and removes every entry whose reservation window
// has elapsed. It returns the number of entries purged. Safe to call
// repeatedly: each claim is released at most once because the entry is
// removed with it.
func (c *Cart) CleanExpiredItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeExpired()
}

// purgeExpired must be called with c.mu held.
func (c *Cart) purgeExpired() int {
	now := c.now()
	purged := 0
	for id, e := range c.entries {
		if now.After(e.reservedAt.Add(c.ttl)) {
			c.ledger.Release(id, e.quantity)
			delete(c.entries, id)
			purged++
		}
	}
	return purged
}

// Items returns the unexpired cart entries sorted by product ID.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpired()

	items := make([]Item, 0, len(c.entries))
	for _, e := range c.entries {
		items = append(items, Item{
			Product:    e.prod,
			Quantity:   e.quantity,
			ReservedAt: e.reservedAt,
			ExpiresAt:  e.reservedAt.Add(c.ttl),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Product.ID < items[j].Product.ID })
	return items
}

// Len returns the number of unexpired entries.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpired()
	return len(c.entries)
}

// Total sums quantity x current catalog unit price across unexpired entries.
// Prices are read live from the catalog, so the total can drift from what
// was shown at add time. Products the catalog no longer knows fall back to
// their add-time price.
func (c *Cart) Total(ctx context.Context) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpired()

	if len(c.entries) == 0 {
		return decimal.Zero, nil
	}

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	live, err := c.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "get live prices")
	}
	prices := make(map[string]decimal.Decimal, len(live))
	for _, p := range live {
		prices[p.ID] = p.DiscountedPrice()
	}

	total := decimal.Zero
	for id, e := range c.entries {
		price, ok := prices[id]
		if !ok {
			price = e.prod.DiscountedPrice()
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(e.quantity))))
	}
	return total.Round(2), nil
}

// Consume drops the given snapshot quantities from the cart without touching
// the ledger. The checkout pipeline calls this after the snapshot's
// reservations have been consumed by ledger commits; releasing or restocking
// here would double-count the stock. Entries added or grown since the
// snapshot was taken keep the remainder of their claim, so a concurrent
// AddItem during checkout is never orphaned.
func (c *Cart) Consume(items []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		e, ok := c.entries[item.Product.ID]
		if !ok {
			continue
		}
		e.quantity -= item.Quantity
		if e.quantity <= 0 {
			delete(c.entries, item.Product.ID)
		}
	}
}

// ReleaseAll returns every reservation to the ledger and empties the cart.
// This is the abandonment path, used when a session goes away without
// checking out.
func (c *Cart) ReleaseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		c.ledger.Release(id, e.quantity)
	}
	c.entries = make(map[string]*entry)
}

// TTL returns the reservation window applied to items in this cart.
func (c *Cart) TTL() time.Duration {
	return c.ttl
}
