// Package inventory implements the authoritative stock ledger: per-product
// total and reserved unit counters shared by every shopping session.
package inventory

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// StockWriter receives the new total stock level after the ledger consumes or
// replenishes units. It is how quantity changes propagate back to the catalog
// record. Implementations must tolerate being called concurrently for
// different products.
type StockWriter interface {
	UpdateQuantity(ctx context.Context, productID string, quantity int) error
}

// entry holds the counters for one product. Each entry carries its own lock
// so contention on one product never blocks operations on another.
//
// Invariant: 0 <= reserved <= total after every operation.
type entry struct {
	mu       sync.Mutex
	total    int
	reserved int
}

// Ledger tracks total and reserved stock per product. It is safe for
// concurrent use by multiple sessions; reserve's check-then-act runs as a
// single critical section per product.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*entry

	writer StockWriter // optional catalog write-back
	lg     *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStockWriter attaches a catalog write-back collaborator. After Commit or
// Restock the ledger pushes the new total through the writer, outside any
// entry lock. Writer errors are logged, never propagated: the ledger stays
// the source of truth.
func WithStockWriter(w StockWriter) Option {
	return func(l *Ledger) { l.writer = w }
}

// WithLogger sets the logger used for write-back failures.
func WithLogger(lg *zap.Logger) Option {
	return func(l *Ledger) { l.lg = lg }
}

// NewLedger creates an empty ledger. Seed stock levels with SetStock.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		entries: make(map[string]*entry),
		lg:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// get returns the entry for a product, creating it lazily.
func (l *Ledger) get(productID string) *entry {
	l.mu.RLock()
	e, ok := l.entries[productID]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok = l.entries[productID]; ok {
		return e
	}
	e = &entry{}
	l.entries[productID] = e
	return e
}

// SetStock sets the total stock level for a product, clamping reserved down
// if it would exceed the new total. Used when loading the catalog at startup.
func (l *Ledger) SetStock(productID string, total int) {
	if total < 0 {
		total = 0
	}
	e := l.get(productID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.total = total
	if e.reserved > e.total {
		e.reserved = e.total
	}
}

// Available returns the number of units that can still be reserved:
// max(0, total - reserved). Never negative.
func (l *Ledger) Available(productID string) int {
	e := l.get(productID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return available(e)
}

func available(e *entry) int {
	if a := e.total - e.reserved; a > 0 {
		return a
	}
	return 0
}

// TotalStock returns the total units on hand, reserved or not.
func (l *Ledger) TotalStock(productID string) int {
	e := l.get(productID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total
}

// Reserved returns the units currently claimed by carts.
func (l *Ledger) Reserved(productID string) int {
	e := l.get(productID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reserved
}

// Reserve claims qty units for a cart. It succeeds only when available >= qty
// and performs no mutation otherwise. The availability check and the
// increment happen under the entry lock, so two sessions racing for the last
// unit cannot both win.
func (l *Ledger) Reserve(productID string, qty int) bool {
	if qty <= 0 {
		return false
	}
	e := l.get(productID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if available(e) < qty {
		return false
	}
	e.reserved += qty
	return true
}

// Release returns up to qty reserved units to the available pool. Releasing
// more than is currently reserved clamps at zero, so over-release is
// harmless and idempotent.
func (l *Ledger) Release(productID string, qty int) {
	if qty <= 0 {
		return
	}
	e := l.get(productID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if qty > e.reserved {
		qty = e.reserved
	}
	e.reserved -= qty
}

// Commit permanently consumes qty units after a successful payment,
// decrementing both total and reserved (reserved clamped at zero). It fails
// without mutation when total < qty. The new total is pushed to the catalog
// write-back afterwards, outside the entry lock.
func (l *Ledger) Commit(ctx context.Context, productID string, qty int) bool {
	if qty <= 0 {
		return false
	}
	e := l.get(productID)

	e.mu.Lock()
	if e.total < qty {
		e.mu.Unlock()
		return false
	}
	e.total -= qty
	e.reserved -= qty
	if e.reserved < 0 {
		e.reserved = 0
	}
	newTotal := e.total
	e.mu.Unlock()

	l.writeBack(ctx, productID, newTotal)
	return true
}

// Restock adds amount units of genuinely new stock to the total pool. The
// new total is pushed to the catalog write-back outside the entry lock.
//
// Restock is replenishment only. Abandoned or expired reservations go back
// through Release: their units never left the total, so restocking them too
// would double-count stock.
func (l *Ledger) Restock(ctx context.Context, productID string, amount int) {
	if amount <= 0 {
		return
	}
	e := l.get(productID)

	e.mu.Lock()
	e.total += amount
	newTotal := e.total
	e.mu.Unlock()

	l.writeBack(ctx, productID, newTotal)
}

func (l *Ledger) writeBack(ctx context.Context, productID string, total int) {
	if l.writer == nil {
		return
	}
	if err := l.writer.UpdateQuantity(ctx, productID, total); err != nil {
		l.lg.Warn("catalog stock write-back failed",
			zap.String("product_id", productID),
			zap.Int("total", total),
			zap.Error(err),
		)
	}
}

// Row is one product's counters in a ledger snapshot.
type Row struct {
	ProductID string
	Total     int
	Reserved  int
	Available int
}

// Snapshot returns the current counters for every tracked product, sorted by
// product ID. Each row is read under its entry lock; the snapshot as a whole
// is not atomic across products.
func (l *Ledger) Snapshot() []Row {
	l.mu.RLock()
	ids := make([]string, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	l.mu.RUnlock()
	sort.Strings(ids)

	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		e := l.get(id)
		e.mu.Lock()
		rows = append(rows, Row{
			ProductID: id,
			Total:     e.total,
			Reserved:  e.reserved,
			Available: available(e),
		})
		e.mu.Unlock()
	}
	return rows
}
