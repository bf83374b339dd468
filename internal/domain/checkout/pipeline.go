// Package checkout implements the order-commit pipeline: the ordered sequence
// of validation, order construction, payment, stock commit, and fulfillment
// steps that turns a reservation cart into a durable order.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/localshop/internal/domain/cart"
	"github.com/xenking/localshop/internal/domain/customer"
	"github.com/xenking/localshop/internal/domain/inventory"
	"github.com/xenking/localshop/internal/domain/order"
	"github.com/xenking/localshop/internal/domain/product"
)

// OrderCompleted is the event delivered to subscribers after a checkout
// fully commits.
type OrderCompleted struct {
	Order       *order.Order
	Invoice     *order.Invoice
	CompletedAt time.Time
}

// Subscriber receives completed-order events. Delivery is synchronous, in
// registration order, best-effort: a panicking subscriber is logged and
// skipped, never rolling back the committed order.
type Subscriber func(OrderCompleted)

// Pipeline orchestrates checkout against the shared ledger and the
// persistence collaborators.
type Pipeline struct {
	ledger    *inventory.Ledger
	catalog   product.Repository
	orders    order.Repository
	shipments order.ShipmentRepository
	invoices  order.InvoiceRepository
	lg        *zap.Logger

	mu          sync.Mutex
	subscribers []Subscriber
}

// NewPipeline creates a checkout pipeline with the required collaborators.
func NewPipeline(
	ledger *inventory.Ledger,
	catalog product.Repository,
	orders order.Repository,
	shipments order.ShipmentRepository,
	invoices order.InvoiceRepository,
	lg *zap.Logger,
) *Pipeline {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Pipeline{
		ledger:    ledger,
		catalog:   catalog,
		orders:    orders,
		shipments: shipments,
		invoices:  invoices,
		lg:        lg,
	}
}

// Subscribe registers a completed-order subscriber. Subscribers are notified
// in registration order.
func (p *Pipeline) Subscribe(s Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, s)
}

// Process runs the full checkout for one cart. On success it returns the
// invoice; on failure one of the typed errors:
//
//   - *inventory.InsufficientStockError when stock re-validation fails,
//   - *PaymentFailedError when the charge is declined (reservations kept),
//   - *order.InvalidStateError for precondition violations, or with
//     Internal set when a post-payment step fails and the state cannot be
//     locally repaired.
//
// No ledger mutation happens before the post-payment commit step.
func (p *Pipeline) Process(ctx context.Context, c *cart.Cart, cust *customer.Customer, payment PaymentMethod) (*order.Invoice, error) {
	// Step 1: preconditions.
	switch {
	case c == nil:
		return nil, &order.InvalidStateError{Reason: "cart is required"}
	case cust == nil:
		return nil, &order.InvalidStateError{Reason: "customer is required"}
	case payment == nil:
		return nil, &order.InvalidStateError{Reason: "payment method is required"}
	}

	// Steps 2-3: purge expired claims, then require a non-empty cart.
	c.CleanExpiredItems()
	items := c.Items()
	if len(items) == 0 {
		return nil, &order.InvalidStateError{Reason: "cart is empty"}
	}

	// Step 4: stock re-validation, read-only. A concurrent commit elsewhere
	// may have shrunk totals below what this cart holds.
	for _, item := range items {
		available := p.ledger.Available(item.Product.ID)
		if available < item.Quantity {
			return nil, &inventory.InsufficientStockError{
				ProductID: item.Product.ID,
				Requested: item.Quantity,
				Available: available,
			}
		}
	}

	// Step 5: build the order at checkout-time catalog prices.
	o, err := p.buildOrder(ctx, items, cust)
	if err != nil {
		return nil, err
	}

	// Step 6: confirm.
	if err := o.Confirm(); err != nil {
		return nil, err
	}

	// Step 7: charge the customer. No ledger lock is held here, so a slow
	// gateway cannot starve other sessions. On decline the reservations stay
	// with the cart for a retry.
	paid, err := payment.ProcessPayment(ctx, o.Total)
	if err != nil || !paid {
		if err != nil {
			p.lg.Warn("payment collaborator error",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		}
		return nil, &PaymentFailedError{Amount: o.Total}
	}

	if err := p.orders.Create(ctx, o); err != nil {
		return nil, p.inconsistent(o.ID, errors.Wrap(err, "persist order"))
	}

	// Step 8: consume the reserved stock. Payment already succeeded, so a
	// failure here leaves money taken and stock unmoved: the one state the
	// pipeline cannot repair locally. Surface it loudly.
	for _, item := range items {
		if !p.ledger.Commit(ctx, item.Product.ID, item.Quantity) {
			return nil, p.inconsistent(o.ID,
				errors.Errorf("stock commit failed for product %s (qty %d)", item.Product.ID, item.Quantity))
		}
	}

	// Step 9: fulfillment records.
	shipment, err := order.NewShipmentBuilder().
		SetID(newShipmentID()).
		SetOrder(o).
		SetDeliveryAddress(cust.Address).
		Build()
	if err != nil {
		return nil, p.inconsistent(o.ID, errors.Wrap(err, "build shipment"))
	}
	shipment.UpdateStatus(order.ShipmentConfirmed)

	if err := p.shipments.Create(ctx, shipment); err != nil {
		return nil, p.inconsistent(o.ID, errors.Wrap(err, "persist shipment"))
	}

	invoice, err := o.GenerateInvoice(newInvoiceID(), shipment)
	if err != nil {
		return nil, p.inconsistent(o.ID, errors.Wrap(err, "build invoice"))
	}
	if err := p.invoices.Create(ctx, invoice); err != nil {
		return nil, p.inconsistent(o.ID, errors.Wrap(err, "persist invoice"))
	}

	// Step 10: customer history.
	cust.RecordOrder(o.ID)
	cust.RecordInvoice(invoice.ID)

	// Step 11: drop exactly the snapshot's entries. Their reservations were
	// consumed by the commits above; releasing or restocking here would
	// double-count stock. Anything added to the cart since the snapshot keeps
	// its claim for the next checkout.
	c.Consume(items)

	// Step 12: notify.
	p.notify(OrderCompleted{
		Order:       o,
		Invoice:     invoice,
		CompletedAt: time.Now(),
	})

	return invoice, nil
}

// buildOrder constructs the order from cart items, charging the current
// catalog price. Products the catalog no longer lists keep their add-time
// snapshot price.
func (p *Pipeline) buildOrder(ctx context.Context, items []cart.Item, cust *customer.Customer) (*order.Order, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.Product.ID
	}
	live, err := p.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get checkout prices")
	}
	byID := make(map[string]*product.Product, len(live))
	for i := range live {
		byID[live[i].ID] = &live[i]
	}

	b := order.NewBuilder().
		SetID(newOrderID()).
		SetCustomer(cust)
	for _, item := range items {
		prod, ok := byID[item.Product.ID]
		if !ok {
			snapshot := item.Product
			prod = &snapshot
		}
		b.AddItem(prod, item.Quantity)
	}
	return b.Build()
}

// inconsistent logs a post-payment failure and wraps it as an internal
// invalid-state error so operational alerting can tell it apart from
// ordinary business failures.
func (p *Pipeline) inconsistent(orderID string, err error) error {
	p.lg.Error("checkout inconsistent after payment",
		zap.String("order_id", orderID),
		zap.Error(err),
	)
	return &order.InvalidStateError{
		Reason:   fmt.Sprintf("order %s: %v", orderID, err),
		Internal: true,
	}
}

func (p *Pipeline) notify(event OrderCompleted) {
	p.mu.Lock()
	subs := make([]Subscriber, len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.Unlock()

	for _, s := range subs {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					p.lg.Error("order subscriber panicked",
						zap.String("order_id", event.Order.ID),
						zap.Any("panic", rec),
					)
				}
			}()
			s(event)
		}()
	}
}

func newOrderID() string    { return "ORD-" + shortID() }
func newShipmentID() string { return "SHP-" + shortID() }
func newInvoiceID() string  { return "INV-" + shortID() }

// shortID is the first UUID group, uppercased: enough entropy for human-facing
// references while staying readable on an invoice.
func shortID() string {
	return strings.ToUpper(uuid.New().String()[:8])
}
