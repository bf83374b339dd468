// Package customer holds the customer account record and its order history.
package customer

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer is an account that can place orders. The history slices are
// appended to by the checkout pipeline after a successful order and are
// guarded by an internal mutex since checkouts for the same account may
// arrive on concurrent requests.
type Customer struct {
	ID       string
	Username string
	Name     string
	Email    string
	Phone    string
	Address  string

	mu       sync.Mutex
	orders   []string
	invoices []string
}

// RecordOrder appends an order ID to the customer's history.
func (c *Customer) RecordOrder(orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders = append(c.orders, orderID)
}

// RecordInvoice appends an invoice ID to the customer's history.
func (c *Customer) RecordInvoice(invoiceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invoices = append(c.invoices, invoiceID)
}

// OrderHistory returns a copy of the customer's order IDs in placement order.
func (c *Customer) OrderHistory() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.orders))
	copy(out, c.orders)
	return out
}

// Invoices returns a copy of the customer's invoice IDs.
func (c *Customer) Invoices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.invoices))
	copy(out, c.invoices)
	return out
}

// Repository defines persistence operations for customer accounts.
type Repository interface {
	GetByUsername(ctx context.Context, username string) (*Customer, error)
	Upsert(ctx context.Context, c *Customer) error
}
