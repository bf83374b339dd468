// Package order holds the fulfillment value objects (Order, Shipment,
// Invoice) and their validating builders.
package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/localshop/internal/domain/customer"
	"github.com/xenking/localshop/internal/domain/product"
)

// TaxRate is the flat surcharge applied to every order subtotal.
var TaxRate = decimal.RequireFromString("0.10")

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
)

// Order is a durable record of a checkout. Once confirmed it is immutable
// except for downstream status progression.
type Order struct {
	ID        string
	Customer  *customer.Customer
	Items     []Item
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
	Status    Status
	CreatedAt time.Time
}

// Item is one order line. Subtotal freezes the effective unit price at
// build time, decoupled from later catalog price changes.
type Item struct {
	Product  product.Product
	Quantity int
	Subtotal decimal.Decimal
}

// Confirm transitions the order from PENDING to CONFIRMED. Confirming an
// order with no items is an invalid state.
func (o *Order) Confirm() error {
	if len(o.Items) == 0 {
		return &InvalidStateError{Reason: "cannot confirm an empty order"}
	}
	o.Status = StatusConfirmed
	return nil
}

// GenerateInvoice builds an invoice snapshot for a confirmed order.
func (o *Order) GenerateInvoice(invoiceID string, shipment *Shipment) (*Invoice, error) {
	if o.Status != StatusConfirmed {
		return nil, &InvalidStateError{Reason: "order must be confirmed before generating an invoice"}
	}
	return NewInvoiceBuilder().
		SetID(invoiceID).
		SetOrder(o).
		SetCustomer(o.Customer).
		SetShipment(shipment).
		Build()
}
