package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/localshop/internal/domain/customer"
	"github.com/xenking/localshop/internal/domain/product"
)

// Builder assembles an Order step by step. Setters are fluent; validation
// happens in Build, which reports the first problem encountered.
type Builder struct {
	id       string
	customer *customer.Customer
	items    []Item
	err      error
}

// NewBuilder returns an empty order builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// SetID sets the order identifier.
func (b *Builder) SetID(id string) *Builder {
	b.id = id
	return b
}

// SetCustomer sets the ordering customer.
func (b *Builder) SetCustomer(c *customer.Customer) *Builder {
	b.customer = c
	return b
}

// AddItem appends a line item, freezing the product's current effective unit
// price into the line subtotal. Invalid items poison the builder and surface
// from Build.
func (b *Builder) AddItem(p *product.Product, quantity int) *Builder {
	if b.err != nil {
		return b
	}
	if p == nil {
		b.err = &InvalidStateError{Reason: "order item requires a product"}
		return b
	}
	if quantity <= 0 {
		b.err = &InvalidStateError{Reason: fmt.Sprintf("quantity must be positive for product %s", p.ID)}
		return b
	}
	unit := p.DiscountedPrice()
	b.items = append(b.items, Item{
		Product:  *p,
		Quantity: quantity,
		Subtotal: unit.Mul(decimal.NewFromInt(int64(quantity))),
	})
	return b
}

// Build validates required fields and assembles the order in PENDING state,
// computing subtotal, tax, and total.
func (b *Builder) Build() (*Order, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.id == "" {
		return nil, &InvalidStateError{Reason: "order ID is required"}
	}
	if b.customer == nil {
		return nil, &InvalidStateError{Reason: "customer is required"}
	}
	if len(b.items) == 0 {
		return nil, &InvalidStateError{Reason: "order requires at least one item"}
	}

	subtotal := decimal.Zero
	for _, item := range b.items {
		subtotal = subtotal.Add(item.Subtotal)
	}
	tax := subtotal.Mul(TaxRate).Round(2)
	total := subtotal.Add(tax).Round(2)

	return &Order{
		ID:        b.id,
		Customer:  b.customer,
		Items:     b.items,
		Subtotal:  subtotal.Round(2),
		Tax:       tax,
		Total:     total,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}, nil
}

// ShipmentBuilder assembles a Shipment. The carrier defaults to
// DefaultCarrier and the tracking number is generated at Build time.
type ShipmentBuilder struct {
	id      string
	order   *Order
	address string
	carrier string
}

// NewShipmentBuilder returns a shipment builder with the default carrier.
func NewShipmentBuilder() *ShipmentBuilder {
	return &ShipmentBuilder{carrier: DefaultCarrier}
}

// SetID sets the shipment identifier.
func (b *ShipmentBuilder) SetID(id string) *ShipmentBuilder {
	b.id = id
	return b
}

// SetOrder binds the shipment to an order.
func (b *ShipmentBuilder) SetOrder(o *Order) *ShipmentBuilder {
	b.order = o
	return b
}

// SetDeliveryAddress sets the destination address.
func (b *ShipmentBuilder) SetDeliveryAddress(address string) *ShipmentBuilder {
	b.address = address
	return b
}

// SetCarrier overrides the default carrier.
func (b *ShipmentBuilder) SetCarrier(carrier string) *ShipmentBuilder {
	b.carrier = carrier
	return b
}

// Build validates required fields and assembles the shipment in PENDING
// state. Building a shipment has no side effects beyond the value itself.
func (b *ShipmentBuilder) Build() (*Shipment, error) {
	if b.id == "" {
		return nil, &InvalidStateError{Reason: "shipment ID is required"}
	}
	if b.order == nil {
		return nil, &InvalidStateError{Reason: "order is required"}
	}
	if b.address == "" {
		return nil, &InvalidStateError{Reason: "delivery address is required"}
	}
	return &Shipment{
		ID:              b.id,
		Order:           b.order,
		DeliveryAddress: b.address,
		TrackingNumber:  newTrackingNumber(),
		Carrier:         b.carrier,
		Status:          ShipmentPending,
	}, nil
}

// InvoiceBuilder assembles an Invoice snapshot.
type InvoiceBuilder struct {
	id       string
	order    *Order
	customer *customer.Customer
	shipment *Shipment
}

// NewInvoiceBuilder returns an empty invoice builder.
func NewInvoiceBuilder() *InvoiceBuilder {
	return &InvoiceBuilder{}
}

// SetID sets the invoice identifier.
func (b *InvoiceBuilder) SetID(id string) *InvoiceBuilder {
	b.id = id
	return b
}

// SetOrder binds the invoice to an order.
func (b *InvoiceBuilder) SetOrder(o *Order) *InvoiceBuilder {
	b.order = o
	return b
}

// SetCustomer binds the invoice to a customer.
func (b *InvoiceBuilder) SetCustomer(c *customer.Customer) *InvoiceBuilder {
	b.customer = c
	return b
}

// SetShipment attaches the shipment reference. Optional.
func (b *InvoiceBuilder) SetShipment(s *Shipment) *InvoiceBuilder {
	b.shipment = s
	return b
}

// Build validates that order and customer are present and assembles the
// invoice.
func (b *InvoiceBuilder) Build() (*Invoice, error) {
	if b.id == "" {
		return nil, &InvalidStateError{Reason: "invoice ID is required"}
	}
	if b.order == nil {
		return nil, &InvalidStateError{Reason: "order is required"}
	}
	if b.customer == nil {
		return nil, &InvalidStateError{Reason: "customer is required"}
	}
	return &Invoice{
		ID:       b.id,
		Order:    b.order,
		Customer: b.customer,
		Shipment: b.shipment,
		IssuedAt: time.Now(),
	}, nil
}
