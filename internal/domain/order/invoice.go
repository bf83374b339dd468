package order

import (
	"time"

	"github.com/xenking/localshop/internal/domain/customer"
)

// Invoice is an immutable snapshot tying an order, its customer, and the
// shipment together. Shipment may be nil when invoicing precedes dispatch
// planning.
type Invoice struct {
	ID       string
	Order    *Order
	Customer *customer.Customer
	Shipment *Shipment
	IssuedAt time.Time
}
