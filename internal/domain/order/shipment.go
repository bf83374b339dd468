package order

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// DefaultCarrier is used when a shipment is built without an explicit
// carrier.
const DefaultCarrier = "AUSPOST"

// ShipmentStatus is the delivery lifecycle state of a shipment.
type ShipmentStatus string

const (
	ShipmentPending    ShipmentStatus = "PENDING"
	ShipmentConfirmed  ShipmentStatus = "CONFIRMED"
	ShipmentDispatched ShipmentStatus = "DISPATCHED"
	ShipmentDelivered  ShipmentStatus = "DELIVERED"
)

// Shipment records the delivery of a paid order. Dispatch and delivery
// timestamps are nil until the corresponding transition happens.
type Shipment struct {
	ID              string
	Order           *Order
	DeliveryAddress string
	TrackingNumber  string
	Carrier         string
	Status          ShipmentStatus
	DispatchedAt    *time.Time
	DeliveredAt     *time.Time
}

// UpdateStatus sets the shipment status without touching timestamps.
func (s *Shipment) UpdateStatus(status ShipmentStatus) {
	s.Status = status
}

// Dispatch marks the shipment as handed to the carrier.
func (s *Shipment) Dispatch() {
	now := time.Now()
	s.Status = ShipmentDispatched
	s.DispatchedAt = &now
}

// Deliver marks the shipment as delivered to the customer.
func (s *Shipment) Deliver() {
	now := time.Now()
	s.Status = ShipmentDelivered
	s.DeliveredAt = &now
}

// newTrackingNumber generates a carrier tracking reference.
func newTrackingNumber() string {
	return fmt.Sprintf("TRK-%06d", rand.IntN(1_000_000))
}
