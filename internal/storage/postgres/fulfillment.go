package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/localshop/internal/domain/order"
)

const (
	createShipmentSQL = `INSERT INTO shipments (id, order_id, delivery_address, tracking_number, carrier, status, dispatched_at, delivered_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	createInvoiceSQL = `INSERT INTO invoices (id, order_id, customer_id, shipment_id, issued_at)
	VALUES ($1, $2, $3, $4, $5)`
)

var (
	_ order.ShipmentRepository = (*ShipmentRepository)(nil)
	_ order.InvoiceRepository  = (*InvoiceRepository)(nil)
)

// ShipmentRepository implements order.ShipmentRepository backed by PostgreSQL.
type ShipmentRepository struct {
	pool *pgxpool.Pool
}

// NewShipmentRepository returns a ShipmentRepository that uses the given pool.
func NewShipmentRepository(pool *pgxpool.Pool) *ShipmentRepository {
	return &ShipmentRepository{pool: pool}
}

// Create persists a new shipment.
func (r *ShipmentRepository) Create(ctx context.Context, s *order.Shipment) error {
	_, err := r.pool.Exec(ctx, createShipmentSQL,
		s.ID, s.Order.ID, s.DeliveryAddress, s.TrackingNumber, s.Carrier, string(s.Status),
		s.DispatchedAt, s.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("creating shipment %q: %w", s.ID, err)
	}
	return nil
}

// InvoiceRepository implements order.InvoiceRepository backed by PostgreSQL.
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository returns an InvoiceRepository that uses the given pool.
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

// Create persists a new invoice snapshot.
func (r *InvoiceRepository) Create(ctx context.Context, inv *order.Invoice) error {
	var shipmentID *string
	if inv.Shipment != nil {
		shipmentID = &inv.Shipment.ID
	}

	_, err := r.pool.Exec(ctx, createInvoiceSQL,
		inv.ID, inv.Order.ID, inv.Customer.ID, shipmentID, inv.IssuedAt,
	)
	if err != nil {
		return fmt.Errorf("creating invoice %q: %w", inv.ID, err)
	}
	return nil
}
