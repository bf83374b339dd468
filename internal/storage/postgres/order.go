package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/localshop/internal/domain/order"
)

const createOrderSQL = `INSERT INTO orders (id, customer_id, items, subtotal, tax, total, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// orderItemRow is the JSONB shape of one order line. The product name and
// frozen subtotal are denormalized so the row stays meaningful after catalog
// changes.
type orderItemRow struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Create persists a new order. Line items are serialized to JSON for storage
// in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items := make([]orderItemRow, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemRow{
			ProductID: item.Product.ID,
			Name:      item.Product.Name,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	var customerID *string
	if o.Customer != nil {
		customerID = &o.Customer.ID
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, customerID, itemsJSON, o.Subtotal, o.Tax, o.Total, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}
