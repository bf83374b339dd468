package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/localshop/internal/domain/customer"
)

const (
	getCustomerSQL = `SELECT id, username, name, email, phone, address
	FROM customers WHERE username = $1`

	upsertCustomerSQL = `INSERT INTO customers (id, username, name, email, phone, address)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (username) DO UPDATE SET
		name = EXCLUDED.name,
		email = EXCLUDED.email,
		phone = EXCLUDED.phone,
		address = EXCLUDED.address`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// GetByUsername returns the customer account for a username, or
// customer.ErrNotFound when none exists.
func (r *CustomerRepository) GetByUsername(ctx context.Context, username string) (*customer.Customer, error) {
	row := r.pool.QueryRow(ctx, getCustomerSQL, username)

	var c customer.Customer
	err := row.Scan(&c.ID, &c.Username, &c.Name, &c.Email, &c.Phone, &c.Address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %q: %w", username, err)
	}
	return &c, nil
}

// Upsert inserts or updates a customer account keyed by username.
func (r *CustomerRepository) Upsert(ctx context.Context, c *customer.Customer) error {
	_, err := r.pool.Exec(ctx, upsertCustomerSQL,
		c.ID, c.Username, c.Name, c.Email, c.Phone, c.Address,
	)
	if err != nil {
		return fmt.Errorf("upserting customer %q: %w", c.Username, err)
	}
	return nil
}
