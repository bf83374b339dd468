package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/localshop/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, category, description, price, quantity, discount_percentage
	FROM products ORDER BY id`

	getProductSQL = `SELECT id, name, category, description, price, quantity, discount_percentage
	FROM products WHERE id = $1`

	getProductsSQL = `SELECT id, name, category, description, price, quantity, discount_percentage
	FROM products WHERE id = ANY($1)`

	updateQuantitySQL = `UPDATE products SET quantity = $2 WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, category, description, price, quantity, discount_percentage)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		category = EXCLUDED.category,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		quantity = EXCLUDED.quantity,
		discount_percentage = EXCLUDED.discount_percentage`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// GetByID returns a single product by its identifier, or product.ErrNotFound
// when no matching product exists.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	row := r.pool.QueryRow(ctx, getProductSQL, id)

	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.Price, &p.Quantity, &p.DiscountPercentage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns the products matching ids in a single query. Missing ids
// are simply absent from the result.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, getProductsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// UpdateQuantity records the ledger's view of total stock on the catalog row.
func (r *ProductRepository) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	_, err := r.pool.Exec(ctx, updateQuantitySQL, id, quantity)
	if err != nil {
		return fmt.Errorf("updating quantity for product %q: %w", id, err)
	}
	return nil
}

// Upsert inserts or replaces a catalog row. Used by the seeding and ingest
// tools.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Category, p.Description, p.Price, p.Quantity, p.DiscountPercentage,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

func scanProducts(rows pgx.Rows) ([]product.Product, error) {
	var products []product.Product
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.Price, &p.Quantity, &p.DiscountPercentage); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading products: %w", err)
	}
	return products, nil
}
