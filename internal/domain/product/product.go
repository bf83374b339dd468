package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Quantity is the
// catalog's view of total stock; at runtime the inventory ledger is
// authoritative and pushes updates back through Repository.UpdateQuantity.
type Product struct {
	ID          string
	Name        string
	Category    string
	Description string
	Price       decimal.Decimal
	Quantity    int
	// DiscountPercentage is an optional flat percentage off the unit price,
	// in the range [0, 100]. Zero means no discount.
	DiscountPercentage decimal.Decimal
}

// Available reports whether the catalog lists any stock for the product.
func (p *Product) Available() bool {
	return p.Quantity > 0
}

// DiscountedPrice returns the unit price after applying the discount
// percentage. Products without a discount return the plain price.
func (p *Product) DiscountedPrice() decimal.Decimal {
	if p.DiscountPercentage.IsZero() || p.DiscountPercentage.IsNegative() {
		return p.Price
	}
	factor := decimal.NewFromInt(1).Sub(p.DiscountPercentage.Div(decimal.NewFromInt(100)))
	return p.Price.Mul(factor).Round(2)
}

// Repository defines catalog operations used by the cart, checkout, and
// inventory components.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	// UpdateQuantity records a new total stock level for a product. The
	// inventory ledger calls this after commits and restocks so the catalog
	// record tracks the authoritative counters.
	UpdateQuantity(ctx context.Context, id string, quantity int) error
}
