package inventory

import "fmt"

// InsufficientStockError indicates a reservation or validation step asked for
// more units than the ledger can provide. It is recoverable: the caller may
// retry with a lower quantity.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
