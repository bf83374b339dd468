package checkout

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentMethod charges the customer for an order total. The call is
// synchronous; a false result means the charge was declined. Implementations
// must not assume any ledger lock is held.
type PaymentMethod interface {
	ProcessPayment(ctx context.Context, amount decimal.Decimal) (bool, error)
	Name() string
}

// PaymentFailedError indicates the payment collaborator declined or errored.
// The cart keeps its reservations so the customer can retry without
// re-adding items.
type PaymentFailedError struct {
	Amount decimal.Decimal
}

func (e *PaymentFailedError) Error() string {
	return "payment failed for amount " + e.Amount.StringFixed(2)
}

// CreditCard is the stand-in card processor: it approves every charge and
// logs the amount. Real gateways plug in behind the same interface.
type CreditCard struct {
	lg *zap.Logger
}

// NewCreditCard returns a credit card payment method logging through lg.
func NewCreditCard(lg *zap.Logger) *CreditCard {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &CreditCard{lg: lg}
}

func (c *CreditCard) ProcessPayment(_ context.Context, amount decimal.Decimal) (bool, error) {
	c.lg.Info("processing payment", zap.String("amount", amount.StringFixed(2)))
	return true, nil
}

func (c *CreditCard) Name() string { return "Credit Card" }
