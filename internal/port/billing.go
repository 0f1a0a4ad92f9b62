package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditLedger debits a user's credit balance after a successful conversion.
type CreditLedger interface {
	// Deduct reports false when the balance does not cover amount. A false
	// result never reverses a completed conversion.
	Deduct(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error)
}
