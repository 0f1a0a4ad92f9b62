package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/jpotterlabs/pdf2audiobook-base/internal/port"
)

type creditLedger struct {
	db *sqlx.DB
}

// NewCreditLedger creates a PostgreSQL-backed CreditLedger over users.credit_balance.
func NewCreditLedger(db *sqlx.DB) port.CreditLedger {
	return &creditLedger{db: db}
}

// Deduct debits amount in a single conditional UPDATE, so concurrent jobs for
// one user cannot overdraw the balance.
func (l *creditLedger) Deduct(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return true, nil
	}
	result, err := l.db.ExecContext(ctx,
		`UPDATE users SET credit_balance = credit_balance - $1, updated_at = NOW()
		WHERE id = $2 AND credit_balance >= $1`,
		amount, userID)
	if err != nil {
		return false, fmt.Errorf("creditLedger.Deduct: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
