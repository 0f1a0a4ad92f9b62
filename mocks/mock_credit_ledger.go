package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockCreditLedger is a mock implementation of port.CreditLedger.
type MockCreditLedger struct {
	mock.Mock
}

func (m *MockCreditLedger) Deduct(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	args := m.Called(ctx, userID, amount)
	return args.Bool(0), args.Error(1)
}
