package debts

import (
	"errors"
	"fmt"
	"time"
)

// Status enumerates debt lifecycle states. Status is always derived from
// remaining vs original amount, never set directly by callers.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
	StatusCancelled     Status = "CANCELLED"
)

// Debt is one open customer obligation, created only as a side effect of a
// sale completion and one-to-one with its sale.
type Debt struct {
	ID              int64      `json:"id"`
	SaleID          int64      `json:"sale_id"`
	DebtorName      string     `json:"debtor_name"`
	DebtorPhone     string     `json:"debtor_phone"`
	OriginalAmount  int64      `json:"original_amount"`
	RemainingAmount int64      `json:"remaining_amount"`
	Status          Status     `json:"status"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Domain errors.
var (
	ErrNotFound       = errors.New("debts: debt not found")
	ErrDuplicateDebt  = errors.New("debts: sale already has a debt")
	ErrInvalidAmount  = errors.New("debts: amount must be positive")
	ErrDebtorRequired = errors.New("debts: debtor name and phone required")
	ErrAlreadySettled = errors.New("debts: debt already settled")
	// ErrOverPayment is the sentinel matched by errors.Is.
	ErrOverPayment = errors.New("debts: payment exceeds remaining amount")
)

// OverPaymentError carries the exact excess.
type OverPaymentError struct {
	DebtID    int64
	Amount    int64
	Remaining int64
}

func (e *OverPaymentError) Error() string {
	return fmt.Sprintf("debts: payment %d exceeds remaining %d on debt %d", e.Amount, e.Remaining, e.DebtID)
}

func (e *OverPaymentError) Unwrap() error { return ErrOverPayment }

// NewOpen builds the debt opened during sale completion: original equals
// remaining and the status starts PENDING.
func NewOpen(saleID, amount int64, debtorName, debtorPhone string) (Debt, error) {
	if amount <= 0 {
		return Debt{}, ErrInvalidAmount
	}
	if debtorName == "" || debtorPhone == "" {
		return Debt{}, ErrDebtorRequired
	}
	return Debt{
		SaleID:          saleID,
		DebtorName:      debtorName,
		DebtorPhone:     debtorPhone,
		OriginalAmount:  amount,
		RemainingAmount: amount,
		Status:          StatusPending,
	}, nil
}

// DeriveStatus is the pure status function of remaining vs original amount.
// CANCELLED is terminal and never derived here.
func DeriveStatus(originalAmount, remainingAmount int64) Status {
	switch {
	case remainingAmount == 0:
		return StatusPaid
	case remainingAmount < originalAmount:
		return StatusPartiallyPaid
	default:
		return StatusPending
	}
}
