package sales

import (
	"errors"
	"fmt"
	"time"
)

// Status enumerates sale lifecycle states.
type Status string

const (
	// StatusDraft holds line items only; no stock or financial effects yet.
	StatusDraft Status = "DRAFT"
	// StatusCompleted is a committed, financially frozen sale.
	StatusCompleted Status = "COMPLETED"
	// StatusCancelled is reachable from DRAFT only.
	StatusCancelled Status = "CANCELLED"
	// StatusReturned marks a completed sale with at least one approved return.
	StatusReturned Status = "RETURNED"
)

// PaymentMethod enumerates tender instruments.
type PaymentMethod string

const (
	MethodCash PaymentMethod = "CASH"
	MethodCard PaymentMethod = "CARD"
	MethodDebt PaymentMethod = "DEBT"
)

// Sale aggregates line items, payments and an optional debt. Financial fields
// stay zero while DRAFT and are frozen once COMPLETED.
type Sale struct {
	ID                 int64        `json:"id"`
	Number             string       `json:"number"`
	Status             Status       `json:"status"`
	Subtotal           int64        `json:"subtotal"`
	TotalDiscount      int64        `json:"total_discount"`
	GrandTotal         int64        `json:"grand_total"`
	GrossProfit        int64        `json:"gross_profit"`
	NetProfit          int64        `json:"net_profit"`
	CompletedAt        *time.Time   `json:"completed_at,omitempty"`
	CancelledAt        *time.Time   `json:"cancelled_at,omitempty"`
	CancellationReason *string      `json:"cancellation_reason,omitempty"`
	CreatedBy          int64        `json:"created_by"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	Items              []SaleItem   `json:"items"`
	Payments           []Payment    `json:"payments,omitempty"`
	Debt               *DebtSummary `json:"debt,omitempty"`
}

// SaleItem snapshots the catalog at the moment of sale. ProductID is a weak
// reference kept for traceability; the product may later be deleted.
type SaleItem struct {
	ID              int64     `json:"id"`
	SaleID          int64     `json:"sale_id"`
	ProductID       int64     `json:"product_id"`
	ProductName     string    `json:"product_name"`
	CategoryName    string    `json:"category_name"`
	Unit            string    `json:"unit"`
	BaseUnitPrice   int64     `json:"base_unit_price"`
	CustomUnitPrice int64     `json:"custom_unit_price"`
	PurchasePrice   int64     `json:"purchase_price"`
	Quantity        int64     `json:"quantity"`
	BaseTotal       int64     `json:"base_total"`
	CustomTotal     int64     `json:"custom_total"`
	DiscountAmount  int64     `json:"discount_amount"`
	CreatedAt       time.Time `json:"created_at"`
}

// Payment is one settled tender row. DebtID is set for payments collected
// against the sale's debt after completion.
type Payment struct {
	ID        int64         `json:"id"`
	SaleID    int64         `json:"sale_id"`
	DebtID    *int64        `json:"debt_id,omitempty"`
	Method    PaymentMethod `json:"method"`
	Amount    int64         `json:"amount"`
	Note      string        `json:"note,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Tender is one requested payment instrument amount.
type Tender struct {
	Method PaymentMethod
	Amount int64
}

// Debtor identifies the customer behind a DEBT tender.
type Debtor struct {
	Name  string
	Phone string
}

// DebtSummary is the sale-side view of its debt.
type DebtSummary struct {
	ID              int64  `json:"id"`
	OriginalAmount  int64  `json:"original_amount"`
	RemainingAmount int64  `json:"remaining_amount"`
	Status          string `json:"status"`
	DebtorName      string `json:"debtor_name"`
	DebtorPhone     string `json:"debtor_phone"`
}

// Domain errors.
var (
	ErrNotFound        = errors.New("sales: sale not found")
	ErrInvalidState    = errors.New("sales: operation not allowed in current state")
	ErrInvalidQuantity = errors.New("sales: quantity must be positive")
	ErrInvalidAmount   = errors.New("sales: tender amount must be positive")
	ErrInvalidDiscount = errors.New("sales: discount must be between zero and the line total")
	ErrUnknownMethod   = errors.New("sales: unknown payment method")
	ErrDebtorRequired  = errors.New("sales: debtor name and phone required for debt tender")
	// ErrUnbalancedPayment is the sentinel matched by errors.Is.
	ErrUnbalancedPayment = errors.New("sales: tenders do not balance grand total")
)

// UnbalancedPaymentError carries the exact mismatch.
type UnbalancedPaymentError struct {
	Want int64
	Got  int64
}

func (e *UnbalancedPaymentError) Error() string {
	return fmt.Sprintf("sales: tenders sum to %d, grand total is %d", e.Got, e.Want)
}

func (e *UnbalancedPaymentError) Unwrap() error { return ErrUnbalancedPayment }

// totals holds recomputed financials. The invariants
// grandTotal = subtotal - totalDiscount and
// netProfit = grossProfit - totalDiscount hold by construction.
type totals struct {
	Subtotal      int64
	TotalDiscount int64
	GrandTotal    int64
	GrossProfit   int64
	NetProfit     int64
}

// computeTotals derives sale financials from frozen snapshot fields only.
func computeTotals(items []SaleItem) totals {
	var t totals
	for _, it := range items {
		t.Subtotal += it.CustomTotal
		t.TotalDiscount += it.DiscountAmount
		t.GrossProfit += (it.CustomUnitPrice - it.PurchasePrice) * it.Quantity
	}
	t.GrandTotal = t.Subtotal - t.TotalDiscount
	t.NetProfit = t.GrossProfit - t.TotalDiscount
	return t
}
