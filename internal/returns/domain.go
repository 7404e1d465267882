package returns

import (
	"errors"
	"fmt"
	"time"
)

// Status enumerates return lifecycle states.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Return reverses a subset of a completed sale's line items. Creation has no
// side effects; stock and the parent sale move only on approval.
type Return struct {
	ID           int64        `json:"id"`
	Number       string       `json:"number"`
	SaleID       int64        `json:"sale_id"`
	Status       Status       `json:"status"`
	Reason       string       `json:"reason"`
	RefundAmount int64        `json:"refund_amount"`
	ApprovedAt   *time.Time   `json:"approved_at,omitempty"`
	CreatedBy    int64        `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Items        []ReturnItem `json:"items"`
}

// ReturnItem references the original sale item. RefundUnitPrice is copied
// from the frozen customUnitPrice, never recomputed from the catalog.
type ReturnItem struct {
	ID              int64 `json:"id"`
	ReturnID        int64 `json:"return_id"`
	SaleItemID      int64 `json:"sale_item_id"`
	ProductID       int64 `json:"product_id"`
	Quantity        int64 `json:"quantity"`
	RefundUnitPrice int64 `json:"refund_unit_price"`
	RefundTotal     int64 `json:"refund_total"`
}

// Domain errors.
var (
	ErrNotFound        = errors.New("returns: return not found")
	ErrSaleNotFound    = errors.New("returns: sale not found")
	ErrSaleItemUnknown = errors.New("returns: sale item does not belong to sale")
	ErrInvalidState    = errors.New("returns: operation not allowed in current state")
	ErrInvalidQuantity = errors.New("returns: quantity must be positive")
	ErrEmptyItems      = errors.New("returns: at least one item required")
	// ErrOverReturn is the sentinel matched by errors.Is.
	ErrOverReturn = errors.New("returns: quantity exceeds remaining returnable quantity")
)

// OverReturnError names the offending sale item and quantities.
type OverReturnError struct {
	SaleItemID int64
	Requested  int64
	Remaining  int64
}

func (e *OverReturnError) Error() string {
	return fmt.Sprintf("returns: sale item %d: requested %d, returnable %d", e.SaleItemID, e.Requested, e.Remaining)
}

func (e *OverReturnError) Unwrap() error { return ErrOverReturn }
