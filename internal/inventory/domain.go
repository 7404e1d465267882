package inventory

import (
	"errors"
	"fmt"
	"time"
)

// EntryType enumerates supported stock movements.
type EntryType string

const (
	// EntryTypeSale represents a sale decrement.
	EntryTypeSale EntryType = "SALE"
	// EntryTypeReturn represents a return increment.
	EntryTypeReturn EntryType = "RETURN"
	// EntryTypeAdjustment indicates manual corrections.
	EntryTypeAdjustment EntryType = "ADJUSTMENT"
	// EntryTypeRestock indicates inbound replenishment.
	EntryTypeRestock EntryType = "RESTOCK"
)

// Reference types tying a ledger row to its triggering entity.
const (
	RefTypeSale   = "SALE"
	RefTypeReturn = "RETURN"
)

// Entry is one immutable ledger row. Rows for a product chain: each
// StockBefore equals the previous row's StockAfter, and the product's
// denormalized stock always equals the newest StockAfter.
type Entry struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	Type        EntryType `json:"type"`
	Delta       int64     `json:"delta"`
	StockBefore int64     `json:"stock_before"`
	StockAfter  int64     `json:"stock_after"`
	RefType     string    `json:"ref_type,omitempty"`
	RefID       int64     `json:"ref_id,omitempty"`
	Note        string    `json:"note,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Movement describes a requested stock mutation before it becomes an Entry.
// Quantity is always positive; direction comes from the operation.
type Movement struct {
	ProductID int64
	Quantity  int64
	Type      EntryType
	RefType   string
	RefID     int64
	Note      string
	ActorID   int64
}

// ErrInvalidQuantity indicates a non-positive movement quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrProductNotFound indicates the product row does not exist.
var ErrProductNotFound = errors.New("inventory: product not found")

// ErrInsufficientStock is the sentinel matched by errors.Is for stock shortage.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// InsufficientStockError names the offending product and quantities.
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Replay folds ledger entries over a base stock, reproducing the current
// quantity. Entries must be in creation order.
func Replay(baseStock int64, entries []Entry) int64 {
	stock := baseStock
	for _, e := range entries {
		stock += e.Delta
	}
	return stock
}

// ValidateChain verifies the stock_before/stock_after chaining invariant for
// one product's entries in creation order.
func ValidateChain(baseStock int64, entries []Entry) error {
	prev := baseStock
	for _, e := range entries {
		if e.StockBefore != prev {
			return fmt.Errorf("inventory: broken chain at entry %d: stock_before %d, expected %d",
				e.ID, e.StockBefore, prev)
		}
		if e.StockAfter != e.StockBefore+e.Delta {
			return fmt.Errorf("inventory: inconsistent entry %d: %d + %d != %d",
				e.ID, e.StockBefore, e.Delta, e.StockAfter)
		}
		prev = e.StockAfter
	}
	return nil
}
