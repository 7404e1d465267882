package inventory

import (
	"context"
	"fmt"
)

// LedgerWriter is the transactional surface the ledger appends through. The
// stock read takes a row lock on the product, so check and write stay
// serialized against concurrent movements on the same product.
type LedgerWriter interface {
	ProductStockForUpdate(ctx context.Context, productID int64) (int64, error)
	AppendEntry(ctx context.Context, entry Entry) (Entry, error)
	SetProductStock(ctx context.Context, productID, qty int64) error
}

// Ledger is the single write-owner of product stock. Every mutation of the
// denormalized stock_quantity goes through one of its methods, each appending
// exactly one immutable ledger row.
type Ledger struct{}

// Decrement removes stock, failing when the product cannot cover the quantity.
func (Ledger) Decrement(ctx context.Context, w LedgerWriter, m Movement) (Entry, error) {
	if m.Quantity <= 0 {
		return Entry{}, ErrInvalidQuantity
	}
	stock, err := w.ProductStockForUpdate(ctx, m.ProductID)
	if err != nil {
		return Entry{}, err
	}
	if m.Quantity > stock {
		return Entry{}, &InsufficientStockError{ProductID: m.ProductID, Requested: m.Quantity, Available: stock}
	}
	return apply(ctx, w, m, stock, -m.Quantity)
}

// Increment adds stock. Over-stock is allowed, so there is no upper bound.
func (Ledger) Increment(ctx context.Context, w LedgerWriter, m Movement) (Entry, error) {
	if m.Quantity <= 0 {
		return Entry{}, ErrInvalidQuantity
	}
	stock, err := w.ProductStockForUpdate(ctx, m.ProductID)
	if err != nil {
		return Entry{}, err
	}
	return apply(ctx, w, m, stock, m.Quantity)
}

// Adjust applies a manual correction. The delta may be negative but must not
// drive stock below zero.
func (Ledger) Adjust(ctx context.Context, w LedgerWriter, productID, delta int64, note string, actorID int64) (Entry, error) {
	if delta == 0 {
		return Entry{}, ErrInvalidQuantity
	}
	stock, err := w.ProductStockForUpdate(ctx, productID)
	if err != nil {
		return Entry{}, err
	}
	if stock+delta < 0 {
		return Entry{}, &InsufficientStockError{ProductID: productID, Requested: -delta, Available: stock}
	}
	m := Movement{ProductID: productID, Type: EntryTypeAdjustment, Note: note, ActorID: actorID}
	return apply(ctx, w, m, stock, delta)
}

func apply(ctx context.Context, w LedgerWriter, m Movement, stockBefore, delta int64) (Entry, error) {
	entry := Entry{
		ProductID:   m.ProductID,
		Type:        m.Type,
		Delta:       delta,
		StockBefore: stockBefore,
		StockAfter:  stockBefore + delta,
		RefType:     m.RefType,
		RefID:       m.RefID,
		Note:        m.Note,
		CreatedBy:   m.ActorID,
	}
	entry, err := w.AppendEntry(ctx, entry)
	if err != nil {
		return Entry{}, fmt.Errorf("append ledger entry: %w", err)
	}
	if err := w.SetProductStock(ctx, m.ProductID, entry.StockAfter); err != nil {
		return Entry{}, fmt.Errorf("set product stock: %w", err)
	}
	return entry, nil
}
