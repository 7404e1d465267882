package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	stock   map[int64]int64
	entries []Entry
}

func newFakeWriter(stock map[int64]int64) *fakeWriter {
	return &fakeWriter{stock: stock}
}

func (w *fakeWriter) ProductStockForUpdate(_ context.Context, productID int64) (int64, error) {
	stock, ok := w.stock[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	return stock, nil
}

func (w *fakeWriter) AppendEntry(_ context.Context, entry Entry) (Entry, error) {
	entry.ID = int64(len(w.entries) + 1)
	entry.CreatedAt = time.Now()
	w.entries = append(w.entries, entry)
	return entry, nil
}

func (w *fakeWriter) SetProductStock(_ context.Context, productID, qty int64) error {
	w.stock[productID] = qty
	return nil
}

func TestLedgerDecrement(t *testing.T) {
	w := newFakeWriter(map[int64]int64{1: 10})
	var ledger Ledger

	entry, err := ledger.Decrement(context.Background(), w, Movement{
		ProductID: 1, Quantity: 3, Type: EntryTypeSale,
		RefType: RefTypeSale, RefID: 42, Note: "S-20260828-0001", ActorID: 7,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(-3), entry.Delta)
	assert.Equal(t, int64(10), entry.StockBefore)
	assert.Equal(t, int64(7), entry.StockAfter)
	assert.Equal(t, RefTypeSale, entry.RefType)
	assert.Equal(t, int64(42), entry.RefID)
	assert.Equal(t, int64(7), w.stock[1])
}

func TestLedgerDecrementInsufficient(t *testing.T) {
	w := newFakeWriter(map[int64]int64{1: 2})
	var ledger Ledger

	_, err := ledger.Decrement(context.Background(), w, Movement{
		ProductID: 1, Quantity: 3, Type: EntryTypeSale,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(3), ise.Requested)
	assert.Equal(t, int64(2), ise.Available)

	// Nothing written.
	assert.Empty(t, w.entries)
	assert.Equal(t, int64(2), w.stock[1])
}

func TestLedgerDecrementExactStock(t *testing.T) {
	w := newFakeWriter(map[int64]int64{1: 3})
	var ledger Ledger

	entry, err := ledger.Decrement(context.Background(), w, Movement{
		ProductID: 1, Quantity: 3, Type: EntryTypeSale,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), entry.StockAfter)
}

func TestLedgerDecrementInvalidQuantity(t *testing.T) {
	w := newFakeWriter(map[int64]int64{1: 10})
	var ledger Ledger

	_, err := ledger.Decrement(context.Background(), w, Movement{ProductID: 1, Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = ledger.Decrement(context.Background(), w, Movement{ProductID: 1, Quantity: -2})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestLedgerIncrementHasNoUpperBound(t *testing.T) {
	w := newFakeWriter(map[int64]int64{1: 0})
	var ledger Ledger

	entry, err := ledger.Increment(context.Background(), w, Movement{
		ProductID: 1, Quantity: 1_000_000, Type: EntryTypeRestock,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), entry.StockAfter)
}

func TestLedgerAdjust(t *testing.T) {
	w := newFakeWriter(map[int64]int64{1: 5})
	var ledger Ledger
	ctx := context.Background()

	entry, err := ledger.Adjust(ctx, w, 1, -2, "stocktake", 7)
	require.NoError(t, err)
	assert.Equal(t, EntryTypeAdjustment, entry.Type)
	assert.Equal(t, int64(3), entry.StockAfter)

	// May not drive stock below zero.
	_, err = ledger.Adjust(ctx, w, 1, -4, "stocktake", 7)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, int64(3), w.stock[1])

	// Zero delta is meaningless.
	_, err = ledger.Adjust(ctx, w, 1, 0, "", 7)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestLedgerUnknownProduct(t *testing.T) {
	w := newFakeWriter(map[int64]int64{})
	var ledger Ledger

	_, err := ledger.Decrement(context.Background(), w, Movement{ProductID: 9, Quantity: 1})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestLedgerEntriesChain(t *testing.T) {
	w := newFakeWriter(map[int64]int64{1: 10})
	var ledger Ledger
	ctx := context.Background()

	_, err := ledger.Decrement(ctx, w, Movement{ProductID: 1, Quantity: 4, Type: EntryTypeSale})
	require.NoError(t, err)
	_, err = ledger.Increment(ctx, w, Movement{ProductID: 1, Quantity: 2, Type: EntryTypeReturn})
	require.NoError(t, err)
	_, err = ledger.Adjust(ctx, w, 1, -1, "damage", 7)
	require.NoError(t, err)

	require.NoError(t, ValidateChain(10, w.entries))
	assert.Equal(t, int64(7), Replay(10, w.entries))
	assert.Equal(t, int64(7), w.stock[1])
}

func TestValidateChainDetectsBreak(t *testing.T) {
	entries := []Entry{
		{ID: 1, Delta: -2, StockBefore: 10, StockAfter: 8},
		{ID: 2, Delta: -1, StockBefore: 9, StockAfter: 8}, // gap: before != previous after
	}
	err := ValidateChain(10, entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken chain")
}

func TestValidateChainDetectsBadArithmetic(t *testing.T) {
	entries := []Entry{
		{ID: 1, Delta: -2, StockBefore: 10, StockAfter: 9},
	}
	err := ValidateChain(10, entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inconsistent")
}

func TestReplayEmptyLedger(t *testing.T) {
	assert.Equal(t, int64(5), Replay(5, nil))
}
