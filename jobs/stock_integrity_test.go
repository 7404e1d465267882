package jobs

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savdo-pos/savdo-pos/internal/inventory"
)

type fakeStore struct {
	stocks  []inventory.ProductStock
	entries map[int64][]inventory.Entry
}

func (f *fakeStore) ListProductStocks(_ context.Context) ([]inventory.ProductStock, error) {
	return f.stocks, nil
}

func (f *fakeStore) ListEntriesAsc(_ context.Context, productID int64) ([]inventory.Entry, error) {
	return f.entries[productID], nil
}

func runChecker(t *testing.T, store *fakeStore) string {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	checker := NewStockIntegrityChecker(store, logger)
	require.NoError(t, checker.Handle(context.Background(), NewStockIntegrityTask()))
	return buf.String()
}

func TestStockIntegrityClean(t *testing.T) {
	store := &fakeStore{
		stocks: []inventory.ProductStock{{ProductID: 1, BaseStock: 10, StockQuantity: 7}},
		entries: map[int64][]inventory.Entry{
			1: {{ID: 1, ProductID: 1, Delta: -3, StockBefore: 10, StockAfter: 7}},
		},
	}
	out := runChecker(t, store)
	assert.NotContains(t, out, "drift detected")
	assert.NotContains(t, out, "chain broken")
	assert.Contains(t, out, "drifted=0")
}

func TestStockIntegrityDetectsDrift(t *testing.T) {
	store := &fakeStore{
		stocks: []inventory.ProductStock{{ProductID: 1, BaseStock: 10, StockQuantity: 9}},
		entries: map[int64][]inventory.Entry{
			1: {{ID: 1, ProductID: 1, Delta: -3, StockBefore: 10, StockAfter: 7}},
		},
	}
	out := runChecker(t, store)
	assert.Contains(t, out, "stock drift detected")
	assert.Contains(t, out, "drifted=1")
}

func TestStockIntegrityDetectsBrokenChain(t *testing.T) {
	store := &fakeStore{
		stocks: []inventory.ProductStock{{ProductID: 1, BaseStock: 10, StockQuantity: 6}},
		entries: map[int64][]inventory.Entry{
			1: {
				{ID: 1, ProductID: 1, Delta: -3, StockBefore: 10, StockAfter: 7},
				{ID: 2, ProductID: 1, Delta: -1, StockBefore: 8, StockAfter: 7},
			},
		},
	}
	out := runChecker(t, store)
	assert.Contains(t, out, "chain broken")
}
