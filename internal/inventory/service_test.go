package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	writer  *fakeWriter
	txError error
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(context.Context, LedgerWriter) error) error {
	if m.txError != nil {
		return m.txError
	}
	return fn(ctx, m.writer)
}

func (m *mockRepo) ListEntries(_ context.Context, productID int64, limit int32) ([]Entry, error) {
	var out []Entry
	for i := len(m.writer.entries) - 1; i >= 0 && len(out) < int(limit); i-- {
		if m.writer.entries[i].ProductID == productID {
			out = append(out, m.writer.entries[i])
		}
	}
	return out, nil
}

type recordingInvalidator struct {
	invalidated []int64
}

func (r *recordingInvalidator) Invalidate(_ context.Context, productID int64) {
	r.invalidated = append(r.invalidated, productID)
}

func TestServiceAdjust(t *testing.T) {
	inv := &recordingInvalidator{}
	repo := &mockRepo{writer: newFakeWriter(map[int64]int64{1: 5})}
	svc := NewService(repo, nil, inv, nil)

	entry, err := svc.Adjust(context.Background(), AdjustmentInput{
		ProductID: 1, Delta: 3, Note: "found in backroom", ActorID: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), entry.StockAfter)
	assert.Equal(t, []int64{1}, inv.invalidated)
}

func TestServiceAdjustRequiresProduct(t *testing.T) {
	repo := &mockRepo{writer: newFakeWriter(map[int64]int64{})}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Adjust(context.Background(), AdjustmentInput{Delta: 1})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestServiceRestock(t *testing.T) {
	repo := &mockRepo{writer: newFakeWriter(map[int64]int64{1: 0})}
	svc := NewService(repo, nil, nil, nil)

	entry, err := svc.Restock(context.Background(), RestockInput{
		ProductID: 1, Quantity: 50, Note: "PO-100", ActorID: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, EntryTypeRestock, entry.Type)
	assert.Equal(t, int64(50), entry.StockAfter)
}

func TestServiceRestockInvalidQuantity(t *testing.T) {
	repo := &mockRepo{writer: newFakeWriter(map[int64]int64{1: 0})}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Restock(context.Background(), RestockInput{ProductID: 1, Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestServiceProductLedger(t *testing.T) {
	repo := &mockRepo{writer: newFakeWriter(map[int64]int64{1: 10})}
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Adjust(ctx, AdjustmentInput{ProductID: 1, Delta: 1, ActorID: 7})
		require.NoError(t, err)
	}

	entries, err := svc.ProductLedger(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Greater(t, entries[0].ID, entries[1].ID)
}
