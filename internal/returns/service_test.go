package returns

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savdo-pos/savdo-pos/internal/inventory"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	sales      map[int64]SaleInfo
	returns    map[int64]*Return
	items      map[int64][]ReturnItem
	stock      map[int64]int64
	ledger     []inventory.Entry
	nextRetID  int64
	nextItemID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		sales:      make(map[int64]SaleInfo),
		returns:    make(map[int64]*Return),
		items:      make(map[int64][]ReturnItem),
		stock:      make(map[int64]int64),
		nextRetID:  1,
		nextItemID: 1,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Tests drive single failure points; a rollback model is not needed here.
	return fn(ctx, m)
}

func (m *mockRepository) Get(_ context.Context, id int64) (*Return, error) {
	ret, ok := m.returns[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *ret
	out.Items = append([]ReturnItem(nil), m.items[id]...)
	return &out, nil
}

func (m *mockRepository) ProductStockForUpdate(_ context.Context, productID int64) (int64, error) {
	stock, ok := m.stock[productID]
	if !ok {
		return 0, inventory.ErrProductNotFound
	}
	return stock, nil
}

func (m *mockRepository) AppendEntry(_ context.Context, entry inventory.Entry) (inventory.Entry, error) {
	entry.ID = int64(len(m.ledger) + 1)
	entry.CreatedAt = time.Now()
	m.ledger = append(m.ledger, entry)
	return entry, nil
}

func (m *mockRepository) SetProductStock(_ context.Context, productID, qty int64) error {
	m.stock[productID] = qty
	return nil
}

func (m *mockRepository) GetSaleForUpdate(_ context.Context, saleID int64) (SaleInfo, error) {
	sale, ok := m.sales[saleID]
	if !ok {
		return SaleInfo{}, ErrSaleNotFound
	}
	return sale, nil
}

func (m *mockRepository) ApprovedQuantities(_ context.Context, saleID int64) (map[int64]int64, error) {
	out := make(map[int64]int64)
	for id, ret := range m.returns {
		if ret.SaleID != saleID || ret.Status != StatusApproved {
			continue
		}
		for _, item := range m.items[id] {
			out[item.SaleItemID] += item.Quantity
		}
	}
	return out, nil
}

func (m *mockRepository) GetReturnForUpdate(ctx context.Context, id int64) (*Return, error) {
	return m.Get(ctx, id)
}

func (m *mockRepository) InsertReturn(_ context.Context, ret Return) (int64, error) {
	ret.ID = m.nextRetID
	m.nextRetID++
	ret.CreatedAt = time.Now()
	m.returns[ret.ID] = &ret
	return ret.ID, nil
}

func (m *mockRepository) InsertItems(_ context.Context, returnID int64, items []ReturnItem) error {
	for _, it := range items {
		it.ID = m.nextItemID
		m.nextItemID++
		it.ReturnID = returnID
		m.items[returnID] = append(m.items[returnID], it)
	}
	return nil
}

func (m *mockRepository) UpdateReturnStatus(_ context.Context, id int64, status Status, approvedAt *time.Time) error {
	ret, ok := m.returns[id]
	if !ok {
		return ErrNotFound
	}
	ret.Status = status
	ret.ApprovedAt = approvedAt
	return nil
}

func (m *mockRepository) SetSaleReturned(_ context.Context, saleID int64) error {
	sale, ok := m.sales[saleID]
	if !ok {
		return ErrSaleNotFound
	}
	if sale.Status == saleStatusCompleted || sale.Status == saleStatusReturned {
		sale.Status = saleStatusReturned
		m.sales[saleID] = sale
	}
	return nil
}

// completedSale seeds a completed sale of 5 units of product 1 at a custom
// price of 900, with current stock already reflecting the sale.
func completedSale(repo *mockRepository) SaleInfo {
	sale := SaleInfo{
		ID:     10,
		Number: "S-20260828-0001",
		Status: saleStatusCompleted,
		Items: []SaleItemInfo{
			{ID: 100, ProductID: 1, Quantity: 5, CustomUnitPrice: 900},
			{ID: 101, ProductID: 2, Quantity: 2, CustomUnitPrice: 500},
		},
	}
	repo.sales[sale.ID] = sale
	repo.stock[1] = 0
	repo.stock[2] = 3
	return sale
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateReturnPending(t *testing.T) {
	repo := newMockRepository()
	sale := completedSale(repo)
	svc := NewService(repo, nil, nil, nil)

	ret, err := svc.Create(context.Background(), CreateInput{
		SaleID:  sale.ID,
		Items:   []ItemInput{{SaleItemID: 100, Quantity: 2}},
		Reason:  "damaged packaging",
		ActorID: 7,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, ret.Status)
	assert.Regexp(t, `^RT-\d{8}-[0-9a-f-]{8}$`, ret.Number)
	require.Len(t, ret.Items, 1)
	assert.Equal(t, int64(900), ret.Items[0].RefundUnitPrice)
	assert.Equal(t, int64(1800), ret.Items[0].RefundTotal)
	assert.Equal(t, int64(1800), ret.RefundAmount)

	// No stock or sale effects until approval.
	assert.Equal(t, int64(0), repo.stock[1])
	assert.Empty(t, repo.ledger)
	assert.Equal(t, saleStatusCompleted, repo.sales[sale.ID].Status)
}

func TestCreateReturnUsesFrozenPrice(t *testing.T) {
	repo := newMockRepository()
	sale := completedSale(repo)
	svc := NewService(repo, nil, nil, nil)

	// The catalog price may have changed since the sale; the refund must
	// come from the snapshot, and that snapshot lives in the sale item.
	ret, err := svc.Create(context.Background(), CreateInput{
		SaleID: sale.ID,
		Items:  []ItemInput{{SaleItemID: 101, Quantity: 1}},
		Reason: "wrong item",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), ret.Items[0].RefundUnitPrice)
}

func TestCreateReturnValidation(t *testing.T) {
	repo := newMockRepository()
	sale := completedSale(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{SaleID: sale.ID})
	assert.ErrorIs(t, err, ErrEmptyItems)

	_, err = svc.Create(ctx, CreateInput{
		SaleID: sale.ID, Items: []ItemInput{{SaleItemID: 100, Quantity: 0}},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Create(ctx, CreateInput{
		SaleID: sale.ID, Items: []ItemInput{{SaleItemID: 999, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrSaleItemUnknown)

	_, err = svc.Create(ctx, CreateInput{
		SaleID: 99, Items: []ItemInput{{SaleItemID: 100, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrSaleNotFound)
}

func TestCreateReturnOverQuantity(t *testing.T) {
	repo := newMockRepository()
	sale := completedSale(repo)
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		SaleID: sale.ID,
		Items:  []ItemInput{{SaleItemID: 100, Quantity: 6}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverReturn)

	var or *OverReturnError
	require.ErrorAs(t, err, &or)
	assert.Equal(t, int64(6), or.Requested)
	assert.Equal(t, int64(5), or.Remaining)
}

func TestCreateReturnAgainstDraftRejected(t *testing.T) {
	repo := newMockRepository()
	repo.sales[20] = SaleInfo{ID: 20, Status: "DRAFT"}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		SaleID: 20, Items: []ItemInput{{SaleItemID: 1, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestApproveRestoresStockAndFlagsSale(t *testing.T) {
	repo := newMockRepository()
	sale := completedSale(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	ret, err := svc.Create(ctx, CreateInput{
		SaleID:  sale.ID,
		Items:   []ItemInput{{SaleItemID: 100, Quantity: 2}},
		Reason:  "damaged",
		ActorID: 7,
	})
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, ret.ID, 7)
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)

	// Stock came back through the ledger.
	assert.Equal(t, int64(2), repo.stock[1])
	require.Len(t, repo.ledger, 1)
	entry := repo.ledger[0]
	assert.Equal(t, inventory.EntryTypeReturn, entry.Type)
	assert.Equal(t, int64(2), entry.Delta)
	assert.Equal(t, inventory.RefTypeReturn, entry.RefType)
	assert.Equal(t, ret.ID, entry.RefID)
	assert.Equal(t, ret.Number, entry.Note)

	assert.Equal(t, saleStatusReturned, repo.sales[sale.ID].Status)
}

func TestApproveOnlyPending(t *testing.T) {
	repo := newMockRepository()
	sale := completedSale(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	ret, err := svc.Create(ctx, CreateInput{
		SaleID: sale.ID, Items: []ItemInput{{SaleItemID: 100, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, ret.ID, 7)
	require.NoError(t, err)

	// A second approval must not double the stock restoration.
	_, err = svc.Approve(ctx, ret.ID, 7)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, int64(1), repo.stock[1])
	assert.Len(t, repo.ledger, 1)
}

func TestApproveRevalidatesAgainstLaterApprovals(t *testing.T) {
	repo := newMockRepository()
	sale := completedSale(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	// Two pending returns for the same 5 units: 3 and 4.
	first, err := svc.Create(ctx, CreateInput{
		SaleID: sale.ID, Items: []ItemInput{{SaleItemID: 100, Quantity: 3}},
	})
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateInput{
		SaleID: sale.ID, Items: []ItemInput{{SaleItemID: 100, Quantity: 4}},
	})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, first.ID, 7)
	require.NoError(t, err)

	// Only 2 units remain returnable, so the second approval fails.
	_, err = svc.Approve(ctx, second.ID, 7)
	assert.ErrorIs(t, err, ErrOverReturn)
}

func TestPartialThenRemainingReturn(t *testing.T) {
	repo := newMockRepository()
	sale := completedSale(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{
		SaleID: sale.ID, Items: []ItemInput{{SaleItemID: 100, Quantity: 3}},
	})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, first.ID, 7)
	require.NoError(t, err)

	// A RETURNED sale still accepts returns for the remaining 2 units.
	second, err := svc.Create(ctx, CreateInput{
		SaleID: sale.ID, Items: []ItemInput{{SaleItemID: 100, Quantity: 2}},
	})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, second.ID, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(5), repo.stock[1])

	// All 5 units are out; nothing more to return.
	_, err = svc.Create(ctx, CreateInput{
		SaleID: sale.ID, Items: []ItemInput{{SaleItemID: 100, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrOverReturn)
}

func TestRejectHasNoSideEffects(t *testing.T) {
	repo := newMockRepository()
	sale := completedSale(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	ret, err := svc.Create(ctx, CreateInput{
		SaleID: sale.ID, Items: []ItemInput{{SaleItemID: 100, Quantity: 2}},
	})
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, ret.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, int64(0), repo.stock[1])
	assert.Empty(t, repo.ledger)
	assert.Equal(t, saleStatusCompleted, repo.sales[sale.ID].Status)

	// Rejected quantities become returnable again.
	again, err := svc.Create(ctx, CreateInput{
		SaleID: sale.ID, Items: []ItemInput{{SaleItemID: 100, Quantity: 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, again.Status)
}
