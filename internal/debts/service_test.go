package debts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPayment struct {
	saleID int64
	debtID int64
	method string
	amount int64
}

type mockRepository struct {
	debts    map[int64]Debt
	payments []mockPayment
	nextID   int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{debts: make(map[int64]Debt), nextID: 1}
}

func (m *mockRepository) add(d Debt) Debt {
	d.ID = m.nextID
	m.nextID++
	d.CreatedAt = time.Now()
	m.debts[d.ID] = d
	return d
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	backup := make(map[int64]Debt, len(m.debts))
	for id, d := range m.debts {
		backup[id] = d
	}
	payments := append([]mockPayment(nil), m.payments...)
	if err := fn(ctx, m); err != nil {
		m.debts = backup
		m.payments = payments
		return err
	}
	return nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (Debt, error) {
	d, ok := m.debts[id]
	if !ok {
		return Debt{}, ErrNotFound
	}
	return d, nil
}

func (m *mockRepository) ListOpen(_ context.Context) ([]Debt, error) {
	var out []Debt
	for _, d := range m.debts {
		if d.Status == StatusPending || d.Status == StatusPartiallyPaid {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockRepository) GetDebtForUpdate(ctx context.Context, id int64) (Debt, error) {
	return m.Get(ctx, id)
}

func (m *mockRepository) UpdateDebt(_ context.Context, d Debt) error {
	if _, ok := m.debts[d.ID]; !ok {
		return ErrNotFound
	}
	m.debts[d.ID] = d
	return nil
}

func (m *mockRepository) InsertPayment(_ context.Context, saleID, debtID int64, method string, amount int64, _ string) (int64, error) {
	m.payments = append(m.payments, mockPayment{saleID: saleID, debtID: debtID, method: method, amount: amount})
	return int64(len(m.payments)), nil
}

func openDebt(repo *mockRepository, amount int64) Debt {
	d, _ := NewOpen(10, amount, "Ali", "+998901234567")
	return repo.add(d)
}

func TestNewOpen(t *testing.T) {
	d, err := NewOpen(10, 1000, "Ali", "+998901234567")
	require.NoError(t, err)
	assert.Equal(t, int64(10), d.SaleID)
	assert.Equal(t, int64(1000), d.OriginalAmount)
	assert.Equal(t, int64(1000), d.RemainingAmount)
	assert.Equal(t, StatusPending, d.Status)

	_, err = NewOpen(10, 0, "Ali", "+998901234567")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = NewOpen(10, 1000, "", "+998901234567")
	assert.ErrorIs(t, err, ErrDebtorRequired)
	_, err = NewOpen(10, 1000, "Ali", "")
	assert.ErrorIs(t, err, ErrDebtorRequired)
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, StatusPending, DeriveStatus(1000, 1000))
	assert.Equal(t, StatusPartiallyPaid, DeriveStatus(1000, 500))
	assert.Equal(t, StatusPaid, DeriveStatus(1000, 0))
}

func TestRecordPaymentPartial(t *testing.T) {
	repo := newMockRepository()
	d := openDebt(repo, 1000)
	svc := NewService(repo, nil, nil)

	got, err := svc.RecordPayment(context.Background(), PaymentInput{
		DebtID: d.ID, Amount: 400, Method: "CASH", ActorID: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(600), got.RemainingAmount)
	assert.Equal(t, StatusPartiallyPaid, got.Status)
	assert.Nil(t, got.SettledAt)

	// The collection lands on the debt's sale.
	require.Len(t, repo.payments, 1)
	assert.Equal(t, d.SaleID, repo.payments[0].saleID)
	assert.Equal(t, d.ID, repo.payments[0].debtID)
	assert.Equal(t, "CASH", repo.payments[0].method)
}

func TestRecordPaymentSettles(t *testing.T) {
	repo := newMockRepository()
	d := openDebt(repo, 1000)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentInput{DebtID: d.ID, Amount: 400, Method: "CASH"})
	require.NoError(t, err)
	got, err := svc.RecordPayment(ctx, PaymentInput{DebtID: d.ID, Amount: 600, Method: "CARD"})
	require.NoError(t, err)

	assert.Equal(t, int64(0), got.RemainingAmount)
	assert.Equal(t, StatusPaid, got.Status)
	require.NotNil(t, got.SettledAt)

	// Further payments bounce off the settled debt.
	_, err = svc.RecordPayment(ctx, PaymentInput{DebtID: d.ID, Amount: 1, Method: "CASH"})
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestRecordPaymentOverpay(t *testing.T) {
	repo := newMockRepository()
	d := openDebt(repo, 1000)
	svc := NewService(repo, nil, nil)

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		DebtID: d.ID, Amount: 1500, Method: "CASH",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverPayment)

	var op *OverPaymentError
	require.ErrorAs(t, err, &op)
	assert.Equal(t, int64(1500), op.Amount)
	assert.Equal(t, int64(1000), op.Remaining)

	// No payment row, debt untouched.
	assert.Empty(t, repo.payments)
	got, _ := repo.Get(context.Background(), d.ID)
	assert.Equal(t, int64(1000), got.RemainingAmount)
}

func TestRecordPaymentValidation(t *testing.T) {
	repo := newMockRepository()
	d := openDebt(repo, 1000)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentInput{DebtID: d.ID, Amount: 0, Method: "CASH"})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// DEBT cannot pay off a debt.
	_, err = svc.RecordPayment(ctx, PaymentInput{DebtID: d.ID, Amount: 100, Method: "DEBT"})
	assert.ErrorIs(t, err, ErrInvalidMethod)

	_, err = svc.RecordPayment(ctx, PaymentInput{DebtID: 99, Amount: 100, Method: "CASH"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelKeepsWrittenOffAmount(t *testing.T) {
	repo := newMockRepository()
	d := openDebt(repo, 1000)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentInput{DebtID: d.ID, Amount: 300, Method: "CASH"})
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, d.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, int64(700), got.RemainingAmount)

	// Cancelled debts accept neither payments nor another cancellation.
	_, err = svc.RecordPayment(ctx, PaymentInput{DebtID: d.ID, Amount: 100, Method: "CASH"})
	assert.ErrorIs(t, err, ErrAlreadySettled)
	_, err = svc.Cancel(ctx, d.ID, 7)
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestListOpen(t *testing.T) {
	repo := newMockRepository()
	open := openDebt(repo, 1000)
	paid := openDebt(repo, 500)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentInput{DebtID: paid.ID, Amount: 500, Method: "CASH"})
	require.NoError(t, err)

	debts, err := svc.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, debts, 1)
	assert.Equal(t, open.ID, debts[0].ID)
}
