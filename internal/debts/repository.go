package debts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/savdo-pos/savdo-pos/internal/platform/db"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository abstracts debt persistence for the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Debt, error)
	ListOpen(ctx context.Context) ([]Debt, error)
}

// TxRepository exposes the transactional operations of one debt unit of work.
type TxRepository interface {
	GetDebtForUpdate(ctx context.Context, id int64) (Debt, error)
	UpdateDebt(ctx context.Context, d Debt) error
	InsertPayment(ctx context.Context, saleID, debtID int64, method string, amount int64, note string) (int64, error)
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const debtColumns = `id, sale_id, debtor_name, debtor_phone, original_amount, remaining_amount,
	status, settled_at, created_at, updated_at`

func scanDebt(row pgx.Row) (Debt, error) {
	var d Debt
	var status string
	err := row.Scan(&d.ID, &d.SaleID, &d.DebtorName, &d.DebtorPhone, &d.OriginalAmount,
		&d.RemainingAmount, &status, &d.SettledAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Debt{}, ErrNotFound
		}
		return Debt{}, err
	}
	d.Status = Status(status)
	return d, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Debt, error) {
	return scanDebt(r.db.QueryRow(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = $1`, id))
}

func (r *repository) GetDebtForUpdate(ctx context.Context, id int64) (Debt, error) {
	return scanDebt(r.db.QueryRow(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = $1 FOR UPDATE`, id))
}

func (r *repository) ListOpen(ctx context.Context) ([]Debt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+debtColumns+` FROM debts WHERE status IN ($1, $2) ORDER BY created_at`,
		string(StatusPending), string(StatusPartiallyPaid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repository) UpdateDebt(ctx context.Context, d Debt) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE debts SET remaining_amount = $2, status = $3, settled_at = $4, updated_at = NOW()
		 WHERE id = $1`,
		d.ID, d.RemainingAmount, string(d.Status), d.SettledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) InsertPayment(ctx context.Context, saleID, debtID int64, method string, amount int64, note string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO payments (sale_id, debt_id, method, amount, note, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW()) RETURNING id`,
		saleID, debtID, method, amount, note).Scan(&id)
	return id, err
}
