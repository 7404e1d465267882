package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/savdo-pos/savdo-pos/internal/debts"
	"github.com/savdo-pos/savdo-pos/internal/inventory"
	"github.com/savdo-pos/savdo-pos/internal/platform/db"
	"github.com/savdo-pos/savdo-pos/internal/shared"
)

// Repository abstracts sale persistence for the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Sale, error)
}

// TxRepository exposes the transactional operations of one sale unit of work.
// It embeds the ledger writer so stock moves inside the same transaction.
type TxRepository interface {
	inventory.LedgerWriter
	GetSaleForUpdate(ctx context.Context, id int64) (*Sale, error)
	NextNumber(ctx context.Context, day time.Time) (string, error)
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertItems(ctx context.Context, saleID int64, items []SaleItem) ([]SaleItem, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	InsertDebt(ctx context.Context, d debts.Debt) (int64, error)
	CompleteSale(ctx context.Context, sale *Sale) error
	CancelSale(ctx context.Context, id int64, reason string, at time.Time) error
}

type repository struct {
	*inventory.TxWriter
	db   inventory.DBTX
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{TxWriter: inventory.NewTxWriter(pool), db: pool, pool: pool}
}

// WithTx executes fn inside one repeatable-read transaction with bounded
// retry on serialization conflicts.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		repoTx := &repository{TxWriter: inventory.NewTxWriter(tx), db: tx, pool: r.pool}
		return fn(ctx, repoTx)
	})
}

const saleColumns = `id, number, status, subtotal, total_discount, grand_total, gross_profit, net_profit,
	completed_at, cancelled_at, cancellation_reason, created_by, created_at, updated_at`

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	var status string
	err := row.Scan(&s.ID, &s.Number, &status, &s.Subtotal, &s.TotalDiscount, &s.GrandTotal,
		&s.GrossProfit, &s.NetProfit, &s.CompletedAt, &s.CancelledAt, &s.CancellationReason,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.Status = Status(status)
	return &s, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Sale, error) {
	sale, err := scanSale(r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM sales WHERE id = $1`, saleColumns), id))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

func (r *repository) GetSaleForUpdate(ctx context.Context, id int64) (*Sale, error) {
	sale, err := scanSale(r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM sales WHERE id = $1 FOR UPDATE`, saleColumns), id))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

func (r *repository) loadChildren(ctx context.Context, sale *Sale) error {
	rows, err := r.db.Query(ctx,
		`SELECT id, sale_id, product_id, product_name, category_name, unit, base_unit_price,
			custom_unit_price, purchase_price, quantity, base_total, custom_total, discount_amount, created_at
		 FROM sale_items WHERE sale_id = $1 ORDER BY id`, sale.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.CategoryName,
			&it.Unit, &it.BaseUnitPrice, &it.CustomUnitPrice, &it.PurchasePrice, &it.Quantity,
			&it.BaseTotal, &it.CustomTotal, &it.DiscountAmount, &it.CreatedAt); err != nil {
			return err
		}
		sale.Items = append(sale.Items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	payRows, err := r.db.Query(ctx,
		`SELECT id, sale_id, debt_id, method, amount, COALESCE(note, ''), created_at
		 FROM payments WHERE sale_id = $1 ORDER BY id`, sale.ID)
	if err != nil {
		return err
	}
	defer payRows.Close()
	for payRows.Next() {
		var p Payment
		var method string
		if err := payRows.Scan(&p.ID, &p.SaleID, &p.DebtID, &method, &p.Amount, &p.Note, &p.CreatedAt); err != nil {
			return err
		}
		p.Method = PaymentMethod(method)
		sale.Payments = append(sale.Payments, p)
	}
	if err := payRows.Err(); err != nil {
		return err
	}

	var d DebtSummary
	err = r.db.QueryRow(ctx,
		`SELECT id, original_amount, remaining_amount, status, debtor_name, debtor_phone
		 FROM debts WHERE sale_id = $1`, sale.ID).
		Scan(&d.ID, &d.OriginalAmount, &d.RemainingAmount, &d.Status, &d.DebtorName, &d.DebtorPhone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	sale.Debt = &d
	return nil
}

// NextNumber allocates the next per-day sale number.
func (r *repository) NextNumber(ctx context.Context, day time.Time) (string, error) {
	n, err := shared.NextSequence(ctx, r.db, "sale", day)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("S-%s-%04d", day.Format("20060102"), n), nil
}

func (r *repository) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO sales (number, status, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW()) RETURNING id`,
		sale.Number, string(sale.Status), sale.CreatedBy).Scan(&id)
	return id, err
}

func (r *repository) InsertItems(ctx context.Context, saleID int64, items []SaleItem) ([]SaleItem, error) {
	out := make([]SaleItem, 0, len(items))
	for _, it := range items {
		it.SaleID = saleID
		err := r.db.QueryRow(ctx,
			`INSERT INTO sale_items (sale_id, product_id, product_name, category_name, unit,
				base_unit_price, custom_unit_price, purchase_price, quantity, base_total, custom_total,
				discount_amount, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
			 RETURNING id, created_at`,
			saleID, it.ProductID, it.ProductName, it.CategoryName, it.Unit,
			it.BaseUnitPrice, it.CustomUnitPrice, it.PurchasePrice, it.Quantity,
			it.BaseTotal, it.CustomTotal, it.DiscountAmount).
			Scan(&it.ID, &it.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert sale item: %w", err)
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *repository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO payments (sale_id, debt_id, method, amount, note, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW()) RETURNING id`,
		p.SaleID, p.DebtID, string(p.Method), p.Amount, p.Note).Scan(&id)
	return id, err
}

func (r *repository) InsertDebt(ctx context.Context, d debts.Debt) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO debts (sale_id, debtor_name, debtor_phone, original_amount, remaining_amount, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING id`,
		d.SaleID, d.DebtorName, d.DebtorPhone, d.OriginalAmount, d.RemainingAmount, string(d.Status)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, debts.ErrDuplicateDebt
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) CompleteSale(ctx context.Context, sale *Sale) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sales SET status = $2, subtotal = $3, total_discount = $4, grand_total = $5,
			gross_profit = $6, net_profit = $7, completed_at = $8, updated_at = NOW()
		 WHERE id = $1`,
		sale.ID, string(sale.Status), sale.Subtotal, sale.TotalDiscount, sale.GrandTotal,
		sale.GrossProfit, sale.NetProfit, sale.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) CancelSale(ctx context.Context, id int64, reason string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sales SET status = $2, cancelled_at = $3, cancellation_reason = $4, updated_at = NOW()
		 WHERE id = $1`,
		id, string(StatusCancelled), at, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
