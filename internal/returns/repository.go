package returns

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/savdo-pos/savdo-pos/internal/inventory"
	"github.com/savdo-pos/savdo-pos/internal/platform/db"
)

// SaleInfo is the slim view of the original sale the processor needs.
type SaleInfo struct {
	ID     int64
	Number string
	Status string
	Items  []SaleItemInfo
}

// SaleItemInfo carries the frozen snapshot fields relevant to refunds.
type SaleItemInfo struct {
	ID              int64
	ProductID       int64
	Quantity        int64
	CustomUnitPrice int64
}

// Repository abstracts return persistence for the service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Return, error)
}

// TxRepository exposes the transactional operations of one return unit of
// work, including the ledger writer for stock restoration.
type TxRepository interface {
	inventory.LedgerWriter
	GetSaleForUpdate(ctx context.Context, saleID int64) (SaleInfo, error)
	ApprovedQuantities(ctx context.Context, saleID int64) (map[int64]int64, error)
	GetReturnForUpdate(ctx context.Context, id int64) (*Return, error)
	InsertReturn(ctx context.Context, ret Return) (int64, error)
	InsertItems(ctx context.Context, returnID int64, items []ReturnItem) error
	UpdateReturnStatus(ctx context.Context, id int64, status Status, approvedAt *time.Time) error
	SetSaleReturned(ctx context.Context, saleID int64) error
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

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{TxWriter: inventory.NewTxWriter(tx), db: tx, pool: r.pool})
	})
}

func (r *repository) GetSaleForUpdate(ctx context.Context, saleID int64) (SaleInfo, error) {
	var info SaleInfo
	err := r.db.QueryRow(ctx, `SELECT id, number, status FROM sales WHERE id = $1 FOR UPDATE`, saleID).
		Scan(&info.ID, &info.Number, &info.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SaleInfo{}, ErrSaleNotFound
		}
		return SaleInfo{}, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, product_id, quantity, custom_unit_price FROM sale_items WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return SaleInfo{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it SaleItemInfo
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.CustomUnitPrice); err != nil {
			return SaleInfo{}, err
		}
		info.Items = append(info.Items, it)
	}
	return info, rows.Err()
}

func (r *repository) ApprovedQuantities(ctx context.Context, saleID int64) (map[int64]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT ri.sale_item_id, COALESCE(SUM(ri.quantity), 0)
		 FROM return_items ri
		 JOIN returns rt ON rt.id = ri.return_id
		 WHERE rt.sale_id = $1 AND rt.status = $2
		 GROUP BY ri.sale_item_id`,
		saleID, string(StatusApproved))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var saleItemID, qty int64
		if err := rows.Scan(&saleItemID, &qty); err != nil {
			return nil, err
		}
		out[saleItemID] = qty
	}
	return out, rows.Err()
}

const returnColumns = `id, number, sale_id, status, reason, refund_amount, approved_at, created_by, created_at, updated_at`

func (r *repository) scanReturn(ctx context.Context, row pgx.Row) (*Return, error) {
	var ret Return
	var status string
	err := row.Scan(&ret.ID, &ret.Number, &ret.SaleID, &status, &ret.Reason, &ret.RefundAmount,
		&ret.ApprovedAt, &ret.CreatedBy, &ret.CreatedAt, &ret.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	ret.Status = Status(status)

	rows, err := r.db.Query(ctx,
		`SELECT id, return_id, sale_item_id, product_id, quantity, refund_unit_price, refund_total
		 FROM return_items WHERE return_id = $1 ORDER BY id`, ret.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it ReturnItem
		if err := rows.Scan(&it.ID, &it.ReturnID, &it.SaleItemID, &it.ProductID, &it.Quantity,
			&it.RefundUnitPrice, &it.RefundTotal); err != nil {
			return nil, err
		}
		ret.Items = append(ret.Items, it)
	}
	return &ret, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Return, error) {
	return r.scanReturn(ctx, r.db.QueryRow(ctx, `SELECT `+returnColumns+` FROM returns WHERE id = $1`, id))
}

func (r *repository) GetReturnForUpdate(ctx context.Context, id int64) (*Return, error) {
	return r.scanReturn(ctx, r.db.QueryRow(ctx, `SELECT `+returnColumns+` FROM returns WHERE id = $1 FOR UPDATE`, id))
}

func (r *repository) InsertReturn(ctx context.Context, ret Return) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO returns (number, sale_id, status, reason, refund_amount, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING id`,
		ret.Number, ret.SaleID, string(ret.Status), ret.Reason, ret.RefundAmount, ret.CreatedBy).Scan(&id)
	return id, err
}

func (r *repository) InsertItems(ctx context.Context, returnID int64, items []ReturnItem) error {
	for _, it := range items {
		_, err := r.db.Exec(ctx,
			`INSERT INTO return_items (return_id, sale_item_id, product_id, quantity, refund_unit_price, refund_total)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			returnID, it.SaleItemID, it.ProductID, it.Quantity, it.RefundUnitPrice, it.RefundTotal)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) UpdateReturnStatus(ctx context.Context, id int64, status Status, approvedAt *time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE returns SET status = $2, approved_at = $3, updated_at = NOW() WHERE id = $1`,
		id, string(status), approvedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetSaleReturned(ctx context.Context, saleID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sales SET status = 'RETURNED', updated_at = NOW()
		 WHERE id = $1 AND status IN ('COMPLETED', 'RETURNED')`, saleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}
