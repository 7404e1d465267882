package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/savdo-pos/savdo-pos/internal/platform/db"
)

// DBTX is the pgx surface shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists ledger entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside one transaction, retrying serialization conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, LedgerWriter) error) error {
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxWriter(tx))
	})
}

// TxWriter implements LedgerWriter over an open transaction. Other modules
// embed it so their own unit of work can move stock through the ledger.
type TxWriter struct {
	db DBTX
}

// NewTxWriter wraps a transaction (or pool) as a LedgerWriter.
func NewTxWriter(db DBTX) *TxWriter {
	return &TxWriter{db: db}
}

// ProductStockForUpdate reads current stock under a row lock.
func (w *TxWriter) ProductStockForUpdate(ctx context.Context, productID int64) (int64, error) {
	var stock int64
	err := w.db.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return 0, err
	}
	return stock, nil
}

// AppendEntry inserts one immutable ledger row.
func (w *TxWriter) AppendEntry(ctx context.Context, entry Entry) (Entry, error) {
	err := w.db.QueryRow(ctx,
		`INSERT INTO inventory_ledger (product_id, entry_type, delta, stock_before, stock_after, ref_type, ref_id, note, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, 0), $8, $9, NOW())
		 RETURNING id, created_at`,
		entry.ProductID, string(entry.Type), entry.Delta, entry.StockBefore, entry.StockAfter,
		entry.RefType, entry.RefID, entry.Note, entry.CreatedBy).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// SetProductStock writes the denormalized stock cache.
func (w *TxWriter) SetProductStock(ctx context.Context, productID, qty int64) error {
	tag, err := w.db.Exec(ctx, `UPDATE products SET stock_quantity = $2, updated_at = NOW() WHERE id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ListEntries returns a product's ledger rows, newest first.
func (r *Repository) ListEntries(ctx context.Context, productID int64, limit int32) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, entry_type, delta, stock_before, stock_after,
			COALESCE(ref_type, ''), COALESCE(ref_id, 0), note, created_by, created_at
		 FROM inventory_ledger WHERE product_id = $1 ORDER BY id DESC LIMIT $2`,
		productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListEntriesAsc returns a product's full ledger in creation order, for replay.
func (r *Repository) ListEntriesAsc(ctx context.Context, productID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, entry_type, delta, stock_before, stock_after,
			COALESCE(ref_type, ''), COALESCE(ref_id, 0), note, created_by, created_at
		 FROM inventory_ledger WHERE product_id = $1 ORDER BY id ASC`,
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ProductStock summarises one product for the integrity job.
type ProductStock struct {
	ProductID     int64
	BaseStock     int64
	StockQuantity int64
}

// ListProductStocks returns base and denormalized stock for every product.
func (r *Repository) ListProductStocks(ctx context.Context) ([]ProductStock, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, base_stock, stock_quantity FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductStock
	for rows.Next() {
		var ps ProductStock
		if err := rows.Scan(&ps.ProductID, &ps.BaseStock, &ps.StockQuantity); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var entryType string
		if err := rows.Scan(&e.ID, &e.ProductID, &entryType, &e.Delta, &e.StockBefore, &e.StockAfter,
			&e.RefType, &e.RefID, &e.Note, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EntryType(entryType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
