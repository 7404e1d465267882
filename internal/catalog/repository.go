package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `p.id, p.name, p.sku, p.category_id, c.name, p.sale_price, p.purchase_price,
	p.stock_quantity, p.base_stock, p.unit, p.active, p.created_at, p.updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.CategoryID, &p.CategoryName, &p.SalePrice,
		&p.PurchasePrice, &p.StockQuantity, &p.BaseStock, &p.Unit, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// GetProduct returns a product regardless of its active flag.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM products p JOIN categories c ON c.id = p.category_id WHERE p.id = $1`, productColumns), id)
	return scanProduct(row)
}

// CreateProduct inserts a product with its base stock.
func (r *Repository) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, sku, category_id, sale_price, purchase_price, stock_quantity, base_stock, unit, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6, $7, TRUE, NOW(), NOW()) RETURNING id`,
		input.Name, input.SKU, input.CategoryID, input.SalePrice, input.PurchasePrice, input.InitialStock, input.Unit).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, ErrDuplicateSKU
		}
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Product{}, fmt.Errorf("%w: category %d", ErrNotFound, input.CategoryID)
		}
		return Product{}, err
	}
	return r.GetProduct(ctx, id)
}

// UpdateProduct applies partial catalog edits.
func (r *Repository) UpdateProduct(ctx context.Context, id int64, input UpdateProductInput) (Product, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{}
	pos := 1
	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, pos))
		args = append(args, value)
		pos++
	}
	if input.Name != nil {
		add("name", *input.Name)
	}
	if input.CategoryID != nil {
		add("category_id", *input.CategoryID)
	}
	if input.SalePrice != nil {
		add("sale_price", *input.SalePrice)
	}
	if input.PurchasePrice != nil {
		add("purchase_price", *input.PurchasePrice)
	}
	if input.Unit != nil {
		add("unit", *input.Unit)
	}
	if input.Active != nil {
		add("active", *input.Active)
	}

	query := "UPDATE products SET " + joinSets(sets) + fmt.Sprintf(" WHERE id = $%d", pos)
	args = append(args, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return Product{}, err
	}
	if tag.RowsAffected() == 0 {
		return Product{}, ErrNotFound
	}
	return r.GetProduct(ctx, id)
}

func joinSets(sets []string) string {
	out := ""
	for i, s := range sets {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, name string) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (name, created_at) VALUES ($1, NOW()) RETURNING id, name, created_at`,
		name).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Category{}, fmt.Errorf("%w: category %q", ErrDuplicateName, name)
		}
		return Category{}, err
	}
	return c, nil
}

// GetCategory returns one category.
func (r *Repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, ErrNotFound
		}
		return Category{}, err
	}
	return c, nil
}
