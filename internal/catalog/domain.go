package catalog

import (
	"errors"
	"time"
)

// Product is the catalog record consumed by the sale engine. Prices are in
// currency minor units; StockQuantity is a denormalized cache owned by the
// inventory ledger.
type Product struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	SKU           string    `json:"sku"`
	CategoryID    int64     `json:"category_id"`
	CategoryName  string    `json:"category_name"`
	SalePrice     int64     `json:"sale_price"`
	PurchasePrice int64     `json:"purchase_price"`
	StockQuantity int64     `json:"stock_quantity"`
	BaseStock     int64     `json:"base_stock"`
	Unit          string    `json:"unit"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Category groups products; its name is snapshotted into sale items.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateProductInput describes a new catalog product.
type CreateProductInput struct {
	Name          string
	SKU           string
	CategoryID    int64
	SalePrice     int64
	PurchasePrice int64
	InitialStock  int64
	Unit          string
}

// UpdateProductInput carries optional catalog edits. Stock is deliberately
// absent: only the inventory ledger writes stock_quantity.
type UpdateProductInput struct {
	Name          *string
	CategoryID    *int64
	SalePrice     *int64
	PurchasePrice *int64
	Unit          *string
	Active        *bool
}

var (
	// ErrNotFound indicates the product or category does not exist or is soft-deleted.
	ErrNotFound = errors.New("catalog: not found")
	// ErrDuplicateSKU indicates a SKU collision.
	ErrDuplicateSKU = errors.New("catalog: duplicate sku")
	// ErrDuplicateName indicates a category name collision.
	ErrDuplicateName = errors.New("catalog: duplicate name")
	// ErrInvalidPrice indicates a negative price.
	ErrInvalidPrice = errors.New("catalog: price must be >= 0")
)
