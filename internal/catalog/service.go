package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// RepositoryPort abstracts catalog persistence for the service.
type RepositoryPort interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (Product, error)
	UpdateProduct(ctx context.Context, id int64, input UpdateProductInput) (Product, error)
	CreateCategory(ctx context.Context, name string) (Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
}

// cacheTTL keeps product reads hot without letting stale stock linger; writers
// invalidate eagerly anyway.
const cacheTTL = 30 * time.Second

// Service serves catalog reads to the sale engine with a Redis read-through
// cache, and carries minimal product/category administration.
type Service struct {
	repo   RepositoryPort
	cache  *redis.Client
	group  singleflight.Group
	logger *slog.Logger
}

// NewService builds Service. cache may be nil; reads then go straight to the repository.
func NewService(repo RepositoryPort, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

func productKey(id int64) string {
	return fmt.Sprintf("catalog:product:%d", id)
}

// Get returns one product, served from cache when possible.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, productKey(id)).Bytes()
		if err == nil {
			var p Product
			if err := json.Unmarshal(raw, &p); err == nil {
				return p, nil
			}
		} else if !errors.Is(err, redis.Nil) && s.logger != nil {
			s.logger.Warn("catalog cache read failed", slog.Int64("product_id", id), slog.Any("error", err))
		}
	}
	// Collapse concurrent misses for the same product into one repo read.
	v, err, _ := s.group.Do(productKey(id), func() (any, error) {
		p, err := s.repo.GetProduct(ctx, id)
		if err != nil {
			return Product{}, err
		}
		s.fill(ctx, p)
		return p, nil
	})
	if err != nil {
		return Product{}, err
	}
	return v.(Product), nil
}

// GetActive returns one product and fails with ErrNotFound for soft-deleted ones.
func (s *Service) GetActive(ctx context.Context, id int64) (Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if !p.Active {
		return Product{}, fmt.Errorf("%w: product %d is inactive", ErrNotFound, id)
	}
	return p, nil
}

// Invalidate drops the cached copy after a stock or catalog write.
func (s *Service) Invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, productKey(id)).Err(); err != nil && s.logger != nil {
		s.logger.Warn("catalog cache invalidate failed", slog.Int64("product_id", id), slog.Any("error", err))
	}
}

func (s *Service) fill(ctx context.Context, p Product) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, productKey(p.ID), raw, cacheTTL).Err(); err != nil && s.logger != nil {
		s.logger.Warn("catalog cache fill failed", slog.Int64("product_id", p.ID), slog.Any("error", err))
	}
}

// CreateProduct registers a product; its initial stock becomes the ledger base.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.SKU = strings.ToUpper(strings.TrimSpace(input.SKU))
	if input.Name == "" || input.SKU == "" {
		return Product{}, errors.New("catalog: name and sku required")
	}
	if input.SalePrice < 0 || input.PurchasePrice < 0 {
		return Product{}, ErrInvalidPrice
	}
	if input.InitialStock < 0 {
		return Product{}, errors.New("catalog: initial stock must be >= 0")
	}
	if _, err := s.repo.GetCategory(ctx, input.CategoryID); err != nil {
		return Product{}, fmt.Errorf("verify category: %w", err)
	}
	return s.repo.CreateProduct(ctx, input)
}

// UpdateProduct applies catalog edits and drops the cached copy.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input UpdateProductInput) (Product, error) {
	if input.SalePrice != nil && *input.SalePrice < 0 {
		return Product{}, ErrInvalidPrice
	}
	if input.PurchasePrice != nil && *input.PurchasePrice < 0 {
		return Product{}, ErrInvalidPrice
	}
	if input.CategoryID != nil {
		if _, err := s.repo.GetCategory(ctx, *input.CategoryID); err != nil {
			return Product{}, fmt.Errorf("verify category: %w", err)
		}
	}
	p, err := s.repo.UpdateProduct(ctx, id, input)
	if err != nil {
		return Product{}, err
	}
	s.Invalidate(ctx, id)
	return p, nil
}

// CreateCategory registers a category.
func (s *Service) CreateCategory(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, errors.New("catalog: category name required")
	}
	return s.repo.CreateCategory(ctx, name)
}
