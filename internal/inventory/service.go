package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/savdo-pos/savdo-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, LedgerWriter) error) error
	ListEntries(ctx context.Context, productID int64, limit int32) ([]Entry, error)
}

// CacheInvalidator drops cached product reads after stock writes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, productID int64)
}

// Service coordinates manual stock operations. Sale and return movements go
// through the same Ledger but inside their owning module's transaction.
type Service struct {
	repo        RepositoryPort
	ledger      Ledger
	audit       shared.AuditPort
	invalidator CacheInvalidator
	logger      *slog.Logger
}

// NewService builds Service. audit and invalidator may be nil.
func NewService(repo RepositoryPort, audit shared.AuditPort, invalidator CacheInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, invalidator: invalidator, logger: logger}
}

// AdjustmentInput describes a manual stock correction.
type AdjustmentInput struct {
	ProductID int64
	Delta     int64
	Note      string
	ActorID   int64
}

// RestockInput describes inbound replenishment.
type RestockInput struct {
	ProductID int64
	Quantity  int64
	Note      string
	ActorID   int64
}

// Adjust posts a manual correction, positive or negative.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (Entry, error) {
	if input.ProductID == 0 {
		return Entry{}, ErrProductNotFound
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, w LedgerWriter) error {
		var err error
		entry, err = s.ledger.Adjust(ctx, w, input.ProductID, input.Delta, input.Note, input.ActorID)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	s.afterWrite(ctx, entry, shared.ActionInventoryAdjusted)
	return entry, nil
}

// Restock posts inbound stock.
func (s *Service) Restock(ctx context.Context, input RestockInput) (Entry, error) {
	if input.ProductID == 0 {
		return Entry{}, ErrProductNotFound
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, w LedgerWriter) error {
		var err error
		entry, err = s.ledger.Increment(ctx, w, Movement{
			ProductID: input.ProductID,
			Quantity:  input.Quantity,
			Type:      EntryTypeRestock,
			Note:      input.Note,
			ActorID:   input.ActorID,
		})
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	s.afterWrite(ctx, entry, shared.ActionInventoryAdjusted)
	return entry, nil
}

// ProductLedger lists a product's recent ledger rows.
func (s *Service) ProductLedger(ctx context.Context, productID int64, limit int32) ([]Entry, error) {
	return s.repo.ListEntries(ctx, productID, limit)
}

func (s *Service) afterWrite(ctx context.Context, entry Entry, action string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, entry.ProductID)
	}
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  entry.CreatedBy,
		Action:   action,
		Entity:   "inventory_ledger",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"product_id":  entry.ProductID,
			"entry_type":  string(entry.Type),
			"delta":       entry.Delta,
			"stock_after": entry.StockAfter,
			"note":        entry.Note,
		},
	})
	if err != nil && s.logger != nil {
		s.logger.Error("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
