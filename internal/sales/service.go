package sales

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/savdo-pos/savdo-pos/internal/catalog"
	"github.com/savdo-pos/savdo-pos/internal/debts"
	"github.com/savdo-pos/savdo-pos/internal/inventory"
	"github.com/savdo-pos/savdo-pos/internal/shared"
)

// ProductReader is the catalog collaborator: current price, cost, stock and
// category for active products.
type ProductReader interface {
	GetActive(ctx context.Context, id int64) (catalog.Product, error)
}

// Service drives the sale state machine: draft, complete, cancel.
type Service struct {
	repo        Repository
	products    ProductReader
	ledger      inventory.Ledger
	audit       shared.AuditPort
	invalidator inventory.CacheInvalidator
	logger      *slog.Logger
}

// NewService builds Service. audit and invalidator may be nil.
func NewService(repo Repository, products ProductReader, audit shared.AuditPort, invalidator inventory.CacheInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, products: products, audit: audit, invalidator: invalidator, logger: logger}
}

// DraftItemInput is one requested cart line.
type DraftItemInput struct {
	ProductID       int64
	Quantity        int64
	CustomUnitPrice int64
	DiscountAmount  int64
}

// CreateDraftInput carries the cart for a new draft sale.
type CreateDraftInput struct {
	Items   []DraftItemInput
	ActorID int64
}

// CompleteInput carries the payment plan for completing a draft.
type CompleteInput struct {
	SaleID  int64
	Tenders []Tender
	Debtor  *Debtor
	ActorID int64
}

// CreateDraft snapshots catalog prices into line items and persists the sale
// as DRAFT. No stock or financial side effects happen yet.
func (s *Service) CreateDraft(ctx context.Context, input CreateDraftInput) (*Sale, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item required", ErrInvalidQuantity)
	}

	items := make([]SaleItem, 0, len(input.Items))
	for i, line := range input.Items {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrInvalidQuantity)
		}
		p, err := s.products.GetActive(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}

		customPrice := line.CustomUnitPrice
		if customPrice == 0 {
			customPrice = p.SalePrice
		}
		if customPrice < 0 {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrInvalidAmount)
		}

		item := SaleItem{
			ProductID:       p.ID,
			ProductName:     p.Name,
			CategoryName:    p.CategoryName,
			Unit:            p.Unit,
			BaseUnitPrice:   p.SalePrice,
			CustomUnitPrice: customPrice,
			PurchasePrice:   p.PurchasePrice,
			Quantity:        line.Quantity,
			BaseTotal:       p.SalePrice * line.Quantity,
			CustomTotal:     customPrice * line.Quantity,
			DiscountAmount:  line.DiscountAmount,
		}
		if item.DiscountAmount < 0 || item.DiscountAmount > item.CustomTotal {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrInvalidDiscount)
		}
		items = append(items, item)
	}

	var saleID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		saleID, err = tx.InsertSale(ctx, Sale{Number: number, Status: StatusDraft, CreatedBy: input.ActorID})
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		if _, err := tx.InsertItems(ctx, saleID, items); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, input.ActorID, shared.ActionSaleCreated, saleID, map[string]any{
		"item_count": len(items),
	})
	return s.repo.Get(ctx, saleID)
}

// Complete validates stock and the payment plan, freezes financials, writes
// ledger decrements and opens a debt if tendered, all in one atomic unit.
func (s *Service) Complete(ctx context.Context, input CompleteInput) (*Sale, error) {
	var grandTotal int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, input.SaleID)
		if err != nil {
			return err
		}
		if sale.Status != StatusDraft {
			return fmt.Errorf("%w: sale %d is %s", ErrInvalidState, sale.ID, sale.Status)
		}

		t := computeTotals(sale.Items)
		grandTotal = t.GrandTotal

		alloc, err := AllocatePayments(t.GrandTotal, input.Tenders, input.Debtor)
		if err != nil {
			return err
		}

		// Stock is re-checked and decremented under per-product row locks,
		// taken in ascending product id order across all sales.
		ordered := make([]SaleItem, len(sale.Items))
		copy(ordered, sale.Items)
		sort.Slice(ordered, func(i, j int) bool {
			if ordered[i].ProductID != ordered[j].ProductID {
				return ordered[i].ProductID < ordered[j].ProductID
			}
			return ordered[i].ID < ordered[j].ID
		})
		for _, item := range ordered {
			_, err := s.ledger.Decrement(ctx, tx, inventory.Movement{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Type:      inventory.EntryTypeSale,
				RefType:   inventory.RefTypeSale,
				RefID:     sale.ID,
				Note:      sale.Number,
				ActorID:   input.ActorID,
			})
			if err != nil {
				return err
			}
		}

		for _, p := range alloc.Payments {
			p.SaleID = sale.ID
			if _, err := tx.InsertPayment(ctx, p); err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}
		}

		if alloc.DebtAmount > 0 {
			debt, err := debts.NewOpen(sale.ID, alloc.DebtAmount, alloc.Debtor.Name, alloc.Debtor.Phone)
			if err != nil {
				return err
			}
			if _, err := tx.InsertDebt(ctx, debt); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		sale.Status = StatusCompleted
		sale.Subtotal = t.Subtotal
		sale.TotalDiscount = t.TotalDiscount
		sale.GrandTotal = t.GrandTotal
		sale.GrossProfit = t.GrossProfit
		sale.NetProfit = t.NetProfit
		sale.CompletedAt = &now
		return tx.CompleteSale(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	sale, err := s.repo.Get(ctx, input.SaleID)
	if err != nil {
		return nil, err
	}
	if s.invalidator != nil {
		for _, item := range sale.Items {
			s.invalidator.Invalidate(ctx, item.ProductID)
		}
	}
	s.recordAudit(ctx, input.ActorID, shared.ActionSaleCompleted, sale.ID, map[string]any{
		"number":      sale.Number,
		"grand_total": grandTotal,
		"has_debt":    sale.Debt != nil,
	})
	return sale, nil
}

// Cancel discards a draft. Completed sales are reversed through returns, not
// cancellation.
func (s *Service) Cancel(ctx context.Context, saleID int64, reason string, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != StatusDraft {
			return fmt.Errorf("%w: sale %d is %s", ErrInvalidState, sale.ID, sale.Status)
		}
		return tx.CancelSale(ctx, saleID, reason, time.Now().UTC())
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, shared.ActionSaleCancelled, saleID, map[string]any{"reason": reason})
	return nil
}

// Get returns one sale with items, payments and debt.
func (s *Service) Get(ctx context.Context, id int64) (*Sale, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, saleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sale",
		EntityID: fmt.Sprintf("%d", saleID),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
