package returns

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/savdo-pos/savdo-pos/internal/inventory"
	"github.com/savdo-pos/savdo-pos/internal/shared"
)

// Sale statuses a return may be raised against. Partially returned sales
// accept further returns up to the remaining quantities.
const (
	saleStatusCompleted = "COMPLETED"
	saleStatusReturned  = "RETURNED"
)

// Service processes return requests against completed sales.
type Service struct {
	repo        Repository
	ledger      inventory.Ledger
	audit       shared.AuditPort
	invalidator inventory.CacheInvalidator
	logger      *slog.Logger
}

// NewService builds Service. audit and invalidator may be nil.
func NewService(repo Repository, audit shared.AuditPort, invalidator inventory.CacheInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, invalidator: invalidator, logger: logger}
}

// ItemInput requests the return of part of one sale item.
type ItemInput struct {
	SaleItemID int64
	Quantity   int64
}

// CreateInput describes a new return request.
type CreateInput struct {
	SaleID  int64
	Items   []ItemInput
	Reason  string
	ActorID int64
}

// Create validates returnable quantities and records a PENDING return. The
// refund is priced from the sale item's frozen custom unit price; no stock or
// money moves until approval.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Return, error) {
	if len(input.Items) == 0 {
		return nil, ErrEmptyItems
	}

	var returnID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, input.SaleID)
		if err != nil {
			return err
		}
		if sale.Status != saleStatusCompleted && sale.Status != saleStatusReturned {
			return fmt.Errorf("%w: sale %d is %s", ErrInvalidState, sale.ID, sale.Status)
		}

		saleItems := make(map[int64]SaleItemInfo, len(sale.Items))
		for _, it := range sale.Items {
			saleItems[it.ID] = it
		}
		approved, err := tx.ApprovedQuantities(ctx, input.SaleID)
		if err != nil {
			return err
		}

		var items []ReturnItem
		var refundAmount int64
		for i, req := range input.Items {
			if req.Quantity <= 0 {
				return fmt.Errorf("line %d: %w", i+1, ErrInvalidQuantity)
			}
			saleItem, ok := saleItems[req.SaleItemID]
			if !ok {
				return fmt.Errorf("line %d: %w: sale item %d", i+1, ErrSaleItemUnknown, req.SaleItemID)
			}
			remaining := saleItem.Quantity - approved[req.SaleItemID]
			if req.Quantity > remaining {
				return &OverReturnError{SaleItemID: req.SaleItemID, Requested: req.Quantity, Remaining: remaining}
			}

			item := ReturnItem{
				SaleItemID:      saleItem.ID,
				ProductID:       saleItem.ProductID,
				Quantity:        req.Quantity,
				RefundUnitPrice: saleItem.CustomUnitPrice,
				RefundTotal:     saleItem.CustomUnitPrice * req.Quantity,
			}
			refundAmount += item.RefundTotal
			items = append(items, item)
		}

		ret := Return{
			Number:       newReturnNumber(time.Now().UTC()),
			SaleID:       input.SaleID,
			Status:       StatusPending,
			Reason:       input.Reason,
			RefundAmount: refundAmount,
			CreatedBy:    input.ActorID,
		}
		returnID, err = tx.InsertReturn(ctx, ret)
		if err != nil {
			return fmt.Errorf("insert return: %w", err)
		}
		return tx.InsertItems(ctx, returnID, items)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, input.ActorID, shared.ActionReturnCreated, returnID, map[string]any{
		"sale_id": input.SaleID,
		"reason":  input.Reason,
	})
	return s.repo.Get(ctx, returnID)
}

// Approve restores stock through the ledger and flags the parent sale
// RETURNED. The sale's debt, if any, is deliberately untouched; reducing it
// is a separate explicit operation.
func (s *Service) Approve(ctx context.Context, returnID, actorID int64) (*Return, error) {
	var productIDs []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ret, err := tx.GetReturnForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		if ret.Status != StatusPending {
			return fmt.Errorf("%w: return %d is %s", ErrInvalidState, ret.ID, ret.Status)
		}

		sale, err := tx.GetSaleForUpdate(ctx, ret.SaleID)
		if err != nil {
			return err
		}

		// Re-validate against returns approved since this one was created.
		saleItems := make(map[int64]SaleItemInfo, len(sale.Items))
		for _, it := range sale.Items {
			saleItems[it.ID] = it
		}
		approved, err := tx.ApprovedQuantities(ctx, ret.SaleID)
		if err != nil {
			return err
		}
		for _, item := range ret.Items {
			remaining := saleItems[item.SaleItemID].Quantity - approved[item.SaleItemID]
			if item.Quantity > remaining {
				return &OverReturnError{SaleItemID: item.SaleItemID, Requested: item.Quantity, Remaining: remaining}
			}
		}

		for _, item := range ret.Items {
			_, err := s.ledger.Increment(ctx, tx, inventory.Movement{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Type:      inventory.EntryTypeReturn,
				RefType:   inventory.RefTypeReturn,
				RefID:     ret.ID,
				Note:      ret.Number,
				ActorID:   actorID,
			})
			if err != nil {
				return err
			}
			productIDs = append(productIDs, item.ProductID)
		}

		if err := tx.SetSaleReturned(ctx, ret.SaleID); err != nil {
			return err
		}
		now := time.Now().UTC()
		return tx.UpdateReturnStatus(ctx, ret.ID, StatusApproved, &now)
	})
	if err != nil {
		return nil, err
	}

	if s.invalidator != nil {
		for _, id := range productIDs {
			s.invalidator.Invalidate(ctx, id)
		}
	}
	s.recordAudit(ctx, actorID, shared.ActionReturnApproved, returnID, nil)
	return s.repo.Get(ctx, returnID)
}

// Reject declines a pending return without side effects.
func (s *Service) Reject(ctx context.Context, returnID, actorID int64) (*Return, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ret, err := tx.GetReturnForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		if ret.Status != StatusPending {
			return fmt.Errorf("%w: return %d is %s", ErrInvalidState, ret.ID, ret.Status)
		}
		return tx.UpdateReturnStatus(ctx, ret.ID, StatusRejected, nil)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actorID, shared.ActionReturnRejected, returnID, nil)
	return s.repo.Get(ctx, returnID)
}

// Get returns one return with items.
func (s *Service) Get(ctx context.Context, id int64) (*Return, error) {
	return s.repo.Get(ctx, id)
}

func newReturnNumber(now time.Time) string {
	return fmt.Sprintf("RT-%s-%s", now.Format("20060102"), uuid.NewString()[:8])
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, returnID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "return",
		EntityID: fmt.Sprintf("%d", returnID),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
