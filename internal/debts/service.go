package debts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/savdo-pos/savdo-pos/internal/shared"
)

// ErrInvalidMethod indicates a debt payment in an unsupported instrument.
var ErrInvalidMethod = errors.New("debts: payment method must be CASH or CARD")

// Service owns the debt lifecycle after a sale completion opened it.
type Service struct {
	repo   Repository
	audit  shared.AuditPort
	logger *slog.Logger
}

// NewService builds Service. audit may be nil.
func NewService(repo Repository, audit shared.AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// PaymentInput describes a collection against an open debt.
type PaymentInput struct {
	DebtID  int64
	Amount  int64
	Method  string
	Note    string
	ActorID int64
}

// RecordPayment collects part or all of a debt. The payment lands as a
// Payment row on the debt's sale and the status is derived, never assigned.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (Debt, error) {
	if input.Amount <= 0 {
		return Debt{}, ErrInvalidAmount
	}
	if input.Method != "CASH" && input.Method != "CARD" {
		return Debt{}, fmt.Errorf("%w: got %q", ErrInvalidMethod, input.Method)
	}

	var debt Debt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.GetDebtForUpdate(ctx, input.DebtID)
		if err != nil {
			return err
		}
		if d.Status == StatusPaid || d.Status == StatusCancelled {
			return fmt.Errorf("%w: debt %d is %s", ErrAlreadySettled, d.ID, d.Status)
		}
		if input.Amount > d.RemainingAmount {
			return &OverPaymentError{DebtID: d.ID, Amount: input.Amount, Remaining: d.RemainingAmount}
		}

		d.RemainingAmount -= input.Amount
		d.Status = DeriveStatus(d.OriginalAmount, d.RemainingAmount)
		if d.Status == StatusPaid {
			now := time.Now().UTC()
			d.SettledAt = &now
		}

		if _, err := tx.InsertPayment(ctx, d.SaleID, d.ID, input.Method, input.Amount, input.Note); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if err := tx.UpdateDebt(ctx, d); err != nil {
			return err
		}
		debt = d
		return nil
	})
	if err != nil {
		return Debt{}, err
	}

	s.recordAudit(ctx, input.ActorID, shared.ActionDebtPayment, debt.ID, map[string]any{
		"sale_id":   debt.SaleID,
		"amount":    input.Amount,
		"method":    input.Method,
		"remaining": debt.RemainingAmount,
		"status":    string(debt.Status),
	})
	return debt, nil
}

// Cancel writes off an open debt. The remaining amount is kept as the
// historical record of what was forgiven; stock is never touched.
func (s *Service) Cancel(ctx context.Context, debtID, actorID int64) (Debt, error) {
	var debt Debt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.GetDebtForUpdate(ctx, debtID)
		if err != nil {
			return err
		}
		if d.Status != StatusPending && d.Status != StatusPartiallyPaid {
			return fmt.Errorf("%w: debt %d is %s", ErrAlreadySettled, d.ID, d.Status)
		}
		d.Status = StatusCancelled
		if err := tx.UpdateDebt(ctx, d); err != nil {
			return err
		}
		debt = d
		return nil
	})
	if err != nil {
		return Debt{}, err
	}

	s.recordAudit(ctx, actorID, shared.ActionDebtCancelled, debt.ID, map[string]any{
		"sale_id":     debt.SaleID,
		"written_off": debt.RemainingAmount,
	})
	return debt, nil
}

// Get returns one debt.
func (s *Service) Get(ctx context.Context, id int64) (Debt, error) {
	return s.repo.Get(ctx, id)
}

// ListOpen returns debts still awaiting collection.
func (s *Service) ListOpen(ctx context.Context) ([]Debt, error) {
	return s.repo.ListOpen(ctx)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, debtID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "debt",
		EntityID: fmt.Sprintf("%d", debtID),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
