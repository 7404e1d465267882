package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions emitted by the engine after each state transition.
const (
	ActionSaleCreated       = "SALE_CREATED"
	ActionSaleCompleted     = "SALE_COMPLETED"
	ActionSaleCancelled     = "SALE_CANCELLED"
	ActionReturnCreated     = "RETURN_CREATED"
	ActionReturnApproved    = "RETURN_APPROVED"
	ActionReturnRejected    = "RETURN_REJECTED"
	ActionDebtPayment       = "DEBT_PAYMENT"
	ActionDebtCancelled     = "DEBT_CANCELLED"
	ActionInventoryAdjusted = "INVENTORY_ADJUSTED"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditPort is implemented by audit sinks. Delivery is best effort relative to
// the business transaction: callers log failures instead of propagating them.
type AuditPort interface {
	Record(ctx context.Context, log AuditLog) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6)`, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, log.At)
	return err
}
