package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// SequenceDB is the subset of pgx needed to bump a counter. Both pools and
// open transactions satisfy it, so numbers can be allocated inside the same
// unit of work that creates the document.
type SequenceDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NextSequence returns the next per-day counter value for the given document
// kind. The counter row is created on first use.
func NextSequence(ctx context.Context, db SequenceDB, kind string, day time.Time) (int64, error) {
	var n int64
	err := db.QueryRow(ctx,
		`INSERT INTO doc_sequences (kind, day, counter) VALUES ($1, $2, 1)
		 ON CONFLICT (kind, day) DO UPDATE SET counter = doc_sequences.counter + 1
		 RETURNING counter`,
		kind, day.Format("2006-01-02")).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("shared: next sequence %s: %w", kind, err)
	}
	return n, nil
}
