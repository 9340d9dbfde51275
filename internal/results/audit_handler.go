package results

import (
	"context"
	"log"

	"dataflowd/internal/dataflow"
)

// auditor is the subset of internal/audit.Log this package depends on,
// kept narrow so results never needs to import the pgx stack directly.
type auditor interface {
	Record(ctx context.Context, conn dataflow.ConnID, exprName string, timestamp dataflow.Timestamp, rowCount int) error
}

// AuditingHandler wraps another PeekResultsHandler and records every
// retirement to an auditor before delegating delivery. Audit failures
// are logged and otherwise ignored: the audit trail must never become
// a reason a peek fails to deliver.
type AuditingHandler struct {
	Next dataflow.PeekResultsHandler
	Log  auditor
}

// Deliver records the retirement, then delegates to Next.
func (h *AuditingHandler) Deliver(conn dataflow.ConnID, exprName string, timestamp dataflow.Timestamp, rows []dataflow.Row) error {
	if h.Log != nil {
		if err := h.Log.Record(context.Background(), conn, exprName, timestamp, len(rows)); err != nil {
			log.Printf("results: audit record failed: %v", err)
		}
	}
	return h.Next.Deliver(conn, exprName, timestamp, rows)
}
