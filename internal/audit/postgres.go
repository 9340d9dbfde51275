// Package audit is additive observability: a best-effort Postgres log
// of peek retirements. It never feeds back into the core's state — the
// core still carries no persistence of dataflow definitions across
// restart (spec.md §1 Non-goals) — it only records what happened, the
// way DBAShand-cdc-sink-redshift's resolved_table.go upserts a
// per-stream resolved-timestamp watermark row purely for operators to
// inspect.
package audit

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dataflowd/internal/dataflow"
)

const schema = `
CREATE TABLE IF NOT EXISTS peek_audit (
	id          BIGSERIAL PRIMARY KEY,
	conn_id     TEXT NOT NULL,
	expr_name   TEXT NOT NULL,
	timestamp   BIGINT NOT NULL,
	row_count   INT NOT NULL,
	retired_at  TIMESTAMPTZ NOT NULL
)
`

// Log is a best-effort peek-retirement audit sink, backed by a
// pgxpool.Pool the same way internal/repository/postgres.go pools its
// connection to Postgres.
type Log struct {
	db *pgxpool.Pool
}

// NewLog connects to dbURL and ensures the audit table exists.
func NewLog(dbURL string) (*Log, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("audit: parse db url: %w", err)
	}
	if v := os.Getenv("AUDIT_DB_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.MaxConns = int32(n)
		}
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("audit: connect to db: %w", err)
	}

	if _, err := pool.Exec(context.Background(), schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit: create peek_audit table: %w", err)
	}

	return &Log{db: pool}, nil
}

// Record appends one row describing a peek retirement. Failures are
// logged by the caller and otherwise ignored: the audit trail is
// strictly observability and must never become a reason a peek fails
// to deliver (spec.md §4.6's delivery semantics are unaffected by
// whether this succeeds).
func (l *Log) Record(ctx context.Context, conn dataflow.ConnID, exprName string, timestamp dataflow.Timestamp, rowCount int) error {
	_, err := l.db.Exec(ctx,
		`INSERT INTO peek_audit (conn_id, expr_name, timestamp, row_count, retired_at) VALUES ($1, $2, $3, $4, $5)`,
		conn.String(), exprName, int64(timestamp), rowCount, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("audit: record peek: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (l *Log) Close() {
	l.db.Close()
}
