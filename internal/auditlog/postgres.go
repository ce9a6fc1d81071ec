package auditlog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS audit_log (
    id BIGSERIAL PRIMARY KEY,
    occurred_at TIMESTAMPTZ NOT NULL,
    action_summary TEXT NOT NULL,
    outcome TEXT NOT NULL,
    error TEXT
)`

// PostgresAuditLog is the "standard" profile backend.
type PostgresAuditLog struct {
	pool *pgxpool.Pool
}

// OpenPostgresAuditLog connects to dsn and ensures the audit_log table
// exists.
func OpenPostgresAuditLog(ctx context.Context, dsn string) (*PostgresAuditLog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("auditlog: connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("auditlog: create schema: %w", err)
	}
	return &PostgresAuditLog{pool: pool}, nil
}

func (a *PostgresAuditLog) Record(ctx context.Context, rec Record) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO audit_log (occurred_at, action_summary, outcome, error) VALUES ($1, $2, $3, $4)`,
		rec.OccurredAt, rec.ActionSummary, rec.Outcome, rec.Error)
	if err != nil {
		return fmt.Errorf("auditlog: insert: %w", err)
	}
	return nil
}

func (a *PostgresAuditLog) Close() error {
	a.pool.Close()
	return nil
}
