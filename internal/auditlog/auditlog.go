// Package auditlog records a trail of dispatched actions: not tree state,
// an operational history of what the Action Manager did, scoped the way
// the teacher's alert history scopes alerts rather than raw events.
package auditlog

import (
	"context"
	"time"
)

// Record is one audit entry: a single top-level handle_action call's
// outcome.
type Record struct {
	OccurredAt    time.Time
	ActionSummary string
	Outcome       string // "success" or "failure"
	Error         string
}

// AuditLog persists Records. Selected by the audit.backend config setting:
// SQLite for "sqlite", Postgres for "postgres".
type AuditLog interface {
	Record(ctx context.Context, rec Record) error
	Close() error
}

// NopAuditLog discards every record; used when no audit backend is
// configured.
type NopAuditLog struct{}

func (NopAuditLog) Record(context.Context, Record) error { return nil }
func (NopAuditLog) Close() error                          { return nil }
