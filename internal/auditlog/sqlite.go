package auditlog

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteAuditLog is the "lite" profile backend: a local SQLite file,
// schema managed by goose migrations embedded in the binary.
type SQLiteAuditLog struct {
	db *sql.DB
}

// OpenSQLiteAuditLog opens (creating if necessary) a SQLite audit log at
// path and brings its schema up to date.
func OpenSQLiteAuditLog(path string) (*SQLiteAuditLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("auditlog: open sqlite: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("auditlog: set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("auditlog: migrate: %w", err)
	}

	return &SQLiteAuditLog{db: db}, nil
}

func (a *SQLiteAuditLog) Record(ctx context.Context, rec Record) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO audit_log (occurred_at, action_summary, outcome, error) VALUES (?, ?, ?, ?)`,
		rec.OccurredAt, rec.ActionSummary, rec.Outcome, rec.Error)
	if err != nil {
		return fmt.Errorf("auditlog: insert: %w", err)
	}
	return nil
}

func (a *SQLiteAuditLog) Close() error {
	return a.db.Close()
}
