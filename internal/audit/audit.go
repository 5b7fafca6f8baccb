// Package audit records administrator actions. Overrides, bulk mutations and
// sweeps all leave a trail here; the scan path never writes to it.
package audit

import (
	"context"
	"database/sql"
	"log"

	"github.com/google/uuid"
)

// Log writes audit entries to Postgres.
type Log struct {
	db *sql.DB
}

// New creates an audit log over the given database.
func New(db *sql.DB) *Log {
	return &Log{db: db}
}

// Record stores one entry. Auditing is best-effort: a failed insert is logged
// and swallowed so it never blocks the action it describes.
func (l *Log) Record(ctx context.Context, actor, action, detail string) {
	if l == nil || l.db == nil {
		return
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, actor, action, detail)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), actor, action, detail)
	if err != nil {
		log.Printf("audit: %s %s failed: %v", actor, action, err)
	}
}
