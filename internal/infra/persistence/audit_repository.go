package persistence

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veridian-ai/textpipe/internal/domain"
)

const auditSchema = `CREATE TABLE IF NOT EXISTS audit_events (
	id          UUID PRIMARY KEY,
	operation   TEXT NOT NULL,
	duration_ms DOUBLE PRECISION NOT NULL,
	success     BOOLEAN NOT NULL,
	error_message TEXT,
	timestamp   TIMESTAMPTZ NOT NULL
)`

// AuditRepository persists audit events in Postgres.
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates the repository and ensures the audit table
// exists.
func NewAuditRepository(ctx context.Context, db *pgxpool.Pool) (*AuditRepository, error) {
	if _, err := db.Exec(ctx, auditSchema); err != nil {
		return nil, err
	}
	return &AuditRepository{db: db}, nil
}

func (r *AuditRepository) CreateAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	query := `INSERT INTO audit_events (id, operation, duration_ms, success, error_message, timestamp) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, query, event.ID, event.Operation, event.DurationMs, event.Success, event.Error, event.Timestamp)
	return err
}
