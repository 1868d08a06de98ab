package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/division-console/internal/models"
)

const deletionAuditSchema = `CREATE TABLE IF NOT EXISTS division_deletion_audit (
	id BIGSERIAL PRIMARY KEY,
	batch_id TEXT NOT NULL,
	division_id TEXT NOT NULL,
	path TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_division_deletion_audit_batch ON division_deletion_audit (batch_id, id)`

// DeletionAuditRepository records per-item outcomes of bulk deletions.
type DeletionAuditRepository struct {
	db *sqlx.DB
}

// NewDeletionAuditRepository constructs the repository.
func NewDeletionAuditRepository(db *sqlx.DB) *DeletionAuditRepository {
	return &DeletionAuditRepository{db: db}
}

// EnsureSchema creates the audit table when missing.
func (r *DeletionAuditRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, deletionAuditSchema); err != nil {
		return fmt.Errorf("ensure deletion audit schema: %w", err)
	}
	return nil
}

// Record inserts one outcome row.
func (r *DeletionAuditRepository) Record(ctx context.Context, entry *models.DeletionAuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO division_deletion_audit (batch_id, division_id, path, status, message, created_at)
VALUES (:batch_id, :division_id, :path, :status, :message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("record deletion audit: %w", err)
	}
	return nil
}

// ListByBatch returns the outcomes of a batch in processing order.
func (r *DeletionAuditRepository) ListByBatch(ctx context.Context, batchID string) ([]models.DeletionAuditEntry, error) {
	const query = `SELECT id, batch_id, division_id, path, status, message, created_at
FROM division_deletion_audit WHERE batch_id = $1 ORDER BY id ASC`
	entries := []models.DeletionAuditEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, batchID); err != nil {
		return nil, fmt.Errorf("list deletion audit: %w", err)
	}
	return entries, nil
}

// Ping checks database connectivity.
func (r *DeletionAuditRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
