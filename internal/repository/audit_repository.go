package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
)

// AuditRepository appends audit trail records.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts an audit entry, inside the caller's transaction when exec is set.
func (r *AuditRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if len(entry.Details) == 0 {
		entry.Details = types.JSONText(`{}`)
	}
	target := exec
	if target == nil {
		target = r.db
	}
	const query = `INSERT INTO audit_logs (id, tenant_id, actor_id, action, target, details, created_at)
VALUES (:id, :tenant_id, :actor_id, :action, :target, :details, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, query, entry); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
