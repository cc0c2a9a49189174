package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
)

const admissionPathColumns = `id, tenant_id, name, quota, status, created_at, updated_at`

// AdmissionPathRepository reads and locks admission paths.
type AdmissionPathRepository struct {
	db *sqlx.DB
}

// NewAdmissionPathRepository constructs the repository.
func NewAdmissionPathRepository(db *sqlx.DB) *AdmissionPathRepository {
	return &AdmissionPathRepository{db: db}
}

func (r *AdmissionPathRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// GetForTenant loads a path owned by the tenant.
func (r *AdmissionPathRepository) GetForTenant(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.AdmissionPath, error) {
	query := `SELECT ` + admissionPathColumns + ` FROM admission_paths WHERE id = $1 AND tenant_id = $2`
	var path models.AdmissionPath
	if err := sqlx.GetContext(ctx, r.exec(exec), &path, query, id, tenantID); err != nil {
		return nil, err
	}
	return &path, nil
}

// LockForUpdate loads the path row with a row lock held until the transaction ends.
func (r *AdmissionPathRepository) LockForUpdate(ctx context.Context, tx sqlx.ExtContext, tenantID, id string) (*models.AdmissionPath, error) {
	query := `SELECT ` + admissionPathColumns + ` FROM admission_paths WHERE id = $1 AND tenant_id = $2 FOR UPDATE`
	var path models.AdmissionPath
	if err := sqlx.GetContext(ctx, tx, &path, query, id, tenantID); err != nil {
		return nil, err
	}
	return &path, nil
}

// CountAccepted counts applications currently accepted on the path.
func (r *AdmissionPathRepository) CountAccepted(ctx context.Context, exec sqlx.ExtContext, tenantID, pathID string) (int, error) {
	const query = `SELECT COUNT(*) FROM applications WHERE tenant_id = $1 AND admission_path_id = $2 AND status = $3`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, tenantID, pathID, models.ApplicationAccepted); err != nil {
		return 0, fmt.Errorf("count accepted applications: %w", err)
	}
	return count, nil
}

// UpdateQuota changes the path capacity.
func (r *AdmissionPathRepository) UpdateQuota(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, quota int) error {
	const query = `UPDATE admission_paths SET quota = $1, updated_at = $2 WHERE id = $3 AND tenant_id = $4`
	result, err := r.exec(exec).ExecContext(ctx, query, quota, time.Now().UTC(), id, tenantID)
	if err != nil {
		return fmt.Errorf("update admission path quota: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("admission path quota rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
