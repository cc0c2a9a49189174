package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
)

const applicationColumns = `id, tenant_id, user_id, admission_path_id, status, version, child_full_name, child_dob,
       parent_full_name, parent_phone, distance_m, custom_field_values, answered_custom_fields, current_step,
       submitted_at, created_at, updated_at`

// ApplicationRepository persists applications and their draft state.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListEligible returns verified applications with a finalized score on the
// path, in ranking order.
func (r *ApplicationRepository) ListEligible(ctx context.Context, exec sqlx.ExtContext, tenantID, pathID string) ([]models.EligibleCandidate, error) {
	const query = `
SELECT a.id AS application_id, a.child_full_name, s.score, a.distance_m, a.child_dob, a.created_at
FROM applications a
JOIN application_scores s ON s.application_id = a.id AND s.tenant_id = a.tenant_id
WHERE a.tenant_id = $1 AND a.admission_path_id = $2 AND a.status = $3 AND s.is_finalized = TRUE
ORDER BY s.score DESC, COALESCE(a.distance_m, 0) ASC, a.child_dob ASC NULLS LAST, a.created_at ASC, a.id ASC`
	var rows []models.EligibleCandidate
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query, tenantID, pathID, models.ApplicationVerified); err != nil {
		return nil, fmt.Errorf("list eligible applications: %w", err)
	}
	return rows, nil
}

// GetForTenant loads an application within the tenant.
func (r *ApplicationRepository) GetForTenant(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1 AND tenant_id = $2`
	var app models.Application
	if err := sqlx.GetContext(ctx, r.exec(exec), &app, query, id, tenantID); err != nil {
		return nil, err
	}
	return &app, nil
}

// GetOwned loads an application scoped to its owner and tenant.
func (r *ApplicationRepository) GetOwned(ctx context.Context, id, userID, tenantID string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1 AND user_id = $2 AND tenant_id = $3`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id, userID, tenantID); err != nil {
		return nil, err
	}
	return &app, nil
}

// SaveDraft writes the draft columns and bumps the version in one statement,
// only if the stored version still equals update.ExpectedVersion. It returns
// sql.ErrNoRows when no row matched.
func (r *ApplicationRepository) SaveDraft(ctx context.Context, update models.DraftUpdate) (int, error) {
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = time.Now().UTC()
	}
	setParts := []string{"version = version + 1", "updated_at = :updated_at"}
	args := map[string]interface{}{
		"id":         update.ApplicationID,
		"user_id":    update.UserID,
		"tenant_id":  update.TenantID,
		"version":    update.ExpectedVersion,
		"updated_at": update.UpdatedAt,
		"status":     models.ApplicationDraft,
	}
	set := func(column string, value interface{}) {
		setParts = append(setParts, fmt.Sprintf("%s = :%s", column, column))
		args[column] = value
	}
	if update.ChildFullName != nil {
		set("child_full_name", *update.ChildFullName)
	}
	if update.ChildDOB != nil {
		set("child_dob", *update.ChildDOB)
	}
	if update.ParentFullName != nil {
		set("parent_full_name", *update.ParentFullName)
	}
	if update.ParentPhone != nil {
		set("parent_phone", *update.ParentPhone)
	}
	if update.DistanceM != nil {
		set("distance_m", *update.DistanceM)
	}
	if update.CurrentStep != nil {
		set("current_step", *update.CurrentStep)
	}
	if len(update.CustomFieldValues) > 0 {
		set("custom_field_values", update.CustomFieldValues)
	}
	if len(update.AnsweredCustomFields) > 0 {
		set("answered_custom_fields", update.AnsweredCustomFields)
	}

	query := fmt.Sprintf(`UPDATE applications SET %s
WHERE id = :id AND user_id = :user_id AND tenant_id = :tenant_id AND version = :version AND status = :status
RETURNING version`, strings.Join(setParts, ", "))

	named, namedArgs, err := sqlx.Named(query, args)
	if err != nil {
		return 0, fmt.Errorf("bind draft update: %w", err)
	}
	named = r.db.Rebind(named)

	var version int
	if err := r.db.GetContext(ctx, &version, named, namedArgs...); err != nil {
		return 0, err
	}
	return version, nil
}

// UpdateStatus moves an application from one status to another. It returns
// sql.ErrNoRows when the row is absent or no longer in the expected status.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, from, to models.ApplicationStatus) error {
	const query = `UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3 AND tenant_id = $4 AND status = $5`
	result, err := r.exec(exec).ExecContext(ctx, query, to, time.Now().UTC(), id, tenantID, from)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("application status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
