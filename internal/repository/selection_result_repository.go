package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
)

const selectionResultColumns = `id, tenant_id, admission_path_id, quota_accepted, quota_reserved, total_candidates,
       cutoff_score_accepted, cutoff_score_reserved, finalized_by, published_at`

// SelectionResultRepository persists finalized selection snapshots.
type SelectionResultRepository struct {
	db *sqlx.DB
}

// NewSelectionResultRepository constructs the repository.
func NewSelectionResultRepository(db *sqlx.DB) *SelectionResultRepository {
	return &SelectionResultRepository{db: db}
}

func (r *SelectionResultRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts the result header.
func (r *SelectionResultRepository) Create(ctx context.Context, exec sqlx.ExtContext, result *models.SelectionResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.PublishedAt.IsZero() {
		result.PublishedAt = time.Now().UTC()
	}
	const query = `INSERT INTO selection_results
(id, tenant_id, admission_path_id, quota_accepted, quota_reserved, total_candidates, cutoff_score_accepted, cutoff_score_reserved, finalized_by, published_at)
VALUES (:id, :tenant_id, :admission_path_id, :quota_accepted, :quota_reserved, :total_candidates, :cutoff_score_accepted, :cutoff_score_reserved, :finalized_by, :published_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, result); err != nil {
		return fmt.Errorf("create selection result: %w", err)
	}
	return nil
}

// CreateDetails inserts all detail rows of a result in one statement.
func (r *SelectionResultRepository) CreateDetails(ctx context.Context, exec sqlx.ExtContext, details []models.SelectionResultDetail) error {
	if len(details) == 0 {
		return nil
	}
	for i := range details {
		if details[i].ID == "" {
			details[i].ID = uuid.NewString()
		}
	}
	const query = `INSERT INTO selection_result_details (id, selection_result_id, application_id, rank, total_score, status)
VALUES (:id, :selection_result_id, :application_id, :rank, :total_score, :status)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, details); err != nil {
		return fmt.Errorf("create selection result details: %w", err)
	}
	return nil
}

// Latest returns the most recently published result of the path.
func (r *SelectionResultRepository) Latest(ctx context.Context, exec sqlx.ExtContext, tenantID, pathID string) (*models.SelectionResult, error) {
	query := `SELECT ` + selectionResultColumns + ` FROM selection_results
WHERE tenant_id = $1 AND admission_path_id = $2 ORDER BY published_at DESC LIMIT 1`
	var result models.SelectionResult
	if err := sqlx.GetContext(ctx, r.exec(exec), &result, query, tenantID, pathID); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExistsForPath reports whether the path has ever been finalized.
func (r *SelectionResultRepository) ExistsForPath(ctx context.Context, exec sqlx.ExtContext, tenantID, pathID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM selection_results WHERE tenant_id = $1 AND admission_path_id = $2)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, tenantID, pathID); err != nil {
		return false, fmt.Errorf("check selection result: %w", err)
	}
	return exists, nil
}

// ListDetails returns the detail rows of a result ordered by rank, with the
// candidate display name.
func (r *SelectionResultRepository) ListDetails(ctx context.Context, tenantID, resultID string) ([]models.SelectionResultDetail, error) {
	const query = `SELECT d.id, d.selection_result_id, d.application_id, d.rank, d.total_score, d.status,
       COALESCE(NULLIF(a.child_full_name, ''), 'Unknown') AS name
FROM selection_result_details d
JOIN selection_results r ON r.id = d.selection_result_id AND r.tenant_id = $1
JOIN applications a ON a.id = d.application_id AND a.tenant_id = r.tenant_id
WHERE d.selection_result_id = $2
ORDER BY d.rank ASC`
	var details []models.SelectionResultDetail
	if err := r.db.SelectContext(ctx, &details, query, tenantID, resultID); err != nil {
		return nil, fmt.Errorf("list selection result details: %w", err)
	}
	return details, nil
}

// BestReserved returns the reserved detail with the lowest rank together with
// the live application state.
func (r *SelectionResultRepository) BestReserved(ctx context.Context, exec sqlx.ExtContext, tenantID, resultID string) (*models.WaitlistCandidate, error) {
	const query = `SELECT d.id AS detail_id, d.rank, a.id AS application_id, a.status, a.child_full_name, a.parent_full_name, a.parent_phone
FROM selection_result_details d
JOIN selection_results r ON r.id = d.selection_result_id AND r.tenant_id = $1
JOIN applications a ON a.id = d.application_id AND a.tenant_id = r.tenant_id
WHERE d.selection_result_id = $2 AND d.status = $3
ORDER BY d.rank ASC
LIMIT 1`
	var candidate models.WaitlistCandidate
	if err := sqlx.GetContext(ctx, r.exec(exec), &candidate, query, tenantID, resultID, models.DetailReserved); err != nil {
		return nil, err
	}
	return &candidate, nil
}

// UpdateDetailStatus rewrites the outcome of one detail row.
func (r *SelectionResultRepository) UpdateDetailStatus(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, status models.SelectionDetailStatus) error {
	const query = `UPDATE selection_result_details d SET status = $1
FROM selection_results r
WHERE d.id = $2 AND r.id = d.selection_result_id AND r.tenant_id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, status, id, tenantID)
	if err != nil {
		return fmt.Errorf("update selection detail status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("selection detail rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
