package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
)

// CustomFieldRepository reads tenant-defined form fields.
type CustomFieldRepository struct {
	db *sqlx.DB
}

// NewCustomFieldRepository constructs the repository.
func NewCustomFieldRepository(db *sqlx.DB) *CustomFieldRepository {
	return &CustomFieldRepository{db: db}
}

// ListForPath returns the fields of the path plus tenant-wide fields.
func (r *CustomFieldRepository) ListForPath(ctx context.Context, tenantID, pathID string) ([]models.CustomField, error) {
	const query = `SELECT id, tenant_id, admission_path_id, key, label, field_type, required, is_encrypted, step, "order"
FROM custom_fields
WHERE tenant_id = $1 AND (admission_path_id = $2 OR admission_path_id IS NULL)
ORDER BY step ASC, "order" ASC`
	var fields []models.CustomField
	if err := r.db.SelectContext(ctx, &fields, query, tenantID, pathID); err != nil {
		return nil, fmt.Errorf("list custom fields: %w", err)
	}
	return fields, nil
}
