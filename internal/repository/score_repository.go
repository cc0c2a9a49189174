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

const scoreColumns = `id, application_id, tenant_id, scorer_id, score, notes, is_finalized, finalized_at,
       unlocked_by, unlocked_at, unlock_reason, created_at, updated_at`

// ScoreRepository persists application scores.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository constructs the repository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

func (r *ScoreRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// GetByApplication loads the score of an application.
func (r *ScoreRepository) GetByApplication(ctx context.Context, exec sqlx.ExtContext, tenantID, applicationID string) (*models.ApplicationScore, error) {
	query := `SELECT ` + scoreColumns + ` FROM application_scores WHERE application_id = $1 AND tenant_id = $2`
	var score models.ApplicationScore
	if err := sqlx.GetContext(ctx, r.exec(exec), &score, query, applicationID, tenantID); err != nil {
		return nil, err
	}
	return &score, nil
}

// GetByID loads a score by identifier, locking it when called inside a transaction.
func (r *ScoreRepository) GetByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, forUpdate bool) (*models.ApplicationScore, error) {
	query := `SELECT ` + scoreColumns + ` FROM application_scores WHERE id = $1 AND tenant_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var score models.ApplicationScore
	if err := sqlx.GetContext(ctx, r.exec(exec), &score, query, id, tenantID); err != nil {
		return nil, err
	}
	return &score, nil
}

// Upsert inserts or replaces the single score row of an application. Rows that
// are already finalized are left untouched and sql.ErrNoRows is returned.
func (r *ScoreRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, score *models.ApplicationScore) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if score.CreatedAt.IsZero() {
		score.CreatedAt = now
	}
	score.UpdatedAt = now
	if score.IsFinalized && score.FinalizedAt == nil {
		score.FinalizedAt = &now
	}

	const query = `
INSERT INTO application_scores (id, application_id, tenant_id, scorer_id, score, notes, is_finalized, finalized_at, created_at, updated_at)
VALUES (:id, :application_id, :tenant_id, :scorer_id, :score, :notes, :is_finalized, :finalized_at, :created_at, :updated_at)
ON CONFLICT (application_id, tenant_id) DO UPDATE SET
    scorer_id = EXCLUDED.scorer_id,
    score = EXCLUDED.score,
    notes = EXCLUDED.notes,
    is_finalized = EXCLUDED.is_finalized,
    finalized_at = EXCLUDED.finalized_at,
    updated_at = EXCLUDED.updated_at
WHERE application_scores.is_finalized = FALSE
RETURNING id`

	named, args, err := sqlx.Named(query, score)
	if err != nil {
		return fmt.Errorf("bind score upsert: %w", err)
	}
	target := r.exec(exec)
	var id string
	if err := sqlx.GetContext(ctx, target, &id, target.Rebind(named), args...); err != nil {
		return err
	}
	score.ID = id
	return nil
}

// Unlock clears the finalized flag and records who reopened the score.
func (r *ScoreRepository) Unlock(ctx context.Context, exec sqlx.ExtContext, tenantID, id, actorID, reason string) error {
	const query = `UPDATE application_scores
SET is_finalized = FALSE, finalized_at = NULL, unlocked_by = $1, unlocked_at = $2, unlock_reason = $3, updated_at = $2
WHERE id = $4 AND tenant_id = $5 AND is_finalized = TRUE`
	result, err := r.exec(exec).ExecContext(ctx, query, actorID, time.Now().UTC(), reason, id, tenantID)
	if err != nil {
		return fmt.Errorf("unlock score: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unlock score rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
