package models

import "time"

// ApplicationScore stores the interview/assessment score of an application.
type ApplicationScore struct {
	ID            string     `db:"id" json:"id"`
	ApplicationID string     `db:"application_id" json:"applicationId"`
	TenantID      string     `db:"tenant_id" json:"tenantId"`
	ScorerID      string     `db:"scorer_id" json:"scorerId"`
	Score         float64    `db:"score" json:"score"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	IsFinalized   bool       `db:"is_finalized" json:"isFinalized"`
	FinalizedAt   *time.Time `db:"finalized_at" json:"finalizedAt,omitempty"`
	UnlockedBy    *string    `db:"unlocked_by" json:"unlockedBy,omitempty"`
	UnlockedAt    *time.Time `db:"unlocked_at" json:"unlockedAt,omitempty"`
	UnlockReason  *string    `db:"unlock_reason" json:"unlockReason,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}
