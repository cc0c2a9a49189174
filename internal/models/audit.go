package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Audit actions recorded by admissions workflows.
const (
	AuditActionSelectionFinalize = "SELECTION_FINALIZE"
	AuditActionWaitlistPromote   = "WAITLIST_PROMOTE"
	AuditActionScoreSave         = "SCORE_SAVE"
	AuditActionScoreUnlock       = "SCORE_UNLOCK"
	AuditActionQuotaUpdate       = "QUOTA_UPDATE"
	AuditActionWithdraw          = "APPLICATION_WITHDRAW"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID        string         `db:"id" json:"id"`
	TenantID  string         `db:"tenant_id" json:"tenantId"`
	ActorID   *string        `db:"actor_id" json:"actorId,omitempty"`
	Action    string         `db:"action" json:"action"`
	Target    string         `db:"target" json:"target"`
	Details   types.JSONText `db:"details" json:"details,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}
