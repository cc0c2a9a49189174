package models

import "time"

// AdmissionPathStatus enumerates lifecycle states of a path.
type AdmissionPathStatus string

const (
	AdmissionPathDraft    AdmissionPathStatus = "draft"
	AdmissionPathOpen     AdmissionPathStatus = "open"
	AdmissionPathClosed   AdmissionPathStatus = "closed"
	AdmissionPathArchived AdmissionPathStatus = "archived"
)

// AdmissionPath is a named admission track (zonasi, prestasi, ...) with a quota.
type AdmissionPath struct {
	ID        string              `db:"id" json:"id"`
	TenantID  string              `db:"tenant_id" json:"tenantId"`
	Name      string              `db:"name" json:"name"`
	Quota     int                 `db:"quota" json:"quota"`
	Status    AdmissionPathStatus `db:"status" json:"status"`
	CreatedAt time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time           `db:"updated_at" json:"updatedAt"`
}
