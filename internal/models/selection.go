package models

import "time"

// SelectionDetailStatus is the outcome recorded for one ranked candidate.
type SelectionDetailStatus string

const (
	DetailAccepted SelectionDetailStatus = "accepted"
	DetailReserved SelectionDetailStatus = "reserved"
	DetailRejected SelectionDetailStatus = "rejected"
)

// ApplicationStatus maps a detail outcome onto the committed application state.
func (s SelectionDetailStatus) ApplicationStatus() ApplicationStatus {
	switch s {
	case DetailAccepted:
		return ApplicationAccepted
	case DetailReserved:
		return ApplicationWaitlisted
	default:
		return ApplicationRejected
	}
}

// SelectionResult is the immutable snapshot written by a finalization.
type SelectionResult struct {
	ID                  string                  `db:"id" json:"id"`
	TenantID            string                  `db:"tenant_id" json:"tenantId"`
	AdmissionPathID     string                  `db:"admission_path_id" json:"admissionPathId"`
	QuotaAccepted       int                     `db:"quota_accepted" json:"quotaAccepted"`
	QuotaReserved       int                     `db:"quota_reserved" json:"quotaReserved"`
	TotalCandidates     int                     `db:"total_candidates" json:"totalCandidates"`
	CutoffScoreAccepted *float64                `db:"cutoff_score_accepted" json:"cutoffScoreAccepted,omitempty"`
	CutoffScoreReserved *float64                `db:"cutoff_score_reserved" json:"cutoffScoreReserved,omitempty"`
	FinalizedBy         string                  `db:"finalized_by" json:"finalizedBy"`
	PublishedAt         time.Time               `db:"published_at" json:"publishedAt"`
	Details             []SelectionResultDetail `db:"-" json:"details,omitempty"`
}

// SelectionResultDetail records one candidate's rank and outcome.
type SelectionResultDetail struct {
	ID                string                `db:"id" json:"id"`
	SelectionResultID string                `db:"selection_result_id" json:"selectionResultId"`
	ApplicationID     string                `db:"application_id" json:"applicationId"`
	Rank              int                   `db:"rank" json:"rank"`
	TotalScore        float64               `db:"total_score" json:"totalScore"`
	Status            SelectionDetailStatus `db:"status" json:"status"`
	Name              string                `db:"name" json:"name,omitempty"`
}

// Promotion describes a waitlisted candidate moved into an open slot.
type Promotion struct {
	TenantID      string `json:"tenantId"`
	PathID        string `json:"pathId"`
	ApplicationID string `json:"applicationId"`
	DetailID      string `json:"detailId"`
	Rank          int    `json:"rank"`
	Notified      bool   `json:"notified"`
}
