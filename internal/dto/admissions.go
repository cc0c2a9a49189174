package dto

import (
	"encoding/json"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
)

// FinalizeRankingRequest fixes the ranking into accepted/reserved/rejected.
// Both quotas must be present; zero is a valid value.
type FinalizeRankingRequest struct {
	AcceptedQuota *int `json:"acceptedQuota" binding:"required,min=0" validate:"required,min=0"`
	ReservedQuota *int `json:"reservedQuota" binding:"required,min=0" validate:"required,min=0"`
}

// Quotas returns the accepted and reserved quotas. Call only after validation.
func (r FinalizeRankingRequest) Quotas() (accepted, reserved int) {
	return *r.AcceptedQuota, *r.ReservedQuota
}

// RankingPreviewQuery carries optional quotas for the draft ranking view.
type RankingPreviewQuery struct {
	AcceptedQuota *int `form:"accepted"`
	ReservedQuota *int `form:"reserved"`
}

// UpdateQuotaRequest changes the capacity of an admission path.
type UpdateQuotaRequest struct {
	Quota int `json:"quota" validate:"min=1"`
}

// DraftPatchRequest is a partial save of an in-progress application form.
// Version is mandatory; it must match the stored version.
type DraftPatchRequest struct {
	Version              *int                       `json:"version"`
	CustomFieldValues    map[string]json.RawMessage `json:"customFieldValues"`
	AnsweredCustomFields []string                   `json:"answeredCustomFields"`
	CurrentStep          *int                       `json:"currentStep" validate:"omitempty,min=1,max=20"`
	ChildFullName        *string                    `json:"childFullName" validate:"omitempty,max=200"`
	ChildDOB             *string                    `json:"childDob" validate:"omitempty,datetime=2006-01-02"`
	ParentFullName       *string                    `json:"parentFullName" validate:"omitempty,max=200"`
	ParentPhone          *string                    `json:"parentPhone" validate:"omitempty,max=20"`
	DistanceM            *float64                   `json:"distanceM" validate:"omitempty,min=0"`
}

// DraftSaveResponse returns the version after a successful save.
type DraftSaveResponse struct {
	Version int `json:"version"`
}

// DraftView is the owner's view of a draft with decrypted custom fields.
type DraftView struct {
	Application       *models.Application    `json:"application"`
	CustomFieldValues map[string]interface{} `json:"customFieldValues"`
}

// SaveScoreRequest records an assessment score for a verified application.
type SaveScoreRequest struct {
	Score    *float64 `json:"score" validate:"required,min=0,max=100"`
	Notes    *string  `json:"notes" validate:"omitempty,max=2000"`
	Finalize bool     `json:"finalize"`
}

// UnlockScoreRequest reopens a finalized score for editing.
type UnlockScoreRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=500"`
}

// ExportQuery selects the export format of a selection result.
type ExportQuery struct {
	Format string `form:"format" binding:"omitempty,oneof=csv pdf"`
}
