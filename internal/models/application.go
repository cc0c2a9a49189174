package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ApplicationStatus captures workflow states of an application.
type ApplicationStatus string

const (
	ApplicationDraft       ApplicationStatus = "draft"
	ApplicationSubmitted   ApplicationStatus = "submitted"
	ApplicationUnderReview ApplicationStatus = "under_review"
	ApplicationVerified    ApplicationStatus = "verified"
	ApplicationAccepted    ApplicationStatus = "accepted"
	ApplicationRejected    ApplicationStatus = "rejected"
	ApplicationWaitlisted  ApplicationStatus = "waitlisted"
)

// Application is one applicant's submission to an admission path.
type Application struct {
	ID                   string            `db:"id" json:"id"`
	TenantID             string            `db:"tenant_id" json:"tenantId"`
	UserID               string            `db:"user_id" json:"userId"`
	AdmissionPathID      string            `db:"admission_path_id" json:"admissionPathId"`
	Status               ApplicationStatus `db:"status" json:"status"`
	Version              int               `db:"version" json:"version"`
	ChildFullName        *string           `db:"child_full_name" json:"childFullName,omitempty"`
	ChildDOB             *time.Time        `db:"child_dob" json:"childDob,omitempty"`
	ParentFullName       *string           `db:"parent_full_name" json:"parentFullName,omitempty"`
	ParentPhone          *string           `db:"parent_phone" json:"parentPhone,omitempty"`
	DistanceM            *float64          `db:"distance_m" json:"distanceM,omitempty"`
	CustomFieldValues    types.JSONText    `db:"custom_field_values" json:"customFieldValues,omitempty"`
	AnsweredCustomFields types.JSONText    `db:"answered_custom_fields" json:"answeredCustomFields,omitempty"`
	CurrentStep          int               `db:"current_step" json:"currentStep"`
	SubmittedAt          *time.Time        `db:"submitted_at" json:"submittedAt,omitempty"`
	CreatedAt            time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time         `db:"updated_at" json:"updatedAt"`
}

// DraftUpdate carries the fields written by a draft save. Nil pointers leave
// the column untouched.
type DraftUpdate struct {
	ApplicationID        string
	UserID               string
	TenantID             string
	ExpectedVersion      int
	ChildFullName        *string
	ChildDOB             *time.Time
	ParentFullName       *string
	ParentPhone          *string
	DistanceM            *float64
	CurrentStep          *int
	CustomFieldValues    types.JSONText
	AnsweredCustomFields types.JSONText
	UpdatedAt            time.Time
}

// WaitlistCandidate joins a reserved detail with the live application state.
type WaitlistCandidate struct {
	DetailID       string            `db:"detail_id"`
	Rank           int               `db:"rank"`
	ApplicationID  string            `db:"application_id"`
	Status         ApplicationStatus `db:"status"`
	ChildFullName  *string           `db:"child_full_name"`
	ParentFullName *string           `db:"parent_full_name"`
	ParentPhone    *string           `db:"parent_phone"`
}
