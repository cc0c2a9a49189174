package models

import "time"

// EligibleCandidate is a verified application with a finalized score, as read
// from storage before ordering.
type EligibleCandidate struct {
	ApplicationID string     `db:"application_id" json:"applicationId"`
	ChildFullName *string    `db:"child_full_name" json:"childFullName,omitempty"`
	Score         float64    `db:"score" json:"score"`
	DistanceM     *float64   `db:"distance_m" json:"distanceM,omitempty"`
	ChildDOB      *time.Time `db:"child_dob" json:"childDob,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
}

// RankedCandidate is one row of a computed ranking. It is derived on demand
// and never persisted.
type RankedCandidate struct {
	Rank          int     `json:"rank"`
	ApplicationID string  `json:"applicationId"`
	Name          string  `json:"name"`
	Score         float64 `json:"score"`
	Distance      float64 `json:"distance"`
	Age           int     `json:"age"`
}

// PreviewCandidate annotates a ranked candidate with the status it would get
// for the requested quotas.
type PreviewCandidate struct {
	RankedCandidate
	EstimatedStatus SelectionDetailStatus `json:"estimatedStatus"`
}

// RankingPreview is the draft ranking shown before finalization.
type RankingPreview struct {
	PathID        string             `json:"pathId"`
	Quota         int                `json:"quota"`
	AcceptedQuota int                `json:"acceptedQuota"`
	ReservedQuota int                `json:"reservedQuota"`
	Candidates    []PreviewCandidate `json:"candidates"`
	Totals        RankingTotals      `json:"totals"`
}

// RankingTotals counts candidates per estimated status.
type RankingTotals struct {
	Candidates int `json:"candidates"`
	Accepted   int `json:"accepted"`
	Reserved   int `json:"reserved"`
	Rejected   int `json:"rejected"`
}

// AgeAt returns the whole calendar years between dob and now; zero when dob is
// unknown or in the future.
func AgeAt(dob *time.Time, now time.Time) int {
	if dob == nil {
		return 0
	}
	birth := dob.In(now.Location())
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
