package service

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
)

const unknownCandidateName = "Unknown"

// candidateLess orders candidates by score desc, distance asc (missing counts
// as 0), birth date asc with missing dates last, created_at asc and finally
// application id so the order is total.
func candidateLess(a, b models.EligibleCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if da, db := distanceOf(a), distanceOf(b); da != db {
		return da < db
	}
	switch {
	case a.ChildDOB != nil && b.ChildDOB == nil:
		return true
	case a.ChildDOB == nil && b.ChildDOB != nil:
		return false
	case a.ChildDOB != nil && b.ChildDOB != nil && !a.ChildDOB.Equal(*b.ChildDOB):
		return a.ChildDOB.Before(*b.ChildDOB)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ApplicationID < b.ApplicationID
}

func distanceOf(c models.EligibleCandidate) float64 {
	if c.DistanceM == nil {
		return 0
	}
	return *c.DistanceM
}

// rankCandidates sorts a copy of rows and assigns contiguous ranks from 1.
// Age is evaluated against now.
func rankCandidates(rows []models.EligibleCandidate, now time.Time) []models.RankedCandidate {
	sorted := make([]models.EligibleCandidate, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return candidateLess(sorted[i], sorted[j]) })

	ranked := make([]models.RankedCandidate, len(sorted))
	for i, row := range sorted {
		name := unknownCandidateName
		if row.ChildFullName != nil && strings.TrimSpace(*row.ChildFullName) != "" {
			name = *row.ChildFullName
		}
		ranked[i] = models.RankedCandidate{
			Rank:          i + 1,
			ApplicationID: row.ApplicationID,
			Name:          name,
			Score:         row.Score,
			Distance:      distanceOf(row),
			Age:           models.AgeAt(row.ChildDOB, now),
		}
	}
	return ranked
}

// statusForRank partitions ranks: the first accepted ranks are accepted, the
// next reserved ranks are reserved, the rest rejected.
func statusForRank(rank, accepted, reserved int) models.SelectionDetailStatus {
	switch {
	case rank <= accepted:
		return models.DetailAccepted
	case rank <= accepted+reserved:
		return models.DetailReserved
	default:
		return models.DetailRejected
	}
}
