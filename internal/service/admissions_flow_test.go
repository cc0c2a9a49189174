package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
)

// Quota 2, scores 90/80/70, finalize 1 accepted and 1 reserved, the accepted
// parent withdraws (accepted count drops to 0) and the reserved candidate
// takes the seat.
func TestAdmissionsFlowFinalizeWithdrawPromote(t *testing.T) {
	f := newWaitlistFixture(t, 2)
	f.db.addApp(seedApp{id: "a", tenantID: "tenant-1", pathID: "path-1", userID: "parent-a", name: "Ani", phone: "081200000001", score: scorePtr(90)})
	f.db.addApp(seedApp{id: "b", tenantID: "tenant-1", pathID: "path-1", userID: "parent-b", name: "Bima", phone: "081200000002", score: scorePtr(80)})
	f.db.addApp(seedApp{id: "c", tenantID: "tenant-1", pathID: "path-1", userID: "parent-c", name: "Citra", phone: "081200000003", score: scorePtr(70)})
	applications := NewApplicationService(f.svc.tx, fakeApplicationStore{f.db}, fakeAuditStore{f.db}, f.waitlist, nil)

	ranked, err := f.ranking.ComputeRanking(context.Background(), "tenant-1", "path-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, rankedIDs(ranked))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	result, err := f.svc.Finalize(context.Background(), "tenant-1", "path-1", finalizeQuotas(1, 1), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.DetailAccepted, result.Details[0].Status)
	assert.Equal(t, models.DetailReserved, result.Details[1].Status)
	assert.Equal(t, models.DetailRejected, result.Details[2].Status)

	// withdrawal, then the promotion it triggers
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	res, err := applications.Withdraw(context.Background(), "tenant-1", "parent-a", "a")
	require.NoError(t, err)
	require.NotNil(t, res.Promotion)
	assert.Equal(t, "b", res.Promotion.ApplicationID)
	assert.True(t, res.Promotion.Notified)

	assert.Equal(t, models.ApplicationRejected, f.db.status("a"))
	assert.Equal(t, models.ApplicationAccepted, f.db.status("b"))
	assert.Equal(t, models.ApplicationRejected, f.db.status("c"))
	assert.Equal(t, 1, f.db.countStatus("path-1", models.ApplicationAccepted))
	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "081200000002", f.notifier.phones[0])
	assert.Contains(t, f.notifier.texts[0], "Bima")
	require.NoError(t, f.mock.ExpectationsWereMet())
}
