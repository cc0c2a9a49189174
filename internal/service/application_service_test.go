package service

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
)

type vacancyStub struct {
	calls     []string
	promotion *models.Promotion
	err       error
}

func (v *vacancyStub) ProcessVacancy(_ context.Context, tenantID, pathID string) (*models.Promotion, error) {
	v.calls = append(v.calls, tenantID+"/"+pathID)
	return v.promotion, v.err
}

type failingAuditStore struct{}

func (failingAuditStore) Create(context.Context, sqlx.ExtContext, *models.AuditLog) error {
	return errors.New("audit_logs: disk full")
}

type withdrawFixture struct {
	db        *admissionsDB
	mock      sqlmock.Sqlmock
	vacancies *vacancyStub
	svc       *ApplicationService
}

func newWithdrawFixture(t *testing.T, status models.ApplicationStatus) *withdrawFixture {
	db := newAdmissionsDB()
	db.addPath("tenant-1", "path-1", "Zonasi", 1)
	db.addApp(seedApp{id: "app-1", tenantID: "tenant-1", pathID: "path-1", userID: "parent-1", status: status})
	tx, mock := newTxProviderMock(t)
	vacancies := &vacancyStub{}
	svc := NewApplicationService(tx, fakeApplicationStore{db}, fakeAuditStore{db}, vacancies, nil)
	return &withdrawFixture{db: db, mock: mock, vacancies: vacancies, svc: svc}
}

func TestWithdrawAcceptedApplicationTriggersVacancy(t *testing.T) {
	f := newWithdrawFixture(t, models.ApplicationAccepted)
	f.vacancies.promotion = &models.Promotion{ApplicationID: "app-2", Notified: true}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.Withdraw(context.Background(), "tenant-1", "parent-1", "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationRejected, res.Status)
	assert.Equal(t, "app-2", res.Promotion.ApplicationID)
	assert.Equal(t, models.ApplicationRejected, f.db.status("app-1"))
	assert.Equal(t, []string{"tenant-1/path-1"}, f.vacancies.calls)
	assert.Equal(t, []string{models.AuditActionWithdraw}, f.db.auditActions())
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestWithdrawKeepsResultWhenPromotionFails(t *testing.T) {
	f := newWithdrawFixture(t, models.ApplicationAccepted)
	f.vacancies.err = errors.New("db down")
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.Withdraw(context.Background(), "tenant-1", "parent-1", "app-1")
	require.NoError(t, err)
	assert.Nil(t, res.Promotion)
	assert.Equal(t, models.ApplicationRejected, f.db.status("app-1"))
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestWithdrawRollsBackWhenAuditFails(t *testing.T) {
	f := newWithdrawFixture(t, models.ApplicationAccepted)
	f.svc.audit = failingAuditStore{}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	res, err := f.svc.Withdraw(context.Background(), "tenant-1", "parent-1", "app-1")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.vacancies.calls)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestWithdrawRequiresAcceptedApplication(t *testing.T) {
	f := newWithdrawFixture(t, models.ApplicationWaitlisted)

	_, err := f.svc.Withdraw(context.Background(), "tenant-1", "parent-1", "app-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.vacancies.calls)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestWithdrawOtherParentsApplicationIsNotFound(t *testing.T) {
	f := newWithdrawFixture(t, models.ApplicationAccepted)

	_, err := f.svc.Withdraw(context.Background(), "tenant-1", "parent-2", "app-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.vacancies.calls)
}
