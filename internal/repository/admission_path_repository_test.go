package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
)

func TestAdmissionPathRepositoryLockAndCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdmissionPathRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM admission_paths WHERE id = $1 AND tenant_id = $2 FOR UPDATE")).
		WithArgs("path-1", "tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "quota", "status", "created_at", "updated_at"}).
			AddRow("path-1", "tenant-1", "Zonasi", 2, "open", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM applications")).
		WithArgs("tenant-1", "path-1", models.ApplicationAccepted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	path, err := repo.LockForUpdate(context.Background(), tx, "tenant-1", "path-1")
	require.NoError(t, err)
	require.Equal(t, 2, path.Quota)

	count, err := repo.CountAccepted(context.Background(), tx, "tenant-1", "path-1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}
