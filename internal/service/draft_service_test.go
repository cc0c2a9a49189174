package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ppdb-admissions-api/internal/dto"
	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	"github.com/noah-isme/ppdb-admissions-api/pkg/crypto"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

type draftFixture struct {
	db      *admissionsDB
	metrics *MetricsService
	svc     *DraftService
}

func newDraftFixture(t *testing.T, cipher FieldEncryptor) *draftFixture {
	t.Helper()
	db := newAdmissionsDB()
	db.addPath("tenant-1", "path-1", "Zonasi", 2)
	db.addApp(seedApp{id: "app-1", tenantID: "tenant-1", pathID: "path-1", userID: "parent-1", status: models.ApplicationDraft})
	pathID := "path-1"
	db.fields = []models.CustomField{
		{ID: "f1", TenantID: "tenant-1", AdmissionPathID: &pathID, Key: "nik", Label: "NIK", FieldType: models.FieldText, IsEncrypted: true},
		{ID: "f2", TenantID: "tenant-1", Key: "email", Label: "Email", FieldType: models.FieldEmail},
		{ID: "f3", TenantID: "tenant-1", AdmissionPathID: &pathID, Key: "siblings", Label: "Saudara", FieldType: models.FieldNumber},
		{ID: "f4", TenantID: "tenant-1", Key: "phone", Label: "HP", FieldType: models.FieldTel},
	}
	metrics := NewMetricsService()
	svc := NewDraftService(fakeApplicationStore{db}, fakeFieldStore{db}, cipher, nil, metrics, nil)
	return &draftFixture{db: db, metrics: metrics, svc: svc}
}

func (f *draftFixture) patch(version *int, mutate func(*dto.DraftPatchRequest)) DraftPatchInput {
	req := dto.DraftPatchRequest{Version: version}
	if mutate != nil {
		mutate(&req)
	}
	return DraftPatchInput{ApplicationID: "app-1", UserID: "parent-1", TenantID: "tenant-1", Patch: req}
}

func newTestCipher(t *testing.T) *crypto.FieldCipher {
	t.Helper()
	cipher, err := crypto.NewFieldCipher("draft-secret", "draft-salt")
	require.NoError(t, err)
	return cipher
}

func TestApplyDraftPatchIncrementsVersion(t *testing.T) {
	f := newDraftFixture(t, nil)

	res, err := f.svc.ApplyDraftPatch(context.Background(), f.patch(intPtr(1), func(r *dto.DraftPatchRequest) {
		r.ChildFullName = strPtr("  Budi  ")
		r.CurrentStep = intPtr(2)
		r.ChildDOB = strPtr("2013-04-05")
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Version)

	res, err = f.svc.ApplyDraftPatch(context.Background(), f.patch(intPtr(2), nil))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Version)

	app := f.db.apps["app-1"]
	assert.Equal(t, "Budi", *app.ChildFullName)
	assert.Equal(t, 2, app.CurrentStep)
	assert.Equal(t, "2013-04-05", app.ChildDOB.Format(models.DateLayout))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.draftSaveTotal.WithLabelValues(OutcomeSuccess)))
}

func TestApplyDraftPatchRequiresVersion(t *testing.T) {
	f := newDraftFixture(t, nil)
	_, err := f.svc.ApplyDraftPatch(context.Background(), f.patch(nil, nil))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMissingVersion.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 1, f.db.apps["app-1"].Version)
}

func TestApplyDraftPatchStaleVersionConflicts(t *testing.T) {
	f := newDraftFixture(t, nil)
	f.db.apps["app-1"].Version = 4

	_, err := f.svc.ApplyDraftPatch(context.Background(), f.patch(intPtr(3), func(r *dto.DraftPatchRequest) {
		r.ChildFullName = strPtr("Overwrite")
	}))
	require.Error(t, err)
	conflict, ok := appErrors.AsVersionConflict(err)
	require.True(t, ok)
	assert.Equal(t, 4, conflict.CurrentVersion)
	assert.Equal(t, appErrors.ErrVersionConflict.Code, appErrors.FromError(err).Code)

	app := f.db.apps["app-1"]
	assert.Equal(t, 4, app.Version)
	assert.Nil(t, app.ChildFullName)
}

func TestApplyDraftPatchRejectsNonDraft(t *testing.T) {
	f := newDraftFixture(t, nil)
	f.db.apps["app-1"].Status = models.ApplicationSubmitted

	_, err := f.svc.ApplyDraftPatch(context.Background(), f.patch(intPtr(1), nil))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestApplyDraftPatchScopesByOwnerAndTenant(t *testing.T) {
	f := newDraftFixture(t, nil)

	in := f.patch(intPtr(1), nil)
	in.UserID = "parent-2"
	_, err := f.svc.ApplyDraftPatch(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	in = f.patch(intPtr(1), nil)
	in.TenantID = "tenant-2"
	_, err = f.svc.ApplyDraftPatch(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApplyDraftPatchRejectsBadDate(t *testing.T) {
	f := newDraftFixture(t, nil)
	_, err := f.svc.ApplyDraftPatch(context.Background(), f.patch(intPtr(1), func(r *dto.DraftPatchRequest) {
		r.ChildDOB = strPtr("05/04/2013")
	}))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestConcurrentDraftPatchesExactlyOneWins(t *testing.T) {
	f := newDraftFixture(t, nil)

	// hold both writers until each has read version 1
	var arrived sync.WaitGroup
	arrived.Add(2)
	f.db.saveDraftHook = func() {
		arrived.Done()
		arrived.Wait()
	}

	type outcome struct {
		res *dto.DraftSaveResponse
		err error
	}
	results := make(chan outcome, 2)
	for _, name := range []string{"Alpha", "Beta"} {
		name := name
		go func() {
			res, err := f.svc.ApplyDraftPatch(context.Background(), f.patch(intPtr(1), func(r *dto.DraftPatchRequest) {
				r.ChildFullName = strPtr(name)
			}))
			results <- outcome{res: res, err: err}
		}()
	}

	var wins, conflicts int
	for i := 0; i < 2; i++ {
		o := <-results
		if o.err == nil {
			wins++
			assert.Equal(t, 2, o.res.Version)
			continue
		}
		conflict, ok := appErrors.AsVersionConflict(o.err)
		require.True(t, ok, "unexpected error %v", o.err)
		assert.Equal(t, 2, conflict.CurrentVersion)
		conflicts++
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 2, f.db.apps["app-1"].Version)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.draftSaveTotal.WithLabelValues(OutcomeConflict)))
}

func TestApplyDraftPatchMergesCustomFields(t *testing.T) {
	cipher := newTestCipher(t)
	f := newDraftFixture(t, cipher)
	f.db.apps["app-1"].CustomFieldValues = []byte(`{"siblings":1,"email":"old@example.com"}`)

	_, err := f.svc.ApplyDraftPatch(context.Background(), f.patch(intPtr(1), func(r *dto.DraftPatchRequest) {
		r.CustomFieldValues = map[string]json.RawMessage{
			"nik":     json.RawMessage(`"3201234567890001"`),
			"email":   json.RawMessage(`null`),
			"unknown": json.RawMessage(`"dropped"`),
			"phone":   json.RawMessage(`"0812 3456 7890"`),
		}
		r.AnsweredCustomFields = []string{"nik", "unknown", "nik", "phone"}
	}))
	require.NoError(t, err)

	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal(f.db.apps["app-1"].CustomFieldValues, &stored))
	assert.NotContains(t, stored, "unknown")
	assert.NotContains(t, stored, "email")
	assert.Equal(t, 1.0, stored["siblings"])
	sealed, ok := stored["nik"].(string)
	require.True(t, ok)
	assert.NotEqual(t, "3201234567890001", sealed)
	assert.Len(t, strings.Split(sealed, ":"), 3)

	var answered []string
	require.NoError(t, json.Unmarshal(f.db.apps["app-1"].AnsweredCustomFields, &answered))
	assert.Equal(t, []string{"nik", "phone"}, answered)

	view, err := f.svc.GetDraft(context.Background(), "app-1", "parent-1", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "3201234567890001", view.CustomFieldValues["nik"])
	assert.Equal(t, 2, view.Application.Version)
	assert.Nil(t, view.Application.CustomFieldValues)
}

func TestApplyDraftPatchRejectsInvalidFieldValues(t *testing.T) {
	cases := map[string]json.RawMessage{
		"email":    json.RawMessage(`"not-an-email"`),
		"phone":    json.RawMessage(`"12345"`),
		"siblings": json.RawMessage(`"two"`),
	}
	for key, raw := range cases {
		t.Run(key, func(t *testing.T) {
			f := newDraftFixture(t, nil)
			_, err := f.svc.ApplyDraftPatch(context.Background(), f.patch(intPtr(1), func(r *dto.DraftPatchRequest) {
				r.CustomFieldValues = map[string]json.RawMessage{key: raw}
			}))
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
			assert.Equal(t, 1, f.db.apps["app-1"].Version)
		})
	}
}

type brokenEncryptor struct{}

func (brokenEncryptor) Encrypt(string) (string, error) { return "", errors.New("kms unavailable") }
func (brokenEncryptor) Decrypt(string) (string, error) { return "", errors.New("kms unavailable") }

func TestApplyDraftPatchEncryptionFailureIsInternal(t *testing.T) {
	for name, cipher := range map[string]FieldEncryptor{"broken": brokenEncryptor{}, "missing": nil} {
		t.Run(name, func(t *testing.T) {
			f := newDraftFixture(t, cipher)
			_, err := f.svc.ApplyDraftPatch(context.Background(), f.patch(intPtr(1), func(r *dto.DraftPatchRequest) {
				r.CustomFieldValues = map[string]json.RawMessage{"nik": json.RawMessage(`"3201"`)}
			}))
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
			assert.Equal(t, 1, f.db.apps["app-1"].Version)
		})
	}
}

func TestGetDraftKeepsUndecryptableValues(t *testing.T) {
	f := newDraftFixture(t, brokenEncryptor{})
	f.db.apps["app-1"].CustomFieldValues = []byte(`{"nik":"aa:bb:cc","siblings":2}`)

	view, err := f.svc.GetDraft(context.Background(), "app-1", "parent-1", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc", view.CustomFieldValues["nik"])
	assert.Equal(t, 2.0, view.CustomFieldValues["siblings"])
}
