package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ppdb-admissions-api/internal/dto"
	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
)

type quotaServiceMock struct {
	path    *models.AdmissionPath
	err     error
	lastReq dto.UpdateQuotaRequest
}

func (m *quotaServiceMock) UpdateQuota(ctx context.Context, tenantID, pathID, actorID string, req dto.UpdateQuotaRequest) (*models.AdmissionPath, error) {
	m.lastReq = req
	return m.path, m.err
}

func TestAdmissionPathHandlerUpdateQuota(t *testing.T) {
	svc := &quotaServiceMock{path: &models.AdmissionPath{ID: "path-1", Quota: 40}}
	h := NewAdmissionPathHandler(svc)

	c, w := newTestContext(http.MethodPatch, "/admission-paths/path-1/quota", `{"quota":40}`, adminClaims, pathParams)
	h.UpdateQuota(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 40, svc.lastReq.Quota)
}

func TestAdmissionPathHandlerUpdateQuotaAfterFinalize(t *testing.T) {
	h := NewAdmissionPathHandler(&quotaServiceMock{err: appErrors.Clone(appErrors.ErrPreconditionFailed, "frozen")})

	c, w := newTestContext(http.MethodPatch, "/admission-paths/path-1/quota", `{"quota":40}`, adminClaims, pathParams)
	h.UpdateQuota(c)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}
