package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ppdb-admissions-api/internal/dto"
	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
	"github.com/noah-isme/ppdb-admissions-api/pkg/response"
)

type quotaService interface {
	UpdateQuota(ctx context.Context, tenantID, pathID, actorID string, req dto.UpdateQuotaRequest) (*models.AdmissionPath, error)
}

// AdmissionPathHandler manages admission path settings.
type AdmissionPathHandler struct {
	service quotaService
}

// NewAdmissionPathHandler builds a new handler.
func NewAdmissionPathHandler(service quotaService) *AdmissionPathHandler {
	return &AdmissionPathHandler{service: service}
}

// UpdateQuota godoc
// @Summary Change the quota of an admission path
// @Tags AdmissionPaths
// @Accept json
// @Produce json
// @Param pathId path string true "Admission path ID"
// @Param payload body dto.UpdateQuotaRequest true "Quota"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /admission-paths/{pathId}/quota [patch]
func (h *AdmissionPathHandler) UpdateQuota(c *gin.Context) {
	var req dto.UpdateQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid quota payload"))
		return
	}
	path, err := h.service.UpdateQuota(c.Request.Context(), tenantFromContext(c), c.Param("pathId"), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, path, nil)
}
