package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ppdb-admissions-api/internal/dto"
	"github.com/noah-isme/ppdb-admissions-api/internal/service"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
	"github.com/noah-isme/ppdb-admissions-api/pkg/response"
)

type draftService interface {
	GetDraft(ctx context.Context, applicationID, userID, tenantID string) (*dto.DraftView, error)
	ApplyDraftPatch(ctx context.Context, in service.DraftPatchInput) (*dto.DraftSaveResponse, error)
}

type withdrawService interface {
	Withdraw(ctx context.Context, tenantID, userID, applicationID string) (*service.WithdrawResult, error)
}

// ApplicationHandler serves the parent-facing application endpoints.
type ApplicationHandler struct {
	drafts      draftService
	withdrawals withdrawService
}

// NewApplicationHandler builds a new handler.
func NewApplicationHandler(drafts draftService, withdrawals withdrawService) *ApplicationHandler {
	return &ApplicationHandler{drafts: drafts, withdrawals: withdrawals}
}

// GetDraft godoc
// @Summary Load the draft of an application
// @Tags Applications
// @Produce json
// @Param applicationId path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Header 200 {integer} X-Resource-Version "Current version"
// @Router /applications/{applicationId}/draft [get]
func (h *ApplicationHandler) GetDraft(c *gin.Context) {
	view, err := h.drafts.GetDraft(c.Request.Context(), c.Param("applicationId"), actorFromContext(c), tenantFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Versioned(c, view, view.Application.Version)
}

// PatchDraft godoc
// @Summary Save part of a draft
// @Description The version must equal the stored version, either in the body or as an If-Match header. A stale version answers 409 with meta.currentVersion.
// @Tags Applications
// @Accept json
// @Produce json
// @Param applicationId path string true "Application ID"
// @Param payload body dto.DraftPatchRequest true "Draft fields"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{applicationId}/draft [patch]
func (h *ApplicationHandler) PatchDraft(c *gin.Context) {
	var req dto.DraftPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid draft payload"))
		return
	}
	if req.Version == nil {
		if v, ok := ifMatchVersion(c.GetHeader("If-Match")); ok {
			req.Version = &v
		}
	}

	res, err := h.drafts.ApplyDraftPatch(c.Request.Context(), service.DraftPatchInput{
		ApplicationID: c.Param("applicationId"),
		UserID:        actorFromContext(c),
		TenantID:      tenantFromContext(c),
		Patch:         req,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Versioned(c, res, res.Version)
}

// Withdraw godoc
// @Summary Withdraw an accepted application
// @Description The freed slot is offered to the best waitlisted candidate.
// @Tags Applications
// @Produce json
// @Param applicationId path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{applicationId}/withdraw [post]
func (h *ApplicationHandler) Withdraw(c *gin.Context) {
	res, err := h.withdrawals.Withdraw(c.Request.Context(), tenantFromContext(c), actorFromContext(c), c.Param("applicationId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// ifMatchVersion accepts `3`, `"3"` and `W/"3"`.
func ifMatchVersion(header string) (int, bool) {
	v := strings.TrimSpace(header)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
