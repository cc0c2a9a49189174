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

type scoreService interface {
	Save(ctx context.Context, tenantID, applicationID, scorerID string, req dto.SaveScoreRequest) (*models.ApplicationScore, error)
	Unlock(ctx context.Context, tenantID, scoreID, actorID string, req dto.UnlockScoreRequest) (*models.ApplicationScore, error)
}

// ScoreHandler exposes interview scoring endpoints.
type ScoreHandler struct {
	service scoreService
}

// NewScoreHandler builds a new handler.
func NewScoreHandler(service scoreService) *ScoreHandler {
	return &ScoreHandler{service: service}
}

// Save godoc
// @Summary Save the score of a verified application
// @Tags Scores
// @Accept json
// @Produce json
// @Param applicationId path string true "Application ID"
// @Param payload body dto.SaveScoreRequest true "Score"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /applications/{applicationId}/score [post]
func (h *ScoreHandler) Save(c *gin.Context) {
	var req dto.SaveScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid score payload"))
		return
	}
	score, err := h.service.Save(c.Request.Context(), tenantFromContext(c), c.Param("applicationId"), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

// Unlock godoc
// @Summary Unlock a finalized score
// @Tags Scores
// @Accept json
// @Produce json
// @Param scoreId path string true "Score ID"
// @Param payload body dto.UnlockScoreRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /scores/{scoreId}/unlock [post]
func (h *ScoreHandler) Unlock(c *gin.Context) {
	var req dto.UnlockScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid unlock payload"))
		return
	}
	score, err := h.service.Unlock(c.Request.Context(), tenantFromContext(c), c.Param("scoreId"), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}
