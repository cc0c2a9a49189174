package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ppdb-admissions-api/internal/dto"
	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	"github.com/noah-isme/ppdb-admissions-api/internal/service"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
	"github.com/noah-isme/ppdb-admissions-api/pkg/response"
)

type rankingService interface {
	ComputeRanking(ctx context.Context, tenantID, pathID string) ([]models.RankedCandidate, error)
	PreviewRanking(ctx context.Context, tenantID, pathID string, accepted, reserved *int) (*models.RankingPreview, error)
}

type selectionService interface {
	Finalize(ctx context.Context, tenantID, pathID string, req dto.FinalizeRankingRequest, actorID string) (*models.SelectionResult, error)
	Latest(ctx context.Context, tenantID, pathID string) (*models.SelectionResult, error)
	Export(ctx context.Context, tenantID, pathID, format string) (*service.ExportFile, error)
}

type vacancyService interface {
	ProcessVacancy(ctx context.Context, tenantID, pathID string) (*models.Promotion, error)
}

// RankingHandler exposes ranking, finalization and waitlist endpoints of an
// admission path.
type RankingHandler struct {
	ranking   rankingService
	selection selectionService
	waitlist  vacancyService
}

// NewRankingHandler builds a new handler.
func NewRankingHandler(ranking rankingService, selection selectionService, waitlist vacancyService) *RankingHandler {
	return &RankingHandler{ranking: ranking, selection: selection, waitlist: waitlist}
}

// Ranking godoc
// @Summary Current ranking of an admission path
// @Description Without quotas the plain ranking is returned. With accepted and/or reserved the estimated outcome of each candidate is included.
// @Tags Ranking
// @Produce json
// @Param pathId path string true "Admission path ID"
// @Param accepted query int false "Accepted quota for the preview"
// @Param reserved query int false "Reserved quota for the preview"
// @Success 200 {object} response.Envelope
// @Router /admission-paths/{pathId}/ranking [get]
func (h *RankingHandler) Ranking(c *gin.Context) {
	var query dto.RankingPreviewQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "accepted and reserved must be integers"))
		return
	}
	tenantID := tenantFromContext(c)
	pathID := c.Param("pathId")

	if query.AcceptedQuota == nil && query.ReservedQuota == nil {
		ranked, err := h.ranking.ComputeRanking(c.Request.Context(), tenantID, pathID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, ranked, nil, map[string]interface{}{"total": len(ranked)})
		return
	}

	preview, err := h.ranking.PreviewRanking(c.Request.Context(), tenantID, pathID, query.AcceptedQuota, query.ReservedQuota)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Finalize godoc
// @Summary Finalize the ranking of an admission path
// @Tags Ranking
// @Accept json
// @Produce json
// @Param pathId path string true "Admission path ID"
// @Param payload body dto.FinalizeRankingRequest true "Quotas"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /admission-paths/{pathId}/ranking/finalize [post]
func (h *RankingHandler) Finalize(c *gin.Context) {
	var req dto.FinalizeRankingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid finalize payload"))
		return
	}
	result, err := h.selection.Finalize(c.Request.Context(), tenantFromContext(c), c.Param("pathId"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// LatestResult godoc
// @Summary Latest selection result with details
// @Tags Ranking
// @Produce json
// @Param pathId path string true "Admission path ID"
// @Success 200 {object} response.Envelope
// @Router /admission-paths/{pathId}/selection-results/latest [get]
func (h *RankingHandler) LatestResult(c *gin.Context) {
	result, err := h.selection.Latest(c.Request.Context(), tenantFromContext(c), c.Param("pathId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportResult godoc
// @Summary Download the latest selection result
// @Tags Ranking
// @Produce text/csv
// @Produce application/pdf
// @Param pathId path string true "Admission path ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admission-paths/{pathId}/selection-results/latest/export [get]
func (h *RankingHandler) ExportResult(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format must be csv or pdf"))
		return
	}
	file, err := h.selection.Export(c.Request.Context(), tenantFromContext(c), c.Param("pathId"), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// ProcessVacancy godoc
// @Summary Promote the best waitlisted candidate into a free slot
// @Description Returns the promotion, or null data when no slot or candidate was available.
// @Tags Ranking
// @Produce json
// @Param pathId path string true "Admission path ID"
// @Success 200 {object} response.Envelope
// @Router /admission-paths/{pathId}/vacancies [post]
func (h *RankingHandler) ProcessVacancy(c *gin.Context) {
	promotion, err := h.waitlist.ProcessVacancy(c.Request.Context(), tenantFromContext(c), c.Param("pathId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, promotion, nil, map[string]interface{}{"promoted": promotion != nil})
}
