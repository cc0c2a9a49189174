package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/ppdb-admissions-api/internal/dto"
	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	"github.com/noah-isme/ppdb-admissions-api/pkg/database"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
	"github.com/noah-isme/ppdb-admissions-api/pkg/export"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type lockingPathStore interface {
	GetForTenant(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.AdmissionPath, error)
	LockForUpdate(ctx context.Context, tx sqlx.ExtContext, tenantID, id string) (*models.AdmissionPath, error)
	CountAccepted(ctx context.Context, exec sqlx.ExtContext, tenantID, pathID string) (int, error)
}

type selectionResultStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, result *models.SelectionResult) error
	CreateDetails(ctx context.Context, exec sqlx.ExtContext, details []models.SelectionResultDetail) error
	Latest(ctx context.Context, exec sqlx.ExtContext, tenantID, pathID string) (*models.SelectionResult, error)
	ListDetails(ctx context.Context, tenantID, resultID string) ([]models.SelectionResultDetail, error)
}

type applicationStatusWriter interface {
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, from, to models.ApplicationStatus) error
}

type auditWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.AuditLog) error
}

type rankingEngine interface {
	RankWithin(ctx context.Context, exec sqlx.ExtContext, tenantID, pathID string) ([]models.RankedCandidate, error)
	InvalidatePath(ctx context.Context, tenantID, pathID string)
}

// Export formats supported for selection results.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// ExportFile is a rendered selection result document.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// SelectionService finalizes rankings into committed selection results.
type SelectionService struct {
	tx        txProvider
	paths     lockingPathStore
	results   selectionResultStore
	apps      applicationStatusWriter
	audit     auditWriter
	ranking   rankingEngine
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewSelectionService constructs the selection service.
func NewSelectionService(
	tx txProvider,
	paths lockingPathStore,
	results selectionResultStore,
	apps applicationStatusWriter,
	audit auditWriter,
	ranking rankingEngine,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
) *SelectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SelectionService{
		tx:        tx,
		paths:     paths,
		results:   results,
		apps:      apps,
		audit:     audit,
		ranking:   ranking,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Finalize commits the current ranking of a path: the top AcceptedQuota
// candidates become accepted, the next ReservedQuota waitlisted and the rest
// rejected. Everything is written in one transaction with the path row locked.
func (s *SelectionService) Finalize(ctx context.Context, tenantID, pathID string, req dto.FinalizeRankingRequest, actorID string) (*models.SelectionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordFinalize(OutcomeRejected)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "quotas must be non-negative integers")
	}
	accepted, reserved := req.Quotas()
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	var result *models.SelectionResult
	err := database.WithTransaction(ctx, s.tx, func(tx *sqlx.Tx) error {
		path, err := s.paths.LockForUpdate(ctx, tx, tenantID, pathID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "admission path not found")
			}
			return appErrors.Internal(err, "failed to lock admission path")
		}

		alreadyAccepted, err := s.paths.CountAccepted(ctx, tx, tenantID, pathID)
		if err != nil {
			return appErrors.Internal(err, "failed to count accepted applications")
		}
		if accepted+alreadyAccepted > path.Quota {
			return appErrors.Clone(appErrors.ErrPreconditionFailed,
				fmt.Sprintf("accepted quota %d exceeds remaining capacity %d", accepted, path.Quota-alreadyAccepted))
		}

		ranked, err := s.ranking.RankWithin(ctx, tx, tenantID, pathID)
		if err != nil {
			return err
		}
		if len(ranked) == 0 {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "no eligible candidates to finalize")
		}

		result = buildSelectionResult(tenantID, pathID, actorID, accepted, reserved, ranked, s.now().UTC())
		if err := s.results.Create(ctx, tx, result); err != nil {
			return appErrors.Internal(err, "failed to store selection result")
		}
		for i := range result.Details {
			result.Details[i].SelectionResultID = result.ID
		}
		if err := s.results.CreateDetails(ctx, tx, result.Details); err != nil {
			return appErrors.Internal(err, "failed to store selection result details")
		}

		for _, detail := range result.Details {
			err := s.apps.UpdateStatus(ctx, tx, tenantID, detail.ApplicationID, models.ApplicationVerified, detail.Status.ApplicationStatus())
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrConflict,
						fmt.Sprintf("application %s changed during finalization", detail.ApplicationID))
				}
				return appErrors.Internal(err, "failed to update application status")
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"pathId":          pathID,
			"quotaAccepted":   accepted,
			"quotaReserved":   reserved,
			"totalCandidates": result.TotalCandidates,
			"selectionResult": result.ID,
		})
		if err := s.audit.Create(ctx, tx, &models.AuditLog{
			TenantID: tenantID,
			ActorID:  stringPtr(actorID),
			Action:   models.AuditActionSelectionFinalize,
			Target:   "admission_path:" + pathID,
			Details:  types.JSONText(details),
		}); err != nil {
			return appErrors.Internal(err, "failed to write audit log")
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordFinalize(finalizeOutcome(err))
		appErr := asAppError(err, "failed to finalize selection")
		if appErr.Status >= 500 {
			s.logger.Error("selection finalize failed",
				zap.String("tenant_id", tenantID), zap.String("path_id", pathID), zap.Error(err))
		}
		return nil, appErr
	}

	s.ranking.InvalidatePath(ctx, tenantID, pathID)
	s.metrics.RecordFinalize(OutcomeSuccess)
	s.logger.Info("selection finalized",
		zap.String("tenant_id", tenantID),
		zap.String("path_id", pathID),
		zap.String("selection_result_id", result.ID),
		zap.Int("candidates", result.TotalCandidates))
	return result, nil
}

// Latest returns the most recent selection result of the path with its details.
func (s *SelectionService) Latest(ctx context.Context, tenantID, pathID string) (*models.SelectionResult, error) {
	if _, err := s.paths.GetForTenant(ctx, nil, tenantID, pathID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission path not found")
		}
		return nil, appErrors.Internal(err, "failed to load admission path")
	}
	result, err := s.results.Latest(ctx, nil, tenantID, pathID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission path has not been finalized")
		}
		return nil, appErrors.Internal(err, "failed to load selection result")
	}
	details, err := s.results.ListDetails(ctx, tenantID, result.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load selection result details")
	}
	result.Details = details
	return result, nil
}

// Export renders the latest selection result as CSV or PDF.
func (s *SelectionService) Export(ctx context.Context, tenantID, pathID, format string) (*ExportFile, error) {
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	path, err := s.paths.GetForTenant(ctx, nil, tenantID, pathID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission path not found")
		}
		return nil, appErrors.Internal(err, "failed to load admission path")
	}
	result, err := s.Latest(ctx, tenantID, pathID)
	if err != nil {
		return nil, err
	}

	table := selectionTable(path, result)
	filename := fmt.Sprintf("hasil-seleksi-%s-%s.%s", pathID, result.PublishedAt.Format("20060102"), format)
	if format == ExportFormatPDF {
		content, err := export.RenderPDF(table)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render pdf")
		}
		return &ExportFile{Filename: filename, ContentType: "application/pdf", Content: content}, nil
	}
	content, err := export.RenderCSV(table)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render csv")
	}
	return &ExportFile{Filename: filename, ContentType: "text/csv", Content: content}, nil
}

func buildSelectionResult(tenantID, pathID, actorID string, accepted, reserved int, ranked []models.RankedCandidate, now time.Time) *models.SelectionResult {
	result := &models.SelectionResult{
		TenantID:        tenantID,
		AdmissionPathID: pathID,
		QuotaAccepted:   accepted,
		QuotaReserved:   reserved,
		TotalCandidates: len(ranked),
		FinalizedBy:     actorID,
		PublishedAt:     now,
		Details:         make([]models.SelectionResultDetail, len(ranked)),
	}
	for i, candidate := range ranked {
		status := statusForRank(candidate.Rank, accepted, reserved)
		result.Details[i] = models.SelectionResultDetail{
			ApplicationID: candidate.ApplicationID,
			Rank:          candidate.Rank,
			TotalScore:    candidate.Score,
			Status:        status,
			Name:          candidate.Name,
		}
		score := candidate.Score
		switch status {
		case models.DetailAccepted:
			result.CutoffScoreAccepted = &score
		case models.DetailReserved:
			result.CutoffScoreReserved = &score
		}
	}
	return result
}

func selectionTable(path *models.AdmissionPath, result *models.SelectionResult) export.Table {
	table := export.Table{
		Title:    "Pengumuman Hasil Seleksi PPDB " + path.Name,
		Subtitle: "Diumumkan " + result.PublishedAt.Format("02-01-2006 15:04"),
		Columns: []export.Column{
			{Title: "Peringkat", Width: 1},
			{Title: "Nama", Width: 4},
			{Title: "Skor", Width: 1},
			{Title: "Status", Width: 1.5},
		},
		Rows: make([][]string, len(result.Details)),
	}
	for i, d := range result.Details {
		table.Rows[i] = []string{
			strconv.Itoa(d.Rank),
			d.Name,
			strconv.FormatFloat(d.TotalScore, 'f', -1, 64),
			string(d.Status),
		}
	}
	return table
}

func finalizeOutcome(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		switch {
		case appErr.Code == appErrors.ErrConflict.Code:
			return OutcomeConflict
		case appErr.Status < 500:
			return OutcomeRejected
		}
	}
	return OutcomeError
}

// asAppError keeps typed errors and wraps anything else as internal.
func asAppError(err error, message string) *appErrors.Error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Internal(err, message)
}

func stringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
