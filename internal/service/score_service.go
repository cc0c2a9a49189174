package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/ppdb-admissions-api/internal/dto"
	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	"github.com/noah-isme/ppdb-admissions-api/pkg/database"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
)

type scoreStore interface {
	GetByApplication(ctx context.Context, exec sqlx.ExtContext, tenantID, applicationID string) (*models.ApplicationScore, error)
	GetByID(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, forUpdate bool) (*models.ApplicationScore, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, score *models.ApplicationScore) error
	Unlock(ctx context.Context, exec sqlx.ExtContext, tenantID, id, actorID, reason string) error
}

type tenantApplicationReader interface {
	GetForTenant(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.Application, error)
}

// ScoreService manages interview scores and their finalize/unlock lifecycle.
type ScoreService struct {
	tx        txProvider
	scores    scoreStore
	apps      tenantApplicationReader
	audit     auditWriter
	ranking   rankingInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScoreService constructs the score service.
func NewScoreService(tx txProvider, scores scoreStore, apps tenantApplicationReader, audit auditWriter, ranking rankingInvalidator, validate *validator.Validate, logger *zap.Logger) *ScoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ScoreService{tx: tx, scores: scores, apps: apps, audit: audit, ranking: ranking, validator: validate, logger: logger}
}

// Save records the score of a verified application. Finalized scores cannot
// be changed until an admin unlocks them.
func (s *ScoreService) Save(ctx context.Context, tenantID, applicationID, scorerID string, req dto.SaveScoreRequest) (*models.ApplicationScore, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "score must be between 0 and 100 and notes at most 2000 characters")
	}

	app, err := s.apps.GetForTenant(ctx, nil, tenantID, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Internal(err, "failed to load application")
	}
	if app.Status != models.ApplicationVerified {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only verified applications can be scored")
	}

	existing, err := s.scores.GetByApplication(ctx, nil, tenantID, applicationID)
	switch {
	case err == nil && existing.IsFinalized:
		return nil, appErrors.Clone(appErrors.ErrFinalized, "")
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to load score")
	}

	score := &models.ApplicationScore{
		ApplicationID: applicationID,
		TenantID:      tenantID,
		ScorerID:      scorerID,
		Score:         *req.Score,
		Notes:         req.Notes,
		IsFinalized:   req.Finalize,
	}
	if existing != nil {
		score.ID = existing.ID
		score.CreatedAt = existing.CreatedAt
	}
	if err := s.scores.Upsert(ctx, nil, score); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrFinalized, "")
		}
		return nil, appErrors.Internal(err, "failed to save score")
	}

	s.emitAudit(ctx, tenantID, scorerID, models.AuditActionScoreSave, score.ID, map[string]interface{}{
		"applicationId": applicationID,
		"score":         score.Score,
		"finalized":     score.IsFinalized,
	})
	if score.IsFinalized && s.ranking != nil {
		s.ranking.InvalidatePath(ctx, tenantID, app.AdmissionPathID)
	}
	return score, nil
}

// Unlock reopens a finalized score. The reason is stored with the score and
// in the audit trail.
func (s *ScoreService) Unlock(ctx context.Context, tenantID, scoreID, actorID string, req dto.UnlockScoreRequest) (*models.ApplicationScore, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "reason must be between 10 and 500 characters")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	var (
		score *models.ApplicationScore
		app   *models.Application
	)
	err := database.WithTransaction(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		score, err = s.scores.GetByID(ctx, tx, tenantID, scoreID, true)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "score not found")
			}
			return appErrors.Internal(err, "failed to load score")
		}
		if !score.IsFinalized {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "score is not finalized")
		}
		if err := s.scores.Unlock(ctx, tx, tenantID, scoreID, actorID, req.Reason); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, "score is not finalized")
			}
			return appErrors.Internal(err, "failed to unlock score")
		}
		app, err = s.apps.GetForTenant(ctx, tx, tenantID, score.ApplicationID)
		if err != nil {
			return appErrors.Internal(err, "failed to load scored application")
		}
		details, _ := json.Marshal(map[string]interface{}{
			"applicationId": score.ApplicationID,
			"reason":        req.Reason,
		})
		return s.audit.Create(ctx, tx, &models.AuditLog{
			TenantID: tenantID,
			ActorID:  stringPtr(actorID),
			Action:   models.AuditActionScoreUnlock,
			Target:   "application_score:" + scoreID,
			Details:  types.JSONText(details),
		})
	})
	if err != nil {
		return nil, asAppError(err, "failed to unlock score")
	}

	score.IsFinalized = false
	score.FinalizedAt = nil
	score.UnlockedBy = stringPtr(actorID)
	score.UnlockReason = &req.Reason
	if s.ranking != nil {
		s.ranking.InvalidatePath(ctx, tenantID, app.AdmissionPathID)
	}
	s.logger.Info("score unlocked", zap.String("tenant_id", tenantID), zap.String("score_id", scoreID), zap.String("actor_id", actorID))
	return score, nil
}

func (s *ScoreService) emitAudit(ctx context.Context, tenantID, actorID, action, scoreID string, payload map[string]interface{}) {
	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(payload)
	if err := s.audit.Create(ctx, nil, &models.AuditLog{
		TenantID: tenantID,
		ActorID:  stringPtr(actorID),
		Action:   action,
		Target:   "application_score:" + scoreID,
		Details:  types.JSONText(details),
	}); err != nil {
		s.logger.Warn("failed to record score audit", zap.Error(err))
	}
}
