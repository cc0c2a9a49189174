package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/ppdb-admissions-api/internal/dto"
	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	"github.com/noah-isme/ppdb-admissions-api/pkg/database"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
)

type quotaStore interface {
	LockForUpdate(ctx context.Context, tx sqlx.ExtContext, tenantID, id string) (*models.AdmissionPath, error)
	UpdateQuota(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, quota int) error
}

type finalizationChecker interface {
	ExistsForPath(ctx context.Context, exec sqlx.ExtContext, tenantID, pathID string) (bool, error)
}

// AdmissionPathService edits path settings that ranking depends on.
type AdmissionPathService struct {
	tx        txProvider
	paths     quotaStore
	results   finalizationChecker
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAdmissionPathService constructs the service.
func NewAdmissionPathService(tx txProvider, paths quotaStore, results finalizationChecker, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *AdmissionPathService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AdmissionPathService{tx: tx, paths: paths, results: results, audit: audit, validator: validate, logger: logger}
}

// UpdateQuota changes the capacity of a path. Once a selection result exists
// the quota is frozen.
func (s *AdmissionPathService) UpdateQuota(ctx context.Context, tenantID, pathID, actorID string, req dto.UpdateQuotaRequest) (*models.AdmissionPath, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "quota must be a positive integer")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	var path *models.AdmissionPath
	err := database.WithTransaction(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		path, err = s.paths.LockForUpdate(ctx, tx, tenantID, pathID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "admission path not found")
			}
			return appErrors.Internal(err, "failed to lock admission path")
		}
		finalized, err := s.results.ExistsForPath(ctx, tx, tenantID, pathID)
		if err != nil {
			return appErrors.Internal(err, "failed to check selection results")
		}
		if finalized {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "quota cannot change after the ranking has been finalized")
		}
		if err := s.paths.UpdateQuota(ctx, tx, tenantID, pathID, req.Quota); err != nil {
			return appErrors.Internal(err, "failed to update quota")
		}
		details, _ := json.Marshal(map[string]int{"from": path.Quota, "to": req.Quota})
		return s.audit.Create(ctx, tx, &models.AuditLog{
			TenantID: tenantID,
			ActorID:  stringPtr(actorID),
			Action:   models.AuditActionQuotaUpdate,
			Target:   "admission_path:" + pathID,
			Details:  types.JSONText(details),
		})
	})
	if err != nil {
		return nil, asAppError(err, "failed to update quota")
	}
	path.Quota = req.Quota
	return path, nil
}
