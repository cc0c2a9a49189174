package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	"github.com/noah-isme/ppdb-admissions-api/pkg/database"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
)

type ownedApplicationStore interface {
	GetOwned(ctx context.Context, id, userID, tenantID string) (*models.Application, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, from, to models.ApplicationStatus) error
}

type vacancyProcessor interface {
	ProcessVacancy(ctx context.Context, tenantID, pathID string) (*models.Promotion, error)
}

// WithdrawResult reports the withdrawal and any promotion it triggered.
type WithdrawResult struct {
	ApplicationID string                   `json:"applicationId"`
	Status        models.ApplicationStatus `json:"status"`
	Promotion     *models.Promotion        `json:"promotion,omitempty"`
}

// ApplicationService handles parent-initiated lifecycle changes.
type ApplicationService struct {
	tx       txProvider
	apps     ownedApplicationStore
	audit    auditWriter
	waitlist vacancyProcessor
	logger   *zap.Logger
}

// NewApplicationService constructs the service.
func NewApplicationService(tx txProvider, apps ownedApplicationStore, audit auditWriter, waitlist vacancyProcessor, logger *zap.Logger) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{tx: tx, apps: apps, audit: audit, waitlist: waitlist, logger: logger}
}

// Withdraw gives up an accepted seat and then tries to fill it from the
// waitlist. Withdrawn applications are stored as rejected; the status change
// and its audit row commit together. A failed promotion does not undo the
// withdrawal.
func (s *ApplicationService) Withdraw(ctx context.Context, tenantID, userID, applicationID string) (*WithdrawResult, error) {
	app, err := s.apps.GetOwned(ctx, applicationID, userID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Internal(err, "failed to load application")
	}
	if app.Status != models.ApplicationAccepted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only accepted applications can be withdrawn")
	}

	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	err = database.WithTransaction(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.apps.UpdateStatus(ctx, tx, tenantID, applicationID, models.ApplicationAccepted, models.ApplicationRejected); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "application status changed, reload and retry")
			}
			return appErrors.Internal(err, "failed to withdraw application")
		}
		if err := s.audit.Create(ctx, tx, &models.AuditLog{
			TenantID: tenantID,
			ActorID:  stringPtr(userID),
			Action:   models.AuditActionWithdraw,
			Target:   "application:" + applicationID,
		}); err != nil {
			return appErrors.Internal(err, "failed to write audit log")
		}
		return nil
	})
	if err != nil {
		appErr := asAppError(err, "failed to withdraw application")
		if appErr.Status >= 500 {
			s.logger.Error("withdrawal failed",
				zap.String("tenant_id", tenantID), zap.String("application_id", applicationID), zap.Error(err))
		}
		return nil, appErr
	}

	result := &WithdrawResult{ApplicationID: applicationID, Status: models.ApplicationRejected}
	if s.waitlist == nil {
		return result, nil
	}
	promotion, err := s.waitlist.ProcessVacancy(ctx, tenantID, app.AdmissionPathID)
	if err != nil {
		s.logger.Error("vacancy processing after withdrawal failed",
			zap.String("tenant_id", tenantID),
			zap.String("path_id", app.AdmissionPathID),
			zap.String("application_id", applicationID),
			zap.Error(err))
		return result, nil
	}
	result.Promotion = promotion
	return result, nil
}
