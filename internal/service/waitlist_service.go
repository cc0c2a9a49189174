package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	"github.com/noah-isme/ppdb-admissions-api/pkg/database"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
)

type waitlistResultStore interface {
	Latest(ctx context.Context, exec sqlx.ExtContext, tenantID, pathID string) (*models.SelectionResult, error)
	BestReserved(ctx context.Context, exec sqlx.ExtContext, tenantID, resultID string) (*models.WaitlistCandidate, error)
	UpdateDetailStatus(ctx context.Context, exec sqlx.ExtContext, tenantID, id string, status models.SelectionDetailStatus) error
}

type rankingInvalidator interface {
	InvalidatePath(ctx context.Context, tenantID, pathID string)
}

// Vacancy outcomes, also used as metric labels.
const (
	vacancyPromoted      = "promoted"
	vacancyNoPath        = "no_path"
	vacancyFull          = "no_vacancy"
	vacancyNoResult      = "no_result"
	vacancyNoCandidate   = "no_candidate"
	vacancyStatusChanged = "status_changed"
)

// errVacancySkipped aborts the promotion transaction without surfacing an error.
type errVacancySkipped struct{ reason string }

func (e errVacancySkipped) Error() string { return "vacancy skipped: " + e.reason }

// WaitlistService promotes reserved candidates into vacated slots.
type WaitlistService struct {
	tx       txProvider
	paths    lockingPathStore
	results  waitlistResultStore
	apps     applicationStatusWriter
	audit    auditWriter
	ranking  rankingInvalidator
	notifier Notifier
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewWaitlistService constructs the waitlist service.
func NewWaitlistService(
	tx txProvider,
	paths lockingPathStore,
	results waitlistResultStore,
	apps applicationStatusWriter,
	audit auditWriter,
	ranking rankingInvalidator,
	notifier Notifier,
	metrics *MetricsService,
	logger *zap.Logger,
) *WaitlistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaitlistService{
		tx:       tx,
		paths:    paths,
		results:  results,
		apps:     apps,
		audit:    audit,
		ranking:  ranking,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// ProcessVacancy promotes the best-ranked reserved candidate of the latest
// selection result when the path has a free slot. It returns nil, nil when
// nothing was promoted. The checks run under the path row lock so concurrent
// vacancy events cannot fill the same slot twice.
//
// Only the best-ranked reserved candidate is considered. If that candidate's
// application is no longer waitlisted the attempt stops without trying the
// next one.
func (s *WaitlistService) ProcessVacancy(ctx context.Context, tenantID, pathID string) (*models.Promotion, error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	log := s.logger.With(zap.String("tenant_id", tenantID), zap.String("path_id", pathID))

	var (
		path      *models.AdmissionPath
		candidate *models.WaitlistCandidate
	)
	err := database.WithTransaction(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		path, err = s.paths.LockForUpdate(ctx, tx, tenantID, pathID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errVacancySkipped{vacancyNoPath}
			}
			return appErrors.Internal(err, "failed to lock admission path")
		}

		accepted, err := s.paths.CountAccepted(ctx, tx, tenantID, pathID)
		if err != nil {
			return appErrors.Internal(err, "failed to count accepted applications")
		}
		if accepted >= path.Quota {
			return errVacancySkipped{vacancyFull}
		}

		result, err := s.results.Latest(ctx, tx, tenantID, pathID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errVacancySkipped{vacancyNoResult}
			}
			return appErrors.Internal(err, "failed to load selection result")
		}

		candidate, err = s.results.BestReserved(ctx, tx, tenantID, result.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errVacancySkipped{vacancyNoCandidate}
			}
			return appErrors.Internal(err, "failed to load waitlist candidate")
		}
		if candidate.Status != models.ApplicationWaitlisted {
			return errVacancySkipped{vacancyStatusChanged}
		}

		if err := s.apps.UpdateStatus(ctx, tx, tenantID, candidate.ApplicationID, models.ApplicationWaitlisted, models.ApplicationAccepted); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errVacancySkipped{vacancyStatusChanged}
			}
			return appErrors.Internal(err, "failed to promote application")
		}
		if err := s.results.UpdateDetailStatus(ctx, tx, tenantID, candidate.DetailID, models.DetailAccepted); err != nil {
			return appErrors.Internal(err, "failed to update selection detail")
		}

		details, _ := json.Marshal(map[string]interface{}{
			"pathId":        pathID,
			"applicationId": candidate.ApplicationID,
			"rank":          candidate.Rank,
			"acceptedCount": accepted + 1,
			"quota":         path.Quota,
		})
		if err := s.audit.Create(ctx, tx, &models.AuditLog{
			TenantID:  tenantID,
			Action:    models.AuditActionWaitlistPromote,
			Target:    "application:" + candidate.ApplicationID,
			Details:   types.JSONText(details),
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return appErrors.Internal(err, "failed to write audit log")
		}
		return nil
	})

	var skipped errVacancySkipped
	if errors.As(err, &skipped) {
		log.Info("vacancy not filled", zap.String("reason", skipped.reason))
		s.metrics.RecordPromotion(skipped.reason)
		return nil, nil
	}
	if err != nil {
		log.Error("waitlist promotion failed", zap.Error(err))
		s.metrics.RecordPromotion(OutcomeError)
		return nil, asAppError(err, "failed to process vacancy")
	}

	s.metrics.RecordPromotion(vacancyPromoted)
	if s.ranking != nil {
		s.ranking.InvalidatePath(ctx, tenantID, pathID)
	}

	promotion := &models.Promotion{
		TenantID:      tenantID,
		PathID:        pathID,
		ApplicationID: candidate.ApplicationID,
		DetailID:      candidate.DetailID,
		Rank:          candidate.Rank,
	}
	promotion.Notified = s.notify(ctx, path, candidate)
	log.Info("waitlist candidate promoted",
		zap.String("application_id", candidate.ApplicationID),
		zap.Int("rank", candidate.Rank),
		zap.Bool("notified", promotion.Notified))
	return promotion, nil
}

func (s *WaitlistService) notify(ctx context.Context, path *models.AdmissionPath, candidate *models.WaitlistCandidate) bool {
	if s.notifier == nil || candidate.ParentPhone == nil || *candidate.ParentPhone == "" {
		return false
	}
	text := acceptanceMessage(path.Name, deref(candidate.ParentFullName), deref(candidate.ChildFullName))
	return s.notifier.Send(ctx, *candidate.ParentPhone, text)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
