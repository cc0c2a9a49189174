package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ppdb-admissions-api/internal/dto"
	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
)

type draftStore interface {
	GetOwned(ctx context.Context, id, userID, tenantID string) (*models.Application, error)
	SaveDraft(ctx context.Context, update models.DraftUpdate) (int, error)
}

type customFieldLister interface {
	ListForPath(ctx context.Context, tenantID, pathID string) ([]models.CustomField, error)
}

// DraftPatchInput identifies the draft being saved and carries the patch.
type DraftPatchInput struct {
	ApplicationID string
	UserID        string
	TenantID      string
	Patch         dto.DraftPatchRequest
}

// DraftService implements optimistic-concurrency draft saves for parents.
type DraftService struct {
	store     draftStore
	fields    customFieldLister
	cipher    FieldEncryptor
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewDraftService constructs the draft service.
func NewDraftService(store draftStore, fields customFieldLister, cipher FieldEncryptor, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *DraftService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DraftService{
		store:     store,
		fields:    fields,
		cipher:    cipher,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// ApplyDraftPatch saves a partial draft if the client's version matches the
// stored one and returns the new version. Stale versions fail with a
// *errors.VersionConflictError carrying the stored version; nothing from a
// rejected patch is written.
func (s *DraftService) ApplyDraftPatch(ctx context.Context, in DraftPatchInput) (*dto.DraftSaveResponse, error) {
	if in.Patch.Version == nil {
		s.metrics.RecordDraftSave(OutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrMissingVersion, "")
	}
	if err := s.validator.Struct(in.Patch); err != nil {
		s.metrics.RecordDraftSave(OutcomeRejected)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid draft payload")
	}
	clientVersion := *in.Patch.Version

	app, err := s.store.GetOwned(ctx, in.ApplicationID, in.UserID, in.TenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Internal(err, "failed to load application")
	}
	if app.Status != models.ApplicationDraft {
		s.metrics.RecordDraftSave(OutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "application is no longer a draft")
	}
	if app.Version != clientVersion {
		s.metrics.RecordDraftSave(OutcomeConflict)
		return nil, appErrors.NewVersionConflict(app.Version)
	}

	update, err := s.buildUpdate(ctx, app, in)
	if err != nil {
		s.metrics.RecordDraftSave(OutcomeRejected)
		return nil, err
	}

	version, err := s.store.SaveDraft(ctx, update)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.resolveLostRace(ctx, in)
		}
		s.metrics.RecordDraftSave(OutcomeError)
		s.logger.Error("draft save failed",
			zap.String("tenant_id", in.TenantID), zap.String("application_id", in.ApplicationID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to save draft")
	}

	s.metrics.RecordDraftSave(OutcomeSuccess)
	return &dto.DraftSaveResponse{Version: version}, nil
}

// GetDraft returns the owner's application with sensitive custom fields decrypted.
func (s *DraftService) GetDraft(ctx context.Context, applicationID, userID, tenantID string) (*dto.DraftView, error) {
	app, err := s.store.GetOwned(ctx, applicationID, userID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Internal(err, "failed to load application")
	}
	defs, err := s.fields.ListForPath(ctx, tenantID, app.AdmissionPathID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load custom fields")
	}
	codec := newCustomFieldCodec(defs, s.validator, s.cipher, s.logger.With(zap.String("application_id", app.ID)))
	values := codec.reveal(app.CustomFieldValues)
	app.CustomFieldValues = nil
	return &dto.DraftView{Application: app, CustomFieldValues: values}, nil
}

func (s *DraftService) buildUpdate(ctx context.Context, app *models.Application, in DraftPatchInput) (models.DraftUpdate, error) {
	patch := in.Patch
	update := models.DraftUpdate{
		ApplicationID:   app.ID,
		UserID:          in.UserID,
		TenantID:        in.TenantID,
		ExpectedVersion: *patch.Version,
		CurrentStep:     patch.CurrentStep,
		ChildFullName:   trimmed(patch.ChildFullName),
		ParentFullName:  trimmed(patch.ParentFullName),
		ParentPhone:     trimmed(patch.ParentPhone),
		DistanceM:       patch.DistanceM,
		UpdatedAt:       s.now().UTC(),
	}
	if patch.ChildDOB != nil {
		dob, err := time.Parse(models.DateLayout, *patch.ChildDOB)
		if err != nil {
			return update, appErrors.Clone(appErrors.ErrValidation, "childDob must be YYYY-MM-DD")
		}
		update.ChildDOB = &dob
	}

	if len(patch.CustomFieldValues) == 0 && patch.AnsweredCustomFields == nil {
		return update, nil
	}

	defs, err := s.fields.ListForPath(ctx, in.TenantID, app.AdmissionPathID)
	if err != nil {
		return update, appErrors.Internal(err, "failed to load custom fields")
	}
	codec := newCustomFieldCodec(defs, s.validator, s.cipher, s.logger.With(zap.String("application_id", app.ID)))

	if len(patch.CustomFieldValues) > 0 {
		merged, err := codec.merge(app.CustomFieldValues, patch.CustomFieldValues)
		if err != nil {
			var fieldErr FieldError
			if errors.As(err, &fieldErr) {
				return update, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fieldErr.Error())
			}
			s.logger.Error("custom field encryption failed", zap.String("application_id", app.ID), zap.Error(err))
			return update, appErrors.Internal(err, "failed to protect custom field values")
		}
		update.CustomFieldValues = merged
	}
	answered, err := codec.answered(patch.AnsweredCustomFields)
	if err != nil {
		return update, appErrors.Internal(err, "failed to encode answered fields")
	}
	update.AnsweredCustomFields = answered
	return update, nil
}

// resolveLostRace explains why a conditional save matched no row: the draft
// vanished, left draft status, or another writer bumped the version first.
func (s *DraftService) resolveLostRace(ctx context.Context, in DraftPatchInput) error {
	app, err := s.store.GetOwned(ctx, in.ApplicationID, in.UserID, in.TenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		s.metrics.RecordDraftSave(OutcomeError)
		return appErrors.Internal(err, "failed to reload application")
	}
	if app.Status != models.ApplicationDraft {
		s.metrics.RecordDraftSave(OutcomeRejected)
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "application is no longer a draft")
	}
	s.metrics.RecordDraftSave(OutcomeConflict)
	return appErrors.NewVersionConflict(app.Version)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
