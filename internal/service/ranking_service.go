package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
	appErrors "github.com/noah-isme/ppdb-admissions-api/pkg/errors"
)

type rankingPathReader interface {
	GetForTenant(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.AdmissionPath, error)
	CountAccepted(ctx context.Context, exec sqlx.ExtContext, tenantID, pathID string) (int, error)
}

type eligibleLister interface {
	ListEligible(ctx context.Context, exec sqlx.ExtContext, tenantID, pathID string) ([]models.EligibleCandidate, error)
}

// RankingServiceOption customises the ranking service.
type RankingServiceOption func(*RankingService)

// WithRankingClock overrides the clock used for age computation.
func WithRankingClock(now func() time.Time) RankingServiceOption {
	return func(s *RankingService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRankingCache enables caching of eligible rows.
func WithRankingCache(cache *CacheService, ttl time.Duration) RankingServiceOption {
	return func(s *RankingService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// RankingService computes the ordered candidate list of an admission path.
type RankingService struct {
	paths    rankingPathReader
	apps     eligibleLister
	cache    *CacheService
	cacheTTL time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewRankingService constructs the ranking service.
func NewRankingService(paths rankingPathReader, apps eligibleLister, metrics *MetricsService, logger *zap.Logger, opts ...RankingServiceOption) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RankingService{
		paths:   paths,
		apps:    apps,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// ComputeRanking returns the eligible candidates of the path in rank order.
// It never writes.
func (s *RankingService) ComputeRanking(ctx context.Context, tenantID, pathID string) ([]models.RankedCandidate, error) {
	if _, err := s.loadPath(ctx, nil, tenantID, pathID); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.eligible(ctx, tenantID, pathID)
	if err != nil {
		return nil, err
	}
	ranked := rankCandidates(rows, s.now())
	s.metrics.ObserveRanking(time.Since(start))
	return ranked, nil
}

// RankWithin recomputes the ranking through exec, bypassing the cache. It is
// used inside finalization so the snapshot matches the locked state.
func (s *RankingService) RankWithin(ctx context.Context, exec sqlx.ExtContext, tenantID, pathID string) ([]models.RankedCandidate, error) {
	start := time.Now()
	rows, err := s.apps.ListEligible(ctx, exec, tenantID, pathID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load eligible applications")
	}
	ranked := rankCandidates(rows, s.now())
	s.metrics.ObserveRanking(time.Since(start))
	return ranked, nil
}

// PreviewRanking annotates the current ranking with the status each candidate
// would receive for the given quotas. A nil accepted quota uses the remaining
// path capacity; a nil reserved quota means no waitlist.
func (s *RankingService) PreviewRanking(ctx context.Context, tenantID, pathID string, accepted, reserved *int) (*models.RankingPreview, error) {
	path, err := s.loadPath(ctx, nil, tenantID, pathID)
	if err != nil {
		return nil, err
	}

	acceptedQuota := 0
	if accepted != nil {
		acceptedQuota = *accepted
	} else {
		already, err := s.paths.CountAccepted(ctx, nil, tenantID, pathID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to count accepted applications")
		}
		acceptedQuota = path.Quota - already
	}
	reservedQuota := 0
	if reserved != nil {
		reservedQuota = *reserved
	}
	if acceptedQuota < 0 || reservedQuota < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "quotas must be non-negative")
	}

	ranked, err := s.ComputeRanking(ctx, tenantID, pathID)
	if err != nil {
		return nil, err
	}

	preview := &models.RankingPreview{
		PathID:        path.ID,
		Quota:         path.Quota,
		AcceptedQuota: acceptedQuota,
		ReservedQuota: reservedQuota,
		Candidates:    make([]models.PreviewCandidate, len(ranked)),
	}
	for i, candidate := range ranked {
		status := statusForRank(candidate.Rank, acceptedQuota, reservedQuota)
		preview.Candidates[i] = models.PreviewCandidate{RankedCandidate: candidate, EstimatedStatus: status}
		switch status {
		case models.DetailAccepted:
			preview.Totals.Accepted++
		case models.DetailReserved:
			preview.Totals.Reserved++
		default:
			preview.Totals.Rejected++
		}
	}
	preview.Totals.Candidates = len(ranked)
	return preview, nil
}

// InvalidatePath drops the cached ranking rows of the path.
func (s *RankingService) InvalidatePath(ctx context.Context, tenantID, pathID string) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, RankingCacheKey(tenantID, pathID))
}

func (s *RankingService) eligible(ctx context.Context, tenantID, pathID string) ([]models.EligibleCandidate, error) {
	key := RankingCacheKey(tenantID, pathID)
	var rows []models.EligibleCandidate
	if s.cache.Get(ctx, key, &rows) {
		return rows, nil
	}

	rows, err := s.apps.ListEligible(ctx, nil, tenantID, pathID)
	if err != nil {
		s.logger.Error("failed to load eligible applications",
			zap.String("tenant_id", tenantID), zap.String("path_id", pathID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to load eligible applications")
	}
	s.cache.Set(ctx, key, rows, s.cacheTTL)
	return rows, nil
}

func (s *RankingService) loadPath(ctx context.Context, exec sqlx.ExtContext, tenantID, pathID string) (*models.AdmissionPath, error) {
	path, err := s.paths.GetForTenant(ctx, exec, tenantID, pathID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission path not found")
		}
		return nil, appErrors.Internal(err, "failed to load admission path")
	}
	return path, nil
}
