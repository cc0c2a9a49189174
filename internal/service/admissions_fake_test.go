package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ppdb-admissions-api/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// admissionsDB is an in-memory stand-in for the admissions tables. The exec
// argument of every store method is ignored; transactions are observed through
// the sqlmock provider instead.
type admissionsDB struct {
	mu      sync.Mutex
	seq     int
	paths   map[string]*models.AdmissionPath
	apps    map[string]*models.Application
	scores  map[string]*models.ApplicationScore
	results []*models.SelectionResult
	details []*models.SelectionResultDetail
	audits  []models.AuditLog
	fields  []models.CustomField

	saveDraftHook func()
}

func newAdmissionsDB() *admissionsDB {
	return &admissionsDB{
		paths:  map[string]*models.AdmissionPath{},
		apps:   map[string]*models.Application{},
		scores: map[string]*models.ApplicationScore{},
	}
}

func (db *admissionsDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%d", prefix, db.seq)
}

func (db *admissionsDB) addPath(tenantID, id, name string, quota int) {
	db.paths[id] = &models.AdmissionPath{ID: id, TenantID: tenantID, Name: name, Quota: quota, Status: models.AdmissionPathOpen}
}

type seedApp struct {
	id       string
	tenantID string
	pathID   string
	userID   string
	status   models.ApplicationStatus
	name     string
	phone    string
	score    *float64
	distance *float64
	dob      *time.Time
	created  time.Time
}

func (db *admissionsDB) addApp(s seedApp) {
	if s.userID == "" {
		s.userID = "user-" + s.id
	}
	if s.status == "" {
		s.status = models.ApplicationVerified
	}
	app := &models.Application{
		ID:              s.id,
		TenantID:        s.tenantID,
		UserID:          s.userID,
		AdmissionPathID: s.pathID,
		Status:          s.status,
		Version:         1,
		DistanceM:       s.distance,
		ChildDOB:        s.dob,
		CreatedAt:       s.created,
	}
	if s.name != "" {
		name := s.name
		parent := "Parent of " + s.name
		app.ChildFullName = &name
		app.ParentFullName = &parent
	}
	if s.phone != "" {
		phone := s.phone
		app.ParentPhone = &phone
	}
	db.apps[s.id] = app
	if s.score != nil {
		db.scores[s.id] = &models.ApplicationScore{
			ID:            "score-" + s.id,
			ApplicationID: s.id,
			TenantID:      s.tenantID,
			Score:         *s.score,
			IsFinalized:   true,
		}
	}
}

func (db *admissionsDB) status(id string) models.ApplicationStatus {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.apps[id].Status
}

func (db *admissionsDB) countStatus(pathID string, status models.ApplicationStatus) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, app := range db.apps {
		if app.AdmissionPathID == pathID && app.Status == status {
			n++
		}
	}
	return n
}

func (db *admissionsDB) auditActions() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, len(db.audits))
	for i, a := range db.audits {
		out[i] = a.Action
	}
	return out
}

func scorePtr(v float64) *float64 { return &v }

// fakePathStore implements the admission path persistence.
type fakePathStore struct{ db *admissionsDB }

func (s fakePathStore) GetForTenant(_ context.Context, _ sqlx.ExtContext, tenantID, id string) (*models.AdmissionPath, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	path, ok := s.db.paths[id]
	if !ok || path.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	copied := *path
	return &copied, nil
}

func (s fakePathStore) LockForUpdate(ctx context.Context, exec sqlx.ExtContext, tenantID, id string) (*models.AdmissionPath, error) {
	return s.GetForTenant(ctx, exec, tenantID, id)
}

func (s fakePathStore) CountAccepted(_ context.Context, _ sqlx.ExtContext, tenantID, pathID string) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, app := range s.db.apps {
		if app.TenantID == tenantID && app.AdmissionPathID == pathID && app.Status == models.ApplicationAccepted {
			n++
		}
	}
	return n, nil
}

func (s fakePathStore) UpdateQuota(_ context.Context, _ sqlx.ExtContext, tenantID, id string, quota int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	path, ok := s.db.paths[id]
	if !ok || path.TenantID != tenantID {
		return sql.ErrNoRows
	}
	path.Quota = quota
	return nil
}

// fakeApplicationStore implements application persistence.
type fakeApplicationStore struct{ db *admissionsDB }

func (s fakeApplicationStore) ListEligible(_ context.Context, _ sqlx.ExtContext, tenantID, pathID string) ([]models.EligibleCandidate, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.EligibleCandidate
	for _, app := range s.db.apps {
		if app.TenantID != tenantID || app.AdmissionPathID != pathID || app.Status != models.ApplicationVerified {
			continue
		}
		score, ok := s.db.scores[app.ID]
		if !ok || !score.IsFinalized {
			continue
		}
		out = append(out, models.EligibleCandidate{
			ApplicationID: app.ID,
			ChildFullName: app.ChildFullName,
			Score:         score.Score,
			DistanceM:     app.DistanceM,
			ChildDOB:      app.ChildDOB,
			CreatedAt:     app.CreatedAt,
		})
	}
	// Map iteration order is random; the ranking must not depend on it.
	sort.Slice(out, func(i, j int) bool { return out[i].ApplicationID > out[j].ApplicationID })
	return out, nil
}

func (s fakeApplicationStore) GetForTenant(_ context.Context, _ sqlx.ExtContext, tenantID, id string) (*models.Application, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	app, ok := s.db.apps[id]
	if !ok || app.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (s fakeApplicationStore) GetOwned(_ context.Context, id, userID, tenantID string) (*models.Application, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	app, ok := s.db.apps[id]
	if !ok || app.TenantID != tenantID || app.UserID != userID {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (s fakeApplicationStore) SaveDraft(_ context.Context, update models.DraftUpdate) (int, error) {
	if s.db.saveDraftHook != nil {
		s.db.saveDraftHook()
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	app, ok := s.db.apps[update.ApplicationID]
	if !ok || app.TenantID != update.TenantID || app.UserID != update.UserID ||
		app.Version != update.ExpectedVersion || app.Status != models.ApplicationDraft {
		return 0, sql.ErrNoRows
	}
	if update.ChildFullName != nil {
		app.ChildFullName = update.ChildFullName
	}
	if update.ChildDOB != nil {
		app.ChildDOB = update.ChildDOB
	}
	if update.ParentFullName != nil {
		app.ParentFullName = update.ParentFullName
	}
	if update.ParentPhone != nil {
		app.ParentPhone = update.ParentPhone
	}
	if update.DistanceM != nil {
		app.DistanceM = update.DistanceM
	}
	if update.CurrentStep != nil {
		app.CurrentStep = *update.CurrentStep
	}
	if update.CustomFieldValues != nil {
		app.CustomFieldValues = update.CustomFieldValues
	}
	if update.AnsweredCustomFields != nil {
		app.AnsweredCustomFields = update.AnsweredCustomFields
	}
	app.Version++
	app.UpdatedAt = update.UpdatedAt
	return app.Version, nil
}

func (s fakeApplicationStore) UpdateStatus(_ context.Context, _ sqlx.ExtContext, tenantID, id string, from, to models.ApplicationStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	app, ok := s.db.apps[id]
	if !ok || app.TenantID != tenantID || app.Status != from {
		return sql.ErrNoRows
	}
	app.Status = to
	return nil
}

// fakeResultStore implements selection result persistence.
type fakeResultStore struct{ db *admissionsDB }

func (s fakeResultStore) Create(_ context.Context, _ sqlx.ExtContext, result *models.SelectionResult) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if result.ID == "" {
		result.ID = s.db.nextID("result")
	}
	copied := *result
	copied.Details = nil
	s.db.results = append(s.db.results, &copied)
	return nil
}

func (s fakeResultStore) CreateDetails(_ context.Context, _ sqlx.ExtContext, details []models.SelectionResultDetail) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for i := range details {
		if details[i].ID == "" {
			details[i].ID = s.db.nextID("detail")
		}
		copied := details[i]
		s.db.details = append(s.db.details, &copied)
	}
	return nil
}

func (s fakeResultStore) Latest(_ context.Context, _ sqlx.ExtContext, tenantID, pathID string) (*models.SelectionResult, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for i := len(s.db.results) - 1; i >= 0; i-- {
		r := s.db.results[i]
		if r.TenantID == tenantID && r.AdmissionPathID == pathID {
			copied := *r
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s fakeResultStore) ExistsForPath(ctx context.Context, exec sqlx.ExtContext, tenantID, pathID string) (bool, error) {
	_, err := s.Latest(ctx, exec, tenantID, pathID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// resultOwnedBy must be called with db.mu held.
func (s fakeResultStore) resultOwnedBy(tenantID, resultID string) bool {
	for _, r := range s.db.results {
		if r.ID == resultID {
			return r.TenantID == tenantID
		}
	}
	return false
}

func (s fakeResultStore) ListDetails(_ context.Context, tenantID, resultID string) ([]models.SelectionResultDetail, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.SelectionResultDetail
	if !s.resultOwnedBy(tenantID, resultID) {
		return out, nil
	}
	for _, d := range s.db.details {
		if d.SelectionResultID == resultID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (s fakeResultStore) BestReserved(_ context.Context, _ sqlx.ExtContext, tenantID, resultID string) (*models.WaitlistCandidate, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if !s.resultOwnedBy(tenantID, resultID) {
		return nil, sql.ErrNoRows
	}
	var best *models.SelectionResultDetail
	for _, d := range s.db.details {
		if d.SelectionResultID != resultID || d.Status != models.DetailReserved {
			continue
		}
		if best == nil || d.Rank < best.Rank {
			best = d
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	app := s.db.apps[best.ApplicationID]
	return &models.WaitlistCandidate{
		DetailID:       best.ID,
		Rank:           best.Rank,
		ApplicationID:  best.ApplicationID,
		Status:         app.Status,
		ChildFullName:  app.ChildFullName,
		ParentFullName: app.ParentFullName,
		ParentPhone:    app.ParentPhone,
	}, nil
}

func (s fakeResultStore) UpdateDetailStatus(_ context.Context, _ sqlx.ExtContext, tenantID, id string, status models.SelectionDetailStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, d := range s.db.details {
		if d.ID == id && s.resultOwnedBy(tenantID, d.SelectionResultID) {
			d.Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

// fakeAuditStore records audit entries.
type fakeAuditStore struct{ db *admissionsDB }

func (s fakeAuditStore) Create(_ context.Context, _ sqlx.ExtContext, entry *models.AuditLog) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.audits = append(s.db.audits, *entry)
	return nil
}

// fakeScoreStore implements score persistence keyed by application id.
type fakeScoreStore struct{ db *admissionsDB }

func (s fakeScoreStore) GetByApplication(_ context.Context, _ sqlx.ExtContext, tenantID, applicationID string) (*models.ApplicationScore, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	score, ok := s.db.scores[applicationID]
	if !ok || score.TenantID != tenantID {
		return nil, sql.ErrNoRows
	}
	copied := *score
	return &copied, nil
}

func (s fakeScoreStore) GetByID(_ context.Context, _ sqlx.ExtContext, tenantID, id string, _ bool) (*models.ApplicationScore, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, score := range s.db.scores {
		if score.ID == id && score.TenantID == tenantID {
			copied := *score
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s fakeScoreStore) Upsert(_ context.Context, _ sqlx.ExtContext, score *models.ApplicationScore) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if existing, ok := s.db.scores[score.ApplicationID]; ok {
		if existing.IsFinalized {
			return sql.ErrNoRows
		}
		score.ID = existing.ID
	}
	if score.ID == "" {
		score.ID = s.db.nextID("score")
	}
	copied := *score
	s.db.scores[score.ApplicationID] = &copied
	return nil
}

func (s fakeScoreStore) Unlock(_ context.Context, _ sqlx.ExtContext, tenantID, id, actorID, reason string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, score := range s.db.scores {
		if score.ID == id && score.TenantID == tenantID && score.IsFinalized {
			score.IsFinalized = false
			score.UnlockedBy = &actorID
			score.UnlockReason = &reason
			return nil
		}
	}
	return sql.ErrNoRows
}

// fakeFieldStore serves custom field definitions.
type fakeFieldStore struct{ db *admissionsDB }

func (s fakeFieldStore) ListForPath(_ context.Context, tenantID, pathID string) ([]models.CustomField, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.CustomField
	for _, f := range s.db.fields {
		if f.TenantID != tenantID {
			continue
		}
		if f.AdmissionPathID == nil || *f.AdmissionPathID == pathID {
			out = append(out, f)
		}
	}
	return out, nil
}

// recordingNotifier captures sent messages.
type recordingNotifier struct {
	mu     sync.Mutex
	phones []string
	texts  []string
	result bool
}

func (n *recordingNotifier) Send(_ context.Context, phone, text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.phones = append(n.phones, phone)
	n.texts = append(n.texts, text)
	return n.result
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.phones)
}
