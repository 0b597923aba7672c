package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/infrastructure/config"
	"github.com/eslsoft/lexloop/internal/infrastructure/database"
	"github.com/eslsoft/lexloop/internal/ingest"
	"github.com/eslsoft/lexloop/internal/repository"
	"github.com/eslsoft/lexloop/internal/usecase"
)

// Function-field stubs keep each test focused on one route's behaviour.

type stubUsers struct {
	register func(context.Context, string, string, usecase.Preferences) (*entity.User, error)
}

func (s *stubUsers) Register(ctx context.Context, username, password string, prefs usecase.Preferences) (*entity.User, error) {
	return s.register(ctx, username, password, prefs)
}
func (s *stubUsers) GetProfile(context.Context, int64) (*entity.User, error) {
	return nil, entity.ErrUserNotFound
}
func (s *stubUsers) UpdatePreferences(context.Context, int64, usecase.Preferences) (*entity.User, error) {
	return nil, entity.ErrUserNotFound
}

type stubItems struct {
	attachAudio func(context.Context, entity.ItemKind, int64, string) error
}

func (s *stubItems) CreateItem(context.Context, *entity.Item) (*entity.Item, error) {
	return nil, entity.ErrInvalidInput
}
func (s *stubItems) GetItem(context.Context, entity.ItemKind, int64) (*entity.Item, error) {
	return nil, entity.ErrItemNotFound
}
func (s *stubItems) ListItems(context.Context, *repository.ListItemQuery) ([]*entity.Item, int64, error) {
	return nil, 0, nil
}
func (s *stubItems) AttachAudio(ctx context.Context, kind entity.ItemKind, id int64, ref string) error {
	if s.attachAudio == nil {
		return entity.ErrItemNotFound
	}
	return s.attachAudio(ctx, kind, id, ref)
}

type stubReviews struct {
	getDue   func(context.Context, *repository.DueQuery) ([]entity.DueReview, error)
	progress func(context.Context, int64) (*entity.UserStats, error)
}

func (s *stubReviews) GetDue(ctx context.Context, q *repository.DueQuery) ([]entity.DueReview, error) {
	return s.getDue(ctx, q)
}
func (s *stubReviews) Progress(ctx context.Context, userID int64) (*entity.UserStats, error) {
	return s.progress(ctx, userID)
}
func (s *stubReviews) PrioritizeBacklog(context.Context, int64, int32) ([]usecase.PrioritizedReview, error) {
	return nil, nil
}

type stubSessions struct {
	start func(context.Context, int64, *usecase.PlanOverrides) (*entity.Session, error)
	note  func(context.Context, string, int) error
}

func (s *stubSessions) StartSession(ctx context.Context, userID int64, o *usecase.PlanOverrides) (*entity.Session, error) {
	return s.start(ctx, userID, o)
}
func (s *stubSessions) GetSession(context.Context, string) (*entity.Session, error) {
	return nil, entity.ErrItemNotFound
}
func (s *stubSessions) AdvanceActivity(context.Context, string, int, entity.ActivityStatus) (*entity.Session, error) {
	return nil, entity.ErrItemNotFound
}
func (s *stubSessions) NoteAttempt(ctx context.Context, id string, seq int) error {
	if s.note == nil {
		return nil
	}
	return s.note(ctx, id, seq)
}
func (s *stubSessions) FinishSession(context.Context, string) (*entity.SessionRollup, error) {
	return nil, entity.ErrItemNotFound
}

type stubAssessments struct {
	record func(context.Context, int64, int64, entity.ItemKind, bool) (*usecase.AttemptResult, error)
}

func (s *stubAssessments) RecordAttempt(ctx context.Context, userID, itemID int64, kind entity.ItemKind, correct bool) (*usecase.AttemptResult, error) {
	return s.record(ctx, userID, itemID, kind, correct)
}
func (s *stubAssessments) EvaluateSessionOutcome(context.Context, int64, time.Time, time.Time) (*entity.SessionRollup, error) {
	return &entity.SessionRollup{}, nil
}

type stubIngest struct {
	run func(context.Context, ingest.Options) (*ingest.Stats, error)
}

func (s *stubIngest) Run(ctx context.Context, opts ingest.Options) (*ingest.Stats, error) {
	return s.run(ctx, opts)
}

type serviceStubs struct {
	users       stubUsers
	items       stubItems
	reviews     stubReviews
	sessions    stubSessions
	assessments stubAssessments
	ingest      stubIngest
}

func newTestHandler(stubs *serviceStubs) http.Handler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := NewService(&stubs.users, &stubs.items, &stubs.reviews, &stubs.sessions, &stubs.assessments, &stubs.ingest, logger)
	return NewHandler(svc, database.NewStats(&config.Config{}), time.Second, logger)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) *T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return &out
}

func TestSubmitAttemptRecorded(t *testing.T) {
	stubs := &serviceStubs{}
	stubs.assessments.record = func(ctx context.Context, userID, itemID int64, kind entity.ItemKind, correct bool) (*usecase.AttemptResult, error) {
		rec := &entity.LearningRecord{UserID: userID, ItemID: itemID, Kind: kind, LearnCount: 1, CorrectCount: 1}
		return &usecase.AttemptResult{
			Record:       rec,
			NextReviewAt: time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC),
			Feedback:     entity.GradeAttempt(correct, 1),
		}, nil
	}
	noted := false
	stubs.sessions.note = func(ctx context.Context, id string, seq int) error {
		noted = true
		return nil
	}

	h := newTestHandler(stubs)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/attempts", &SubmitAttemptRequest{
		UserID: 7, ItemID: 3, Kind: "vocabulary", Correct: true, SessionID: "s-1", Seq: 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[AttemptResponse](t, rec)
	if !resp.Feedback.Recorded || resp.Feedback.Severity != "excellent" {
		t.Errorf("feedback = %+v", resp.Feedback)
	}
	if !noted {
		t.Error("session bookkeeping not invoked")
	}
}

func TestSubmitAttemptStoreFailureStaysOK(t *testing.T) {
	stubs := &serviceStubs{}
	stubs.assessments.record = func(ctx context.Context, userID, itemID int64, kind entity.ItemKind, correct bool) (*usecase.AttemptResult, error) {
		prior := &entity.LearningRecord{UserID: userID, ItemID: itemID, Kind: kind, LearnCount: 4, CorrectCount: 3}
		return &usecase.AttemptResult{
			Record:   prior,
			Feedback: entity.NotRecorded(correct, 0.75),
		}, fmt.Errorf("upsert: %w", entity.ErrLockTimeout)
	}

	h := newTestHandler(stubs)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/attempts", &SubmitAttemptRequest{
		UserID: 7, ItemID: 3, Kind: "vocabulary", Correct: true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with not-recorded payload", rec.Code)
	}
	resp := decodeBody[AttemptResponse](t, rec)
	if resp.Feedback.Recorded {
		t.Error("feedback claims the attempt was recorded")
	}
	if resp.Record == nil || resp.Record.LearnCount != 4 {
		t.Errorf("record = %+v, want unchanged prior state", resp.Record)
	}
}

func TestSubmitAttemptUnknownKind(t *testing.T) {
	stubs := &serviceStubs{}
	stubs.assessments.record = func(context.Context, int64, int64, entity.ItemKind, bool) (*usecase.AttemptResult, error) {
		t.Fatal("usecase must not be reached")
		return nil, nil
	}

	h := newTestHandler(stubs)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/attempts", &SubmitAttemptRequest{
		UserID: 7, ItemID: 3, Kind: "prose", Correct: true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	envelope := decodeBody[ErrorEnvelope](t, rec)
	if envelope.Kind != string(entity.KindInvalidInput) {
		t.Errorf("envelope kind = %q", envelope.Kind)
	}
}

func TestStartSessionTransientFailureDegrades(t *testing.T) {
	stubs := &serviceStubs{}
	stubs.sessions.start = func(context.Context, int64, *usecase.PlanOverrides) (*entity.Session, error) {
		return nil, fmt.Errorf("plan: %w", entity.ErrPoolExhausted)
	}

	h := newTestHandler(stubs)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/sessions", &StartSessionRequest{UserID: 7})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 with empty plan", rec.Code)
	}
	resp := decodeBody[SessionResponse](t, rec)
	if len(resp.Activities) != 0 || resp.ID != "" {
		t.Errorf("response = %+v, want empty plan", resp)
	}
}

func TestStartSessionValidationError(t *testing.T) {
	stubs := &serviceStubs{}
	stubs.sessions.start = func(context.Context, int64, *usecase.PlanOverrides) (*entity.Session, error) {
		return nil, fmt.Errorf("%w: user id required", entity.ErrInvalidInput)
	}

	h := newTestHandler(stubs)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/sessions", &StartSessionRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetDuePassesQuery(t *testing.T) {
	stubs := &serviceStubs{}
	var captured *repository.DueQuery
	stubs.reviews.getDue = func(ctx context.Context, q *repository.DueQuery) ([]entity.DueReview, error) {
		captured = q
		return []entity.DueReview{{
			Record: entity.LearningRecord{UserID: 7, ItemID: 1, Kind: entity.ItemKindGrammar},
			Item:   entity.ItemCard{ItemID: 1, Kind: entity.ItemKindGrammar, Headword: "〜てから"},
		}}, nil
	}

	h := newTestHandler(stubs)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/reviews/due?user_id=7&kind=grammar&limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if captured == nil || captured.UserID != 7 || captured.Kind != entity.ItemKindGrammar || captured.Limit != 10 {
		t.Errorf("query = %+v", captured)
	}
	resp := decodeBody[[]DueReviewResponse](t, rec)
	if len(*resp) != 1 || (*resp)[0].Item.Headword != "〜てから" {
		t.Errorf("response = %+v", resp)
	}
}

func TestProgressNotFound(t *testing.T) {
	stubs := &serviceStubs{}
	stubs.reviews.progress = func(context.Context, int64) (*entity.UserStats, error) {
		return nil, fmt.Errorf("stats: %w", entity.ErrUserNotFound)
	}

	h := newTestHandler(stubs)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/users/42/progress", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAttachAudio(t *testing.T) {
	stubs := &serviceStubs{}
	var gotKind entity.ItemKind
	var gotRef string
	stubs.items.attachAudio = func(ctx context.Context, kind entity.ItemKind, id int64, ref string) error {
		gotKind, gotRef = kind, ref
		return nil
	}

	h := newTestHandler(stubs)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/items/vocabulary/5/audio", &AttachAudioRequest{AudioRef: "s3://audio/5.mp3"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if gotKind != entity.ItemKindVocabulary || gotRef != "s3://audio/5.mp3" {
		t.Errorf("attach call = (%s, %q)", gotKind, gotRef)
	}
}

func TestRegisterUser(t *testing.T) {
	stubs := &serviceStubs{}
	stubs.users.register = func(ctx context.Context, username, password string, prefs usecase.Preferences) (*entity.User, error) {
		return &entity.User{ID: 1, Username: username, EnglishLevel: entity.LevelCET4, JapaneseLevel: entity.LevelN5, DailyMinutes: 30}, nil
	}

	h := newTestHandler(stubs)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/users", &RegisterUserRequest{Username: "rin", Password: "correct horse"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[UserResponse](t, rec)
	if resp.Username != "rin" || resp.EnglishLevel != "cet-4" {
		t.Errorf("response = %+v", resp)
	}
}

func TestIngestRun(t *testing.T) {
	stubs := &serviceStubs{}
	var gotOpts ingest.Options
	stubs.ingest.run = func(ctx context.Context, opts ingest.Options) (*ingest.Stats, error) {
		gotOpts = opts
		return &ingest.Stats{Sources: 2, Requests: 2, Successes: 2, Written: 40, Elapsed: 2 * time.Second}, nil
	}

	h := newTestHandler(stubs)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/ingest/runs", &IngestRunRequest{Incremental: true, Language: "ja", Level: "n5"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !gotOpts.Incremental || gotOpts.Language != entity.LanguageJapanese || gotOpts.Level != entity.LevelN5 {
		t.Errorf("options = %+v", gotOpts)
	}
	resp := decodeBody[IngestRunResponse](t, rec)
	if resp.Written != 40 || resp.ReqPerSec != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestStoreStatsEndpoint(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	stubs := &serviceStubs{}
	svc := NewService(&stubs.users, &stubs.items, &stubs.reviews, &stubs.sessions, &stubs.assessments, &stubs.ingest, logger)

	stats := database.NewStats(&config.Config{})
	stats.Observe("records.list_due", 2*time.Millisecond)
	stats.Observe("items.batch_upsert", 250*time.Millisecond)
	h := NewHandler(svc, stats, time.Second, logger)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/admin/store-stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[StoreStatsResponse](t, rec)
	if resp.QueryCount != 2 {
		t.Errorf("query count = %d, want 2", resp.QueryCount)
	}
	if resp.TotalTimeMS != 252 {
		t.Errorf("total time = %dms, want 252", resp.TotalTimeMS)
	}
	if len(resp.SlowQueries) != 1 || resp.SlowQueries[0].Query != "items.batch_upsert" {
		t.Errorf("slow queries = %+v, want the 250ms query retained", resp.SlowQueries)
	}
}
