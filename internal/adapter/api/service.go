package api

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/ingest"
	"github.com/eslsoft/lexloop/internal/repository"
	"github.com/eslsoft/lexloop/internal/usecase"
)

// IngestTrigger runs the configured ingest sources on demand.
type IngestTrigger interface {
	Run(ctx context.Context, opts ingest.Options) (*ingest.Stats, error)
}

// Service is the transport-neutral application surface. The HTTP handler is
// a thin shell around it; a CLI or test harness can call it directly.
type Service struct {
	users       usecase.UserUsecase
	items       usecase.ItemUsecase
	reviews     usecase.ReviewUsecase
	sessions    usecase.SessionUsecase
	assessments usecase.AssessmentUsecase
	ingest      IngestTrigger
	logger      *logrus.Logger
}

// NewService wires the usecases behind one surface.
func NewService(
	users usecase.UserUsecase,
	items usecase.ItemUsecase,
	reviews usecase.ReviewUsecase,
	sessions usecase.SessionUsecase,
	assessments usecase.AssessmentUsecase,
	trigger IngestTrigger,
	logger *logrus.Logger,
) *Service {
	return &Service{
		users:       users,
		items:       items,
		reviews:     reviews,
		sessions:    sessions,
		assessments: assessments,
		ingest:      trigger,
		logger:      logger,
	}
}

// parseLevelTag rejects non-empty tags that do not resolve.
func parseLevelTag(tag string) (entity.Level, error) {
	if tag == "" {
		return entity.LevelUnspecified, nil
	}
	level := entity.ParseLevel(tag)
	if level == entity.LevelUnspecified {
		return level, fmt.Errorf("%w: unknown level %q", entity.ErrInvalidInput, tag)
	}
	return level, nil
}

func parseKindTag(tag string) (entity.ItemKind, error) {
	if tag == "" {
		return entity.ItemKindUnspecified, nil
	}
	kind := entity.ParseItemKind(tag)
	if kind == entity.ItemKindUnspecified {
		return kind, fmt.Errorf("%w: unknown item kind %q", entity.ErrInvalidInput, tag)
	}
	return kind, nil
}

func parseLanguageTag(tag string) (entity.Language, error) {
	if tag == "" {
		return entity.LanguageUnspecified, nil
	}
	lang := entity.ParseLanguage(tag)
	if lang == entity.LanguageUnspecified {
		return lang, fmt.Errorf("%w: unknown language %q", entity.ErrInvalidInput, tag)
	}
	return lang, nil
}

func (s *Service) RegisterUser(ctx context.Context, req *RegisterUserRequest) (*UserResponse, error) {
	prefs, err := parsePreferences(req.EnglishLevel, req.JapaneseLevel, req.DailyMinutes)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Register(ctx, req.Username, req.Password, prefs)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *Service) UpdatePreferences(ctx context.Context, userID int64, req *UpdatePreferencesRequest) (*UserResponse, error) {
	prefs, err := parsePreferences(req.EnglishLevel, req.JapaneseLevel, req.DailyMinutes)
	if err != nil {
		return nil, err
	}
	user, err := s.users.UpdatePreferences(ctx, userID, prefs)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

func parsePreferences(english, japanese string, dailyMinutes int32) (usecase.Preferences, error) {
	englishLevel, err := parseLevelTag(english)
	if err != nil {
		return usecase.Preferences{}, err
	}
	japaneseLevel, err := parseLevelTag(japanese)
	if err != nil {
		return usecase.Preferences{}, err
	}
	return usecase.Preferences{
		EnglishLevel:  englishLevel,
		JapaneseLevel: japaneseLevel,
		DailyMinutes:  dailyMinutes,
	}, nil
}

// StartSession plans a study day. A transient store failure degrades to an
// empty plan instead of an error: the client shows "nothing to study right
// now" and retries later.
func (s *Service) StartSession(ctx context.Context, req *StartSessionRequest) (*SessionResponse, error) {
	englishLevel, err := parseLevelTag(req.EnglishLevel)
	if err != nil {
		return nil, err
	}
	japaneseLevel, err := parseLevelTag(req.JapaneseLevel)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.StartSession(ctx, req.UserID, &usecase.PlanOverrides{
		EnglishLevel:  englishLevel,
		JapaneseLevel: japaneseLevel,
		DailyMinutes:  req.DailyMinutes,
	})
	if err != nil {
		switch entity.KindOf(err) {
		case entity.KindTransient, entity.KindTimeout:
			s.logger.WithField("user_id", req.UserID).WithError(err).Warn("session planning degraded to empty plan")
			return &SessionResponse{UserID: req.UserID, Activities: []ActivityResponse{}}, nil
		}
		return nil, err
	}
	return toSessionResponse(session), nil
}

func (s *Service) GetSession(ctx context.Context, sessionID string) (*SessionResponse, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(session), nil
}

func (s *Service) AdvanceActivity(ctx context.Context, sessionID string, seq int, status string) (*SessionResponse, error) {
	next := entity.ActivityStatus(status)
	switch next {
	case entity.ActivityInProgress, entity.ActivityCompleted, entity.ActivityAbandoned:
	default:
		return nil, fmt.Errorf("%w: unknown activity status %q", entity.ErrInvalidInput, status)
	}
	session, err := s.sessions.AdvanceActivity(ctx, sessionID, seq, next)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(session), nil
}

func (s *Service) FinishSession(ctx context.Context, sessionID string) (*SessionRollupResponse, error) {
	rollup, err := s.sessions.FinishSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return toRollupResponse(rollup), nil
}

func (s *Service) GetDue(ctx context.Context, userID int64, kindTag string, limit int32) ([]DueReviewResponse, error) {
	kind, err := parseKindTag(kindTag)
	if err != nil {
		return nil, err
	}
	due, err := s.reviews.GetDue(ctx, &repository.DueQuery{UserID: userID, Kind: kind, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]DueReviewResponse, 0, len(due))
	for _, review := range due {
		out = append(out, toDueReviewResponse(review))
	}
	return out, nil
}

// SubmitAttempt records one attempt. A store failure is not an error from the
// client's point of view: the response carries the unchanged record with the
// feedback flagged not-recorded.
func (s *Service) SubmitAttempt(ctx context.Context, req *SubmitAttemptRequest) (*AttemptResponse, error) {
	kind, err := parseKindTag(req.Kind)
	if err != nil {
		return nil, err
	}
	if kind == entity.ItemKindUnspecified {
		return nil, fmt.Errorf("%w: item kind required", entity.ErrInvalidInput)
	}

	result, err := s.assessments.RecordAttempt(ctx, req.UserID, req.ItemID, kind, req.Correct)
	if err != nil {
		if result == nil {
			return nil, err
		}
		return toAttemptResponse(result), nil
	}

	if req.SessionID != "" && req.Seq > 0 {
		if noteErr := s.sessions.NoteAttempt(ctx, req.SessionID, req.Seq); noteErr != nil {
			s.logger.WithFields(logrus.Fields{
				"session_id": req.SessionID,
				"seq":        req.Seq,
			}).WithError(noteErr).Warn("session attempt bookkeeping failed")
		}
	}
	return toAttemptResponse(result), nil
}

func (s *Service) Progress(ctx context.Context, userID int64) (*ProgressResponse, error) {
	stats, err := s.reviews.Progress(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toProgressResponse(stats), nil
}

func (s *Service) CreateItem(ctx context.Context, req *CreateItemRequest) (*ItemResponse, error) {
	kind, err := parseKindTag(req.Kind)
	if err != nil {
		return nil, err
	}
	lang, err := parseLanguageTag(req.Language)
	if err != nil {
		return nil, err
	}
	level, err := parseLevelTag(req.Level)
	if err != nil {
		return nil, err
	}
	item, err := s.items.CreateItem(ctx, &entity.Item{
		Kind:     kind,
		Language: lang,
		Level:    level,
		Headword: req.Headword,
		Reading:  req.Reading,
		Meaning:  req.Meaning,
		Example:  req.Example,
		Examples: req.Examples,
		Body:     req.Body,
	})
	if err != nil {
		return nil, err
	}
	return toItemResponse(item), nil
}

func (s *Service) GetItem(ctx context.Context, kindTag string, id int64) (*ItemResponse, error) {
	kind, err := parseKindTag(kindTag)
	if err != nil {
		return nil, err
	}
	item, err := s.items.GetItem(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return toItemResponse(item), nil
}

func (s *Service) ListItems(ctx context.Context, kindTag string, query *repository.ListItemQuery) (*ListItemsResponse, error) {
	kind, err := parseKindTag(kindTag)
	if err != nil {
		return nil, err
	}
	query.Kind = kind
	items, total, err := s.items.ListItems(ctx, query)
	if err != nil {
		return nil, err
	}
	resp := &ListItemsResponse{Items: make([]*ItemResponse, 0, len(items)), Total: total}
	for _, item := range items {
		resp.Items = append(resp.Items, toItemResponse(item))
	}
	return resp, nil
}

func (s *Service) AttachAudio(ctx context.Context, kindTag string, id int64, audioRef string) error {
	kind, err := parseKindTag(kindTag)
	if err != nil {
		return err
	}
	return s.items.AttachAudio(ctx, kind, id, audioRef)
}

func (s *Service) IngestRun(ctx context.Context, req *IngestRunRequest) (*IngestRunResponse, error) {
	lang, err := parseLanguageTag(req.Language)
	if err != nil {
		return nil, err
	}
	level, err := parseLevelTag(req.Level)
	if err != nil {
		return nil, err
	}

	stats, err := s.ingest.Run(ctx, ingest.Options{
		Incremental: req.Incremental,
		Language:    lang,
		Level:       level,
	})
	if err != nil {
		return nil, err
	}
	return &IngestRunResponse{
		Sources:   stats.Sources,
		Requests:  stats.Requests,
		Successes: stats.Successes,
		Failures:  stats.Failures,
		Retries:   stats.Retries,
		Parsed:    stats.Parsed,
		Written:   stats.Written,
		Skipped:   stats.Skipped,
		Fallbacks: stats.Fallbacks,
		ElapsedMS: stats.Elapsed.Milliseconds(),
		ReqPerSec: stats.RequestsPerSecond(),
	}, nil
}
