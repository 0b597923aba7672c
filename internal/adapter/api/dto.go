package api

import (
	"time"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/infrastructure/database"
	"github.com/eslsoft/lexloop/internal/usecase"
)

// Wire shapes for the JSON surface. Enums travel as their canonical string
// tags ("vocabulary", "cet-4", "ja"); parsing back is strict.

type RegisterUserRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	EnglishLevel  string `json:"english_level,omitempty"`
	JapaneseLevel string `json:"japanese_level,omitempty"`
	DailyMinutes  int32  `json:"daily_minutes,omitempty"`
}

type UpdatePreferencesRequest struct {
	EnglishLevel  string `json:"english_level,omitempty"`
	JapaneseLevel string `json:"japanese_level,omitempty"`
	DailyMinutes  int32  `json:"daily_minutes,omitempty"`
}

type UserResponse struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	EnglishLevel  string `json:"english_level"`
	JapaneseLevel string `json:"japanese_level"`
	DailyMinutes  int32  `json:"daily_minutes"`
}

func toUserResponse(user *entity.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		EnglishLevel:  string(user.EnglishLevel),
		JapaneseLevel: string(user.JapaneseLevel),
		DailyMinutes:  user.DailyMinutes,
	}
}

type StartSessionRequest struct {
	UserID        int64  `json:"user_id"`
	DailyMinutes  int32  `json:"daily_minutes,omitempty"`
	EnglishLevel  string `json:"english_level,omitempty"`
	JapaneseLevel string `json:"japanese_level,omitempty"`
}

type ActivityResponse struct {
	Seq      int    `json:"seq"`
	ItemID   int64  `json:"item_id"`
	Kind     string `json:"kind"`
	Language string `json:"language"`
	Mode     string `json:"mode"`
	Minutes  int32  `json:"minutes"`
	Status   string `json:"status"`
	Attempts int32  `json:"attempts"`
}

type SessionResponse struct {
	ID             string             `json:"id"`
	UserID         int64              `json:"user_id"`
	PlannedMinutes int32              `json:"planned_minutes"`
	ReviewMinutes  int32              `json:"review_minutes"`
	Activities     []ActivityResponse `json:"activities"`
	StartedAt      time.Time          `json:"started_at"`
}

func toSessionResponse(s *entity.Session) *SessionResponse {
	resp := &SessionResponse{
		ID:             s.ID,
		UserID:         s.UserID,
		PlannedMinutes: s.PlannedMinutes,
		ReviewMinutes:  s.ReviewMinutes,
		Activities:     make([]ActivityResponse, 0, len(s.Activities)),
		StartedAt:      s.StartedAt,
	}
	for _, a := range s.Activities {
		resp.Activities = append(resp.Activities, ActivityResponse{
			Seq:      a.Seq,
			ItemID:   a.ItemID,
			Kind:     a.Kind.String(),
			Language: a.Language.Code(),
			Mode:     string(a.Mode),
			Minutes:  a.Minutes,
			Status:   string(a.Status),
			Attempts: a.Attempts,
		})
	}
	return resp
}

type RecordResponse struct {
	UserID             int64     `json:"user_id"`
	ItemID             int64     `json:"item_id"`
	Kind               string    `json:"kind"`
	LearnCount         int32     `json:"learn_count"`
	CorrectCount       int32     `json:"correct_count"`
	ConsecutiveCorrect int32     `json:"consecutive_correct"`
	EaseFactor         float64   `json:"ease_factor"`
	MemoryStrength     float64   `json:"memory_strength"`
	MasteryLevel       int32     `json:"mastery_level"`
	IntervalDays       int32     `json:"interval_days"`
	LastReviewAt       time.Time `json:"last_review_at"`
	NextReviewAt       time.Time `json:"next_review_at"`
}

func toRecordResponse(rec *entity.LearningRecord) *RecordResponse {
	if rec == nil {
		return nil
	}
	return &RecordResponse{
		UserID:             rec.UserID,
		ItemID:             rec.ItemID,
		Kind:               rec.Kind.String(),
		LearnCount:         rec.LearnCount,
		CorrectCount:       rec.CorrectCount,
		ConsecutiveCorrect: rec.ConsecutiveCorrect,
		EaseFactor:         rec.EaseFactor,
		MemoryStrength:     rec.MemoryStrength,
		MasteryLevel:       rec.MasteryLevel,
		IntervalDays:       rec.IntervalDays,
		LastReviewAt:       rec.LastReviewAt,
		NextReviewAt:       rec.NextReviewAt,
	}
}

type ItemCardResponse struct {
	ItemID   int64  `json:"item_id"`
	Kind     string `json:"kind"`
	Language string `json:"language"`
	Level    string `json:"level"`
	Headword string `json:"headword"`
	Reading  string `json:"reading,omitempty"`
	Meaning  string `json:"meaning,omitempty"`
	AudioRef string `json:"audio_ref,omitempty"`
}

type DueReviewResponse struct {
	Record *RecordResponse  `json:"record"`
	Item   ItemCardResponse `json:"item"`
}

func toDueReviewResponse(review entity.DueReview) DueReviewResponse {
	return DueReviewResponse{
		Record: toRecordResponse(&review.Record),
		Item: ItemCardResponse{
			ItemID:   review.Item.ItemID,
			Kind:     review.Item.Kind.String(),
			Language: review.Item.Language.Code(),
			Level:    string(review.Item.Level),
			Headword: review.Item.Headword,
			Reading:  review.Item.Reading,
			Meaning:  review.Item.Meaning,
			AudioRef: review.Item.AudioRef,
		},
	}
}

type SubmitAttemptRequest struct {
	UserID  int64  `json:"user_id"`
	ItemID  int64  `json:"item_id"`
	Kind    string `json:"kind"`
	Correct bool   `json:"correct"`

	// Optional session bookkeeping; attempts persist regardless.
	SessionID string `json:"session_id,omitempty"`
	Seq       int    `json:"seq,omitempty"`
}

type FeedbackResponse struct {
	Severity  string `json:"severity"`
	MessageID string `json:"message_id"`
	Recorded  bool   `json:"recorded"`
}

type AttemptResponse struct {
	Record       *RecordResponse  `json:"record,omitempty"`
	NextReviewAt time.Time        `json:"next_review_at"`
	Feedback     FeedbackResponse `json:"feedback"`
}

func toAttemptResponse(res *usecase.AttemptResult) *AttemptResponse {
	return &AttemptResponse{
		Record:       toRecordResponse(res.Record),
		NextReviewAt: res.NextReviewAt,
		Feedback: FeedbackResponse{
			Severity:  string(res.Feedback.Severity),
			MessageID: res.Feedback.MessageID,
			Recorded:  res.Feedback.Recorded,
		},
	}
}

type MasteryBucketResponse struct {
	Level int32 `json:"level"`
	Count int64 `json:"count"`
}

type DailyActivityResponse struct {
	Day       time.Time `json:"day"`
	Attempted int64     `json:"attempted"`
	Correct   int64     `json:"correct"`
}

type ProgressResponse struct {
	TotalRecords   int64                   `json:"total_records"`
	DueCount       int64                   `json:"due_count"`
	MasteredCount  int64                   `json:"mastered_count"`
	Mastery        []MasteryBucketResponse `json:"mastery"`
	RecentActivity []DailyActivityResponse `json:"recent_activity"`
}

func toProgressResponse(stats *entity.UserStats) *ProgressResponse {
	resp := &ProgressResponse{
		TotalRecords:  stats.TotalRecords,
		DueCount:      stats.DueCount,
		MasteredCount: stats.MasteredCount,
	}
	for _, b := range stats.Mastery {
		resp.Mastery = append(resp.Mastery, MasteryBucketResponse{Level: b.Level, Count: b.Count})
	}
	for _, d := range stats.RecentActivity {
		resp.RecentActivity = append(resp.RecentActivity, DailyActivityResponse{
			Day: d.Day, Attempted: d.Attempted, Correct: d.Correct,
		})
	}
	return resp
}

type SessionRollupResponse struct {
	Attempted     int64            `json:"attempted"`
	Correct       int64            `json:"correct"`
	NewlyLearned  int64            `json:"newly_learned"`
	NewlyMastered int64            `json:"newly_mastered"`
	ReviewHitRate float64          `json:"review_hit_rate"`
	MinutesByLang map[string]int32 `json:"minutes_by_lang"`
}

func toRollupResponse(rollup *entity.SessionRollup) *SessionRollupResponse {
	resp := &SessionRollupResponse{
		Attempted:     rollup.Attempted,
		Correct:       rollup.Correct,
		NewlyLearned:  rollup.NewlyLearned,
		NewlyMastered: rollup.NewlyMastered,
		ReviewHitRate: rollup.ReviewHitRate,
		MinutesByLang: make(map[string]int32, len(rollup.MinutesByLang)),
	}
	for lang, minutes := range rollup.MinutesByLang {
		resp.MinutesByLang[lang.Code()] = minutes
	}
	return resp
}

type CreateItemRequest struct {
	Kind     string   `json:"kind"`
	Language string   `json:"language"`
	Level    string   `json:"level"`
	Headword string   `json:"headword"`
	Reading  string   `json:"reading,omitempty"`
	Meaning  string   `json:"meaning,omitempty"`
	Example  string   `json:"example,omitempty"`
	Examples []string `json:"examples,omitempty"`
	Body     string   `json:"body,omitempty"`
}

type ItemResponse struct {
	ID       int64    `json:"id"`
	Kind     string   `json:"kind"`
	Language string   `json:"language"`
	Level    string   `json:"level"`
	Headword string   `json:"headword"`
	Reading  string   `json:"reading,omitempty"`
	Meaning  string   `json:"meaning,omitempty"`
	Example  string   `json:"example,omitempty"`
	Examples []string `json:"examples,omitempty"`
	Body     string   `json:"body,omitempty"`
	AudioRef string   `json:"audio_ref,omitempty"`
}

func toItemResponse(item *entity.Item) *ItemResponse {
	return &ItemResponse{
		ID:       item.ID,
		Kind:     item.Kind.String(),
		Language: item.Language.Code(),
		Level:    string(item.Level),
		Headword: item.Headword,
		Reading:  item.Reading,
		Meaning:  item.Meaning,
		Example:  item.Example,
		Examples: item.Examples,
		Body:     item.Body,
		AudioRef: item.AudioRef,
	}
}

type ListItemsResponse struct {
	Items []*ItemResponse `json:"items"`
	Total int64           `json:"total"`
}

type AttachAudioRequest struct {
	AudioRef string `json:"audio_ref"`
}

type IngestRunRequest struct {
	Incremental bool   `json:"incremental"`
	Language    string `json:"language,omitempty"`
	Level       string `json:"level,omitempty"`
}

type IngestRunResponse struct {
	Sources   int     `json:"sources"`
	Requests  int     `json:"requests"`
	Successes int     `json:"successes"`
	Failures  int     `json:"failures"`
	Retries   int     `json:"retries"`
	Parsed    int     `json:"parsed"`
	Written   int64   `json:"written"`
	Skipped   int     `json:"skipped"`
	Fallbacks int     `json:"fallbacks"`
	ElapsedMS int64   `json:"elapsed_ms"`
	ReqPerSec float64 `json:"req_per_sec"`
}

type SlowQueryResponse struct {
	Query      string    `json:"query"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}

type StoreStatsResponse struct {
	QueryCount    int64               `json:"query_count"`
	TotalTimeMS   int64               `json:"total_time_ms"`
	AverageTimeMS int64               `json:"average_time_ms"`
	SlowQueries   []SlowQueryResponse `json:"slow_queries"`
}

func toStoreStatsResponse(snap database.StatsSnapshot) *StoreStatsResponse {
	resp := &StoreStatsResponse{
		QueryCount:    snap.QueryCount,
		TotalTimeMS:   snap.TotalTime.Milliseconds(),
		AverageTimeMS: snap.AverageTime.Milliseconds(),
		SlowQueries:   make([]SlowQueryResponse, 0, len(snap.SlowQueries)),
	}
	for _, sq := range snap.SlowQueries {
		resp.SlowQueries = append(resp.SlowQueries, SlowQueryResponse{
			Query:      sq.Query,
			DurationMS: sq.Duration.Milliseconds(),
			At:         sq.At,
		})
	}
	return resp
}
