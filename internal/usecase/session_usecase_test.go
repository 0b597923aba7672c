package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/infrastructure/config"
)

type sessionFixture struct {
	uc      *sessionUsecase
	users   *fakeUserRepo
	items   *fakeItemRepo
	records *fakeRecordRepo
	now     time.Time
	userID  int64
}

func newSessionFixture(t *testing.T, dailyMinutes int32) *sessionFixture {
	t.Helper()
	items := newFakeItemRepo()
	records := newFakeRecordRepo(items)
	users := newFakeUserRepo()

	// seedDueRecord writes records for user 7; line the fixture user up with it.
	users.seq = 6
	user, err := users.Create(context.Background(), &entity.User{
		Username:       "miku",
		CredentialHash: "x",
		EnglishLevel:   entity.LevelCET6,
		JapaneseLevel:  entity.LevelN5,
		DailyMinutes:   dailyMinutes,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	cfg := &config.Config{Session: config.SessionConfig{
		DefaultDailyMinutes: 30,
		ReviewRatio:         0.2,
		EnglishShare:        0.5,
	}}
	logger := testLogger()
	assessments := NewAssessmentUsecase(records, items, logger)
	assessments.(*assessmentUsecase).attempts = 1
	reviews := NewReviewUsecase(records)

	uc := NewSessionUsecase(cfg, users, items, reviews, assessments, logger).(*sessionUsecase)
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	uc.clock = func() time.Time { return now }
	reviews.(*reviewUsecase).clock = uc.clock
	assessments.(*assessmentUsecase).clock = uc.clock

	return &sessionFixture{uc: uc, users: users, items: items, records: records, now: now, userID: user.ID}
}

// seedFreshItems fills the corpus the plan samples new activities from. Due
// records from seedDueRecord use cet-4 vocabulary, so cet-6/n5 here keeps the
// two pools apart.
func (f *sessionFixture) seedFreshItems(t *testing.T, lang entity.Language, level entity.Level, vocab int) {
	t.Helper()
	for i := 0; i < vocab; i++ {
		item := &entity.Item{
			Kind:     entity.ItemKindVocabulary,
			Language: lang,
			Level:    level,
			Headword: fmt.Sprintf("%s-word-%02d", lang, i),
			Meaning:  "meaning",
		}
		if _, err := f.items.Create(context.Background(), item); err != nil {
			t.Fatalf("seed %s vocab %d: %v", lang, i, err)
		}
	}
}

func countByMode(activities []entity.Activity, mode entity.ActivityMode) int {
	n := 0
	for _, a := range activities {
		if a.Mode == mode {
			n++
		}
	}
	return n
}

func TestStartSessionSplitsBudget(t *testing.T) {
	f := newSessionFixture(t, 30)
	day := 24 * time.Hour
	for i := 0; i < 5; i++ {
		seedDueRecord(t, f.records, f.items, fmt.Sprintf("due-%02d", i), -day, 0.5, f.now)
	}
	f.seedFreshItems(t, entity.LanguageEnglish, entity.LevelCET6, 20)
	f.seedFreshItems(t, entity.LanguageJapanese, entity.LevelN5, 20)

	session, err := f.uc.StartSession(context.Background(), f.userID, nil)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if session.ID == "" {
		t.Fatal("session id not assigned")
	}
	if session.PlannedMinutes != 30 {
		t.Errorf("planned minutes = %d, want 30", session.PlannedMinutes)
	}
	if session.ReviewMinutes != 5 {
		t.Errorf("review minutes = %d, want 5", session.ReviewMinutes)
	}

	// 30 total, review allocation 6, five 1-minute reviews fit inside it.
	// The remaining 24 minutes split evenly between languages.
	reviews := countByMode(session.Activities, entity.ActivityModeReview)
	if reviews != 5 {
		t.Errorf("review activities = %d, want 5", reviews)
	}
	var english, japanese int32
	for _, a := range session.Activities {
		if a.Mode == entity.ActivityModeReview {
			continue
		}
		switch a.Language {
		case entity.LanguageEnglish:
			english += a.Minutes
		case entity.LanguageJapanese:
			japanese += a.Minutes
		}
	}
	if english != 12 || japanese != 12 {
		t.Errorf("new-item minutes = (%d,%d), want (12,12)", english, japanese)
	}

	for i, a := range session.Activities {
		if a.Seq != i+1 {
			t.Fatalf("activity %d has seq %d", i, a.Seq)
		}
		if a.Status != entity.ActivityPlanned {
			t.Fatalf("activity %d starts in %s", a.Seq, a.Status)
		}
	}
}

func TestStartSessionWarmUpOrdering(t *testing.T) {
	f := newSessionFixture(t, 30)
	day := 24 * time.Hour
	for i := 0; i < 5; i++ {
		seedDueRecord(t, f.records, f.items, fmt.Sprintf("due-%02d", i), -day, 0.5, f.now)
	}
	f.seedFreshItems(t, entity.LanguageEnglish, entity.LevelCET6, 20)

	session, err := f.uc.StartSession(context.Background(), f.userID, nil)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	for i := 0; i < warmUpReviews; i++ {
		if session.Activities[i].Mode != entity.ActivityModeReview {
			t.Errorf("warm-up slot %d is %s", i+1, session.Activities[i].Mode)
		}
	}
	// The remaining reviews come after the new items, never dropped.
	tail := session.Activities[len(session.Activities)-2:]
	for _, a := range tail {
		if a.Mode != entity.ActivityModeReview {
			t.Errorf("trailing slot seq %d is %s, want deferred review", a.Seq, a.Mode)
		}
	}
}

func TestStartSessionReviewOverrun(t *testing.T) {
	f := newSessionFixture(t, 10)
	day := 24 * time.Hour
	for i := 0; i < 6; i++ {
		seedDueRecord(t, f.records, f.items, fmt.Sprintf("due-%02d", i), -day, 0.5, f.now)
	}
	f.seedFreshItems(t, entity.LanguageEnglish, entity.LevelCET6, 10)
	f.seedFreshItems(t, entity.LanguageJapanese, entity.LevelN5, 10)

	session, err := f.uc.StartSession(context.Background(), f.userID, nil)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	// Allocation is 2 minutes but 6 reviews are due: all six are planned and
	// the 4-minute overrun shrinks the new-item slice to 4 minutes.
	if got := countByMode(session.Activities, entity.ActivityModeReview); got != 6 {
		t.Errorf("review activities = %d, want all 6 due", got)
	}
	var fresh int32
	for _, a := range session.Activities {
		if a.Mode != entity.ActivityModeReview {
			fresh += a.Minutes
		}
	}
	if fresh != 4 {
		t.Errorf("new-item minutes = %d, want 4", fresh)
	}
}

func TestStartSessionOverrides(t *testing.T) {
	f := newSessionFixture(t, 30)
	f.seedFreshItems(t, entity.LanguageJapanese, entity.LevelN4, 20)

	session, err := f.uc.StartSession(context.Background(), f.userID, &PlanOverrides{
		JapaneseLevel: entity.LevelN4,
		DailyMinutes:  10,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if session.PlannedMinutes != 10 {
		t.Errorf("planned minutes = %d, want override 10", session.PlannedMinutes)
	}
	for _, a := range session.Activities {
		if a.Language == entity.LanguageJapanese && a.Mode == entity.ActivityModeLearn {
			return
		}
	}
	t.Error("no japanese activities sampled from the override level")
}

func TestStartSessionRejectsMismatchedOverride(t *testing.T) {
	f := newSessionFixture(t, 30)
	_, err := f.uc.StartSession(context.Background(), f.userID, &PlanOverrides{EnglishLevel: entity.LevelN3})
	if entity.KindOf(err) != entity.KindInvalidInput {
		t.Fatalf("kind = %v, want invalid_input", entity.KindOf(err))
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newSessionFixture(t, 10)
	f.seedFreshItems(t, entity.LanguageEnglish, entity.LevelCET6, 10)
	f.seedFreshItems(t, entity.LanguageJapanese, entity.LevelN5, 10)

	session, err := f.uc.StartSession(context.Background(), f.userID, nil)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	got, err := f.uc.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.ID != session.ID || len(got.Activities) != len(session.Activities) {
		t.Fatalf("GetSession returned a different plan")
	}

	first := session.Activities[0]

	// Completing before any attempt is rejected.
	if _, err := f.uc.AdvanceActivity(context.Background(), session.ID, first.Seq, entity.ActivityInProgress); err != nil {
		t.Fatalf("advance to in_progress: %v", err)
	}
	if _, err := f.uc.AdvanceActivity(context.Background(), session.ID, first.Seq, entity.ActivityCompleted); entity.KindOf(err) != entity.KindInvalidInput {
		t.Fatalf("completion without attempt: kind %v, want invalid_input", entity.KindOf(err))
	}

	if err := f.uc.NoteAttempt(context.Background(), session.ID, first.Seq); err != nil {
		t.Fatalf("NoteAttempt: %v", err)
	}
	updated, err := f.uc.AdvanceActivity(context.Background(), session.ID, first.Seq, entity.ActivityCompleted)
	if err != nil {
		t.Fatalf("advance to completed: %v", err)
	}
	activity, err := updated.ActivityBySeq(first.Seq)
	if err != nil {
		t.Fatalf("ActivityBySeq: %v", err)
	}
	if activity.Status != entity.ActivityCompleted || activity.Attempts != 1 {
		t.Fatalf("activity = %+v, want completed with one attempt", activity)
	}
}

func TestNoteAttemptStartsPlannedActivity(t *testing.T) {
	f := newSessionFixture(t, 10)
	f.seedFreshItems(t, entity.LanguageEnglish, entity.LevelCET6, 10)

	session, err := f.uc.StartSession(context.Background(), f.userID, nil)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	seq := session.Activities[0].Seq
	if err := f.uc.NoteAttempt(context.Background(), session.ID, seq); err != nil {
		t.Fatalf("NoteAttempt: %v", err)
	}
	got, err := f.uc.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	activity, err := got.ActivityBySeq(seq)
	if err != nil {
		t.Fatalf("ActivityBySeq: %v", err)
	}
	if activity.Status != entity.ActivityInProgress {
		t.Errorf("status = %s, want in_progress", activity.Status)
	}
}

func TestFinishSessionRollup(t *testing.T) {
	f := newSessionFixture(t, 10)
	f.seedFreshItems(t, entity.LanguageEnglish, entity.LevelCET6, 10)
	f.seedFreshItems(t, entity.LanguageJapanese, entity.LevelN5, 10)

	session, err := f.uc.StartSession(context.Background(), f.userID, nil)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	// Work through the first two activities, one correct and one not.
	for i, correct := range []bool{true, false} {
		activity := session.Activities[i]
		if _, err := f.uc.assessments.RecordAttempt(context.Background(), f.userID, activity.ItemID, activity.Kind, correct); err != nil {
			t.Fatalf("RecordAttempt %d: %v", i, err)
		}
		if err := f.uc.NoteAttempt(context.Background(), session.ID, activity.Seq); err != nil {
			t.Fatalf("NoteAttempt %d: %v", i, err)
		}
		if _, err := f.uc.AdvanceActivity(context.Background(), session.ID, activity.Seq, entity.ActivityCompleted); err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
	}

	rollup, err := f.uc.FinishSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("FinishSession: %v", err)
	}
	if rollup.Attempted != 2 || rollup.Correct != 1 {
		t.Errorf("attempted/correct = %d/%d, want 2/1", rollup.Attempted, rollup.Correct)
	}
	var completed int32
	for _, minutes := range rollup.MinutesByLang {
		completed += minutes
	}
	if completed != session.Activities[0].Minutes+session.Activities[1].Minutes {
		t.Errorf("completed minutes = %d, want the two finished activities", completed)
	}

	if _, err := f.uc.GetSession(context.Background(), session.ID); entity.KindOf(err) != entity.KindNotFound {
		t.Errorf("finished session still resolvable, kind %v", entity.KindOf(err))
	}
}

func TestGetSessionUnknown(t *testing.T) {
	f := newSessionFixture(t, 10)
	if _, err := f.uc.GetSession(context.Background(), "nope"); entity.KindOf(err) != entity.KindNotFound {
		t.Fatalf("kind = %v, want not_found", entity.KindOf(err))
	}
}
