package usecase

import (
	"context"
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/lexloop/internal/entity"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newAssessmentFixture(t *testing.T) (*assessmentUsecase, *fakeRecordRepo, *fakeItemRepo) {
	items := newFakeItemRepo()
	records := newFakeRecordRepo(items)
	uc := NewAssessmentUsecase(records, items, testLogger())
	impl := uc.(*assessmentUsecase)
	impl.attempts = 1
	_ = t
	return impl, records, items
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRecordAttemptFirstCorrect(t *testing.T) {
	uc, _, items := newAssessmentFixture(t)
	item := seedVocabItem(t, items, "apple", entity.LanguageEnglish, entity.LevelCET4)
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	uc.clock = func() time.Time { return t0 }

	res, err := uc.RecordAttempt(context.Background(), 7, item.ID, entity.ItemKindVocabulary, true)
	if err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	rec := res.Record
	if rec.LearnCount != 1 || rec.CorrectCount != 1 || rec.ConsecutiveCorrect != 1 {
		t.Errorf("counts = (%d,%d,%d), want (1,1,1)", rec.LearnCount, rec.CorrectCount, rec.ConsecutiveCorrect)
	}
	if !almostEqual(rec.EaseFactor, 2.5) {
		t.Errorf("ease factor = %v, want 2.5", rec.EaseFactor)
	}
	if rec.MasteryLevel != 0 {
		t.Errorf("mastery = %d, want 0", rec.MasteryLevel)
	}
	if !almostEqual(rec.MemoryStrength, 1.0) {
		t.Errorf("memory strength = %v, want 1.0", rec.MemoryStrength)
	}
	if want := t0.AddDate(0, 0, 1); !rec.NextReviewAt.Equal(want) {
		t.Errorf("next review = %v, want %v", rec.NextReviewAt, want)
	}
	if res.Feedback.Severity != entity.FeedbackExcellent || !res.Feedback.Recorded {
		t.Errorf("feedback = %+v, want recorded excellent", res.Feedback)
	}
}

func TestRecordAttemptSecondCorrect(t *testing.T) {
	uc, _, items := newAssessmentFixture(t)
	item := seedVocabItem(t, items, "bridge", entity.LanguageEnglish, entity.LevelCET4)
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	uc.clock = func() time.Time { return t0 }
	if _, err := uc.RecordAttempt(context.Background(), 7, item.ID, entity.ItemKindVocabulary, true); err != nil {
		t.Fatalf("first attempt: %v", err)
	}

	t1 := t0.AddDate(0, 0, 1)
	uc.clock = func() time.Time { return t1 }
	res, err := uc.RecordAttempt(context.Background(), 7, item.ID, entity.ItemKindVocabulary, true)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	rec := res.Record
	if rec.ConsecutiveCorrect != 2 {
		t.Errorf("streak = %d, want 2", rec.ConsecutiveCorrect)
	}
	if !almostEqual(rec.EaseFactor, 2.6) {
		t.Errorf("ease factor = %v, want 2.6", rec.EaseFactor)
	}
	if want := t1.AddDate(0, 0, 6); !rec.NextReviewAt.Equal(want) {
		t.Errorf("next review = %v, want %v", rec.NextReviewAt, want)
	}
}

func TestRecordAttemptIncorrectResets(t *testing.T) {
	uc, _, items := newAssessmentFixture(t)
	item := seedVocabItem(t, items, "candle", entity.LanguageEnglish, entity.LevelCET4)
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	uc.clock = func() time.Time { return t0 }
	if _, err := uc.RecordAttempt(context.Background(), 7, item.ID, entity.ItemKindVocabulary, true); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	t1 := t0.AddDate(0, 0, 1)
	uc.clock = func() time.Time { return t1 }
	if _, err := uc.RecordAttempt(context.Background(), 7, item.ID, entity.ItemKindVocabulary, true); err != nil {
		t.Fatalf("second attempt: %v", err)
	}

	t2 := t0.AddDate(0, 0, 7)
	uc.clock = func() time.Time { return t2 }
	res, err := uc.RecordAttempt(context.Background(), 7, item.ID, entity.ItemKindVocabulary, false)
	if err != nil {
		t.Fatalf("incorrect attempt: %v", err)
	}
	rec := res.Record
	if rec.ConsecutiveCorrect != 0 {
		t.Errorf("streak = %d, want 0", rec.ConsecutiveCorrect)
	}
	// Quality 2 drops the factor by 0.32 from 2.6.
	if !almostEqual(rec.EaseFactor, 2.28) {
		t.Errorf("ease factor = %v, want 2.28", rec.EaseFactor)
	}
	if want := t2.AddDate(0, 0, 1); !rec.NextReviewAt.Equal(want) {
		t.Errorf("next review = %v, want %v", rec.NextReviewAt, want)
	}
	if want := 2.0 / 3.0; !almostEqual(rec.MemoryStrength, want) {
		t.Errorf("memory strength = %v, want %v", rec.MemoryStrength, want)
	}
}

func TestRecordAttemptEaseFactorFloor(t *testing.T) {
	uc, _, items := newAssessmentFixture(t)
	item := seedVocabItem(t, items, "dusk", entity.LanguageEnglish, entity.LevelCET4)
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	var rec *entity.LearningRecord
	for i := 0; i < 5; i++ {
		day := at.AddDate(0, 0, i)
		uc.clock = func() time.Time { return day }
		res, err := uc.RecordAttempt(context.Background(), 7, item.ID, entity.ItemKindVocabulary, false)
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		rec = res.Record
		if rec.EaseFactor < entity.MinEaseFactor {
			t.Fatalf("attempt %d: ease factor %v below floor", i+1, rec.EaseFactor)
		}
	}
	if !almostEqual(rec.EaseFactor, entity.MinEaseFactor) {
		t.Errorf("ease factor = %v, want floor %v", rec.EaseFactor, entity.MinEaseFactor)
	}
}

func TestRecordAttemptValidation(t *testing.T) {
	uc, _, _ := newAssessmentFixture(t)

	cases := []struct {
		name   string
		userID int64
		itemID int64
		kind   entity.ItemKind
	}{
		{"empty user", 0, 1, entity.ItemKindVocabulary},
		{"empty item", 7, 0, entity.ItemKindVocabulary},
		{"unknown kind", 7, 1, entity.ItemKind("prose")},
	}
	for _, tc := range cases {
		if _, err := uc.RecordAttempt(context.Background(), tc.userID, tc.itemID, tc.kind, true); entity.KindOf(err) != entity.KindInvalidInput {
			t.Errorf("%s: kind = %v, want invalid_input", tc.name, entity.KindOf(err))
		}
	}
}

func TestRecordAttemptUnknownItem(t *testing.T) {
	uc, _, _ := newAssessmentFixture(t)
	_, err := uc.RecordAttempt(context.Background(), 7, 999, entity.ItemKindVocabulary, true)
	if entity.KindOf(err) != entity.KindNotFound {
		t.Fatalf("kind = %v, want not_found", entity.KindOf(err))
	}
}

func TestRecordAttemptStoreFailureNotRecorded(t *testing.T) {
	uc, records, items := newAssessmentFixture(t)
	item := seedVocabItem(t, items, "ember", entity.LanguageEnglish, entity.LevelCET4)
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	uc.clock = func() time.Time { return t0 }

	if _, err := uc.RecordAttempt(context.Background(), 7, item.ID, entity.ItemKindVocabulary, true); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}

	records.failUpserts = 1
	uc.clock = func() time.Time { return t0.AddDate(0, 0, 1) }
	res, err := uc.RecordAttempt(context.Background(), 7, item.ID, entity.ItemKindVocabulary, true)
	if err == nil {
		t.Fatal("expected an error from the failing store")
	}
	if res == nil || res.Feedback.Recorded {
		t.Fatalf("result = %+v, want not-recorded feedback", res)
	}
	if res.Record == nil || res.Record.LearnCount != 1 {
		t.Fatalf("record = %+v, want unchanged prior state", res.Record)
	}
}

func TestEvaluateSessionOutcome(t *testing.T) {
	uc, _, items := newAssessmentFixture(t)
	first := seedVocabItem(t, items, "fjord", entity.LanguageEnglish, entity.LevelCET4)
	second := seedVocabItem(t, items, "glade", entity.LanguageEnglish, entity.LevelCET4)
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	uc.clock = func() time.Time { return t0 }

	if _, err := uc.RecordAttempt(context.Background(), 7, first.ID, entity.ItemKindVocabulary, true); err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if _, err := uc.RecordAttempt(context.Background(), 7, second.ID, entity.ItemKindVocabulary, false); err != nil {
		t.Fatalf("attempt: %v", err)
	}

	rollup, err := uc.EvaluateSessionOutcome(context.Background(), 7, t0.Add(-time.Minute), t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("EvaluateSessionOutcome: %v", err)
	}
	if rollup.Attempted != 2 || rollup.Correct != 1 {
		t.Errorf("attempted/correct = %d/%d, want 2/1", rollup.Attempted, rollup.Correct)
	}
	if rollup.NewlyLearned != 2 {
		t.Errorf("newly learned = %d, want 2", rollup.NewlyLearned)
	}
	if !almostEqual(rollup.ReviewHitRate, 0.5) {
		t.Errorf("hit rate = %v, want 0.5", rollup.ReviewHitRate)
	}
}

func TestEvaluateSessionOutcomeNewlyMastered(t *testing.T) {
	uc, records, _ := newAssessmentFixture(t)
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	seed := func(itemID int64, correct, streak int32) {
		rec := &entity.LearningRecord{
			UserID:             7,
			ItemID:             itemID,
			Kind:               entity.ItemKindVocabulary,
			LearnCount:         correct + 4,
			CorrectCount:       correct,
			ConsecutiveCorrect: streak,
			EaseFactor:         2.5,
			IntervalDays:       6,
			LastReviewAt:       t0,
			NextReviewAt:       t0.AddDate(0, 0, 6),
		}
		rec.Derive()
		if _, err := records.Upsert(context.Background(), rec); err != nil {
			t.Fatalf("seed record %d: %v", itemID, err)
		}
	}

	seed(1, 10, 1) // the tenth correct just landed
	seed(2, 11, 2) // crossed mastery earlier in the same streak
	seed(3, 30, 3) // mastered long ago, streak reset since
	seed(4, 12, 0) // mastered but latest attempt failed

	rollup, err := uc.EvaluateSessionOutcome(context.Background(), 7, t0.Add(-time.Minute), t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("EvaluateSessionOutcome: %v", err)
	}
	if rollup.Attempted != 4 {
		t.Fatalf("attempted = %d, want 4", rollup.Attempted)
	}
	if rollup.NewlyMastered != 2 {
		t.Errorf("newly mastered = %d, want 2 (items 1 and 2)", rollup.NewlyMastered)
	}
}
