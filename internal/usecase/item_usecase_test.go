package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/repository"
)

func TestCreateItemNormalizesBeforeInsert(t *testing.T) {
	repo := newFakeItemRepo()
	uc := NewItemUsecase(repo)
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	uc.(*itemUsecase).clock = func() time.Time { return now }

	created, err := uc.CreateItem(context.Background(), &entity.Item{
		Kind:     entity.ItemKindVocabulary,
		Language: entity.LanguageEnglish,
		Level:    entity.LevelCET4,
		Headword: "  Harbor ",
		Meaning:  " a sheltered port ",
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if created.ID == 0 {
		t.Error("created item has no id")
	}
	if created.Headword != "harbor" {
		t.Errorf("headword = %q, want %q", created.Headword, "harbor")
	}
	if created.Meaning != "a sheltered port" {
		t.Errorf("meaning = %q", created.Meaning)
	}
	if !created.CreatedAt.Equal(now) {
		t.Errorf("created at = %v, want %v", created.CreatedAt, now)
	}
}

func TestCreateItemValidation(t *testing.T) {
	uc := NewItemUsecase(newFakeItemRepo())

	cases := []struct {
		name string
		item *entity.Item
	}{
		{"nil item", nil},
		{"unknown kind", &entity.Item{Kind: entity.ItemKind("prose"), Language: entity.LanguageEnglish, Level: entity.LevelCET4, Headword: "harbor"}},
		{"level language mismatch", &entity.Item{Kind: entity.ItemKindVocabulary, Language: entity.LanguageJapanese, Level: entity.LevelCET4, Headword: "港"}},
		{"blank headword", &entity.Item{Kind: entity.ItemKindVocabulary, Language: entity.LanguageEnglish, Level: entity.LevelCET4, Headword: "   "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := uc.CreateItem(context.Background(), tc.item); entity.KindOf(err) != entity.KindInvalidInput {
				t.Errorf("kind = %v, want invalid_input", entity.KindOf(err))
			}
		})
	}
}

func TestCreateItemDuplicate(t *testing.T) {
	repo := newFakeItemRepo()
	uc := NewItemUsecase(repo)
	seedVocabItem(t, repo, "harbor", entity.LanguageEnglish, entity.LevelCET4)

	_, err := uc.CreateItem(context.Background(), &entity.Item{
		Kind:     entity.ItemKindVocabulary,
		Language: entity.LanguageEnglish,
		Level:    entity.LevelCET4,
		Headword: "harbor",
		Meaning:  "again",
	})
	if entity.KindOf(err) != entity.KindConflict {
		t.Errorf("kind = %v, want conflict", entity.KindOf(err))
	}
}

func TestGetItemValidation(t *testing.T) {
	repo := newFakeItemRepo()
	uc := NewItemUsecase(repo)
	item := seedVocabItem(t, repo, "harbor", entity.LanguageEnglish, entity.LevelCET4)

	got, err := uc.GetItem(context.Background(), entity.ItemKindVocabulary, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Headword != "harbor" {
		t.Errorf("headword = %q", got.Headword)
	}

	if _, err := uc.GetItem(context.Background(), entity.ItemKind("prose"), item.ID); entity.KindOf(err) != entity.KindInvalidInput {
		t.Errorf("unknown kind: %v", entity.KindOf(err))
	}
	if _, err := uc.GetItem(context.Background(), entity.ItemKindVocabulary, 0); entity.KindOf(err) != entity.KindInvalidInput {
		t.Errorf("zero id: %v", entity.KindOf(err))
	}
	if _, err := uc.GetItem(context.Background(), entity.ItemKindVocabulary, item.ID+99); entity.KindOf(err) != entity.KindNotFound {
		t.Errorf("missing item: %v", entity.KindOf(err))
	}
}

func TestListItemsValidation(t *testing.T) {
	repo := newFakeItemRepo()
	uc := NewItemUsecase(repo)
	seedVocabItem(t, repo, "anchor", entity.LanguageEnglish, entity.LevelCET4)
	seedVocabItem(t, repo, "basket", entity.LanguageEnglish, entity.LevelCET4)

	items, total, err := uc.ListItems(context.Background(), &repository.ListItemQuery{Kind: entity.ItemKindVocabulary})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 2 || total != 2 {
		t.Errorf("got %d items (total %d), want 2", len(items), total)
	}

	if _, _, err := uc.ListItems(context.Background(), nil); entity.KindOf(err) != entity.KindInvalidInput {
		t.Errorf("nil query: %v", entity.KindOf(err))
	}
	if _, _, err := uc.ListItems(context.Background(), &repository.ListItemQuery{Kind: entity.ItemKindVocabulary, Pagination: repository.Pagination{PageNo: -1}}); entity.KindOf(err) != entity.KindInvalidInput {
		t.Errorf("negative page: %v", entity.KindOf(err))
	}
}

func TestAttachAudioUpdatesItem(t *testing.T) {
	repo := newFakeItemRepo()
	uc := NewItemUsecase(repo)
	item := seedVocabItem(t, repo, "harbor", entity.LanguageEnglish, entity.LevelCET4)

	if err := uc.AttachAudio(context.Background(), entity.ItemKindVocabulary, item.ID, "audio/harbor.mp3"); err != nil {
		t.Fatalf("AttachAudio: %v", err)
	}
	got, err := repo.GetByID(context.Background(), entity.ItemKindVocabulary, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.AudioRef != "audio/harbor.mp3" {
		t.Errorf("audio ref = %q", got.AudioRef)
	}

	if err := uc.AttachAudio(context.Background(), entity.ItemKindVocabulary, item.ID, ""); entity.KindOf(err) != entity.KindInvalidInput {
		t.Errorf("empty ref: %v", entity.KindOf(err))
	}
	if err := uc.AttachAudio(context.Background(), entity.ItemKindVocabulary, item.ID+99, "audio/x.mp3"); entity.KindOf(err) != entity.KindNotFound {
		t.Errorf("missing item: %v", entity.KindOf(err))
	}
}
