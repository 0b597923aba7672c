package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/repository"
)

type recordKey struct {
	UserID int64
	ItemID int64
	Kind   entity.ItemKind
}

type fakeRecordRepo struct {
	mu      sync.RWMutex
	seq     int64
	records map[recordKey]*entity.LearningRecord
	items   *fakeItemRepo

	// failUpserts makes the next N upserts fail with a transient error.
	failUpserts int
}

func newFakeRecordRepo(items *fakeItemRepo) *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[recordKey]*entity.LearningRecord), items: items}
}

func cloneRecord(src *entity.LearningRecord) *entity.LearningRecord {
	if src == nil {
		return nil
	}
	copy := *src
	return &copy
}

func (r *fakeRecordRepo) GetByItem(ctx context.Context, userID, itemID int64, kind entity.ItemKind) (*entity.LearningRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[recordKey{userID, itemID, kind}]
	if !ok {
		return nil, entity.ErrRecordNotFound
	}
	return cloneRecord(rec), nil
}

func (r *fakeRecordRepo) Upsert(ctx context.Context, record *entity.LearningRecord) (*entity.LearningRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpserts > 0 {
		r.failUpserts--
		return nil, entity.ErrLockTimeout
	}
	key := recordKey{record.UserID, record.ItemID, record.Kind}
	copy := cloneRecord(record)
	if existing, ok := r.records[key]; ok {
		copy.ID = existing.ID
	} else {
		r.seq++
		copy.ID = r.seq
	}
	r.records[key] = copy
	return cloneRecord(copy), nil
}

func (r *fakeRecordRepo) BatchUpsert(ctx context.Context, records []*entity.LearningRecord) error {
	for _, rec := range records {
		if _, err := r.Upsert(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRecordRepo) ListDue(ctx context.Context, query *repository.DueQuery) ([]entity.DueReview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []entity.DueReview
	for _, rec := range r.records {
		if rec.UserID != query.UserID || rec.NextReviewAt.After(query.Now) {
			continue
		}
		if query.Kind != entity.ItemKindUnspecified && rec.Kind != query.Kind {
			continue
		}
		card := entity.ItemCard{ItemID: rec.ItemID, Kind: rec.Kind}
		if r.items != nil {
			if item, err := r.items.GetByID(ctx, rec.Kind, rec.ItemID); err == nil {
				card.Language = item.Language
				card.Level = item.Level
				card.Headword = item.Headword
				card.Reading = item.Reading
				card.Meaning = item.Meaning
				card.AudioRef = item.AudioRef
			}
		}
		due = append(due, entity.DueReview{Record: *cloneRecord(rec), Item: card})
	}

	sort.Slice(due, func(i, j int) bool {
		a, b := due[i].Record, due[j].Record
		if !a.NextReviewAt.Equal(b.NextReviewAt) {
			return a.NextReviewAt.Before(b.NextReviewAt)
		}
		if a.MemoryStrength != b.MemoryStrength {
			return a.MemoryStrength < b.MemoryStrength
		}
		return a.ItemID < b.ItemID
	})
	if query.Limit > 0 && int32(len(due)) > query.Limit {
		due = due[:query.Limit]
	}
	return due, nil
}

func (r *fakeRecordRepo) ListReviewedBetween(ctx context.Context, userID int64, from, to time.Time) ([]*entity.LearningRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entity.LearningRecord
	for _, rec := range r.records {
		if rec.UserID != userID || rec.LastReviewAt.IsZero() {
			continue
		}
		if rec.LastReviewAt.Before(from) || !rec.LastReviewAt.Before(to) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastReviewAt.Before(out[j].LastReviewAt) })
	return out, nil
}

func (r *fakeRecordRepo) UserStats(ctx context.Context, userID int64, now time.Time) (*entity.UserStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &entity.UserStats{}
	buckets := make(map[int32]int64)
	for _, rec := range r.records {
		if rec.UserID != userID {
			continue
		}
		stats.TotalRecords++
		if rec.Due(now) {
			stats.DueCount++
		}
		if rec.MasteryLevel >= 3 {
			stats.MasteredCount++
		}
		buckets[rec.MasteryLevel]++
	}
	for level := int32(0); level <= 5; level++ {
		if count, ok := buckets[level]; ok {
			stats.Mastery = append(stats.Mastery, entity.MasteryBucket{Level: level, Count: count})
		}
	}
	return stats, nil
}

type itemKey struct {
	Headword string
	Language entity.Language
	Level    entity.Level
}

type fakeItemRepo struct {
	mu    sync.RWMutex
	seq   int64
	items map[entity.ItemKind]map[int64]*entity.Item
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: make(map[entity.ItemKind]map[int64]*entity.Item)}
}

func cloneItem(src *entity.Item) *entity.Item {
	if src == nil {
		return nil
	}
	copy := *src
	if src.Examples != nil {
		copy.Examples = append([]string(nil), src.Examples...)
	}
	return &copy
}

func (r *fakeItemRepo) lookupLocked(kind entity.ItemKind, key itemKey) (*entity.Item, bool) {
	for _, item := range r.items[kind] {
		if (itemKey{item.Headword, item.Language, item.Level}) == key {
			return item, true
		}
	}
	return nil, false
}

func (r *fakeItemRepo) Create(ctx context.Context, item *entity.Item) (*entity.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := itemKey{item.Headword, item.Language, item.Level}
	if _, ok := r.lookupLocked(item.Kind, key); ok {
		return nil, entity.ErrDuplicateItem
	}
	if r.items[item.Kind] == nil {
		r.items[item.Kind] = make(map[int64]*entity.Item)
	}
	r.seq++
	copy := cloneItem(item)
	copy.ID = r.seq
	r.items[item.Kind][copy.ID] = copy
	return cloneItem(copy), nil
}

func (r *fakeItemRepo) Update(ctx context.Context, item *entity.Item) (*entity.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.Kind][item.ID]; !ok {
		return nil, entity.ErrItemNotFound
	}
	copy := cloneItem(item)
	r.items[item.Kind][copy.ID] = copy
	return cloneItem(copy), nil
}

func (r *fakeItemRepo) GetByID(ctx context.Context, kind entity.ItemKind, id int64) (*entity.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[kind][id]
	if !ok {
		return nil, entity.ErrItemNotFound
	}
	return cloneItem(item), nil
}

func (r *fakeItemRepo) List(ctx context.Context, query *repository.ListItemQuery) ([]*entity.Item, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Item
	for _, item := range r.items[query.Kind] {
		out = append(out, cloneItem(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *fakeItemRepo) BatchUpsert(ctx context.Context, items []*entity.Item) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var written int64
	for _, item := range items {
		key := itemKey{item.Headword, item.Language, item.Level}
		if existing, ok := r.lookupLocked(item.Kind, key); ok {
			copy := cloneItem(item)
			copy.ID = existing.ID
			r.items[item.Kind][copy.ID] = copy
			written++
			continue
		}
		if r.items[item.Kind] == nil {
			r.items[item.Kind] = make(map[int64]*entity.Item)
		}
		r.seq++
		copy := cloneItem(item)
		copy.ID = r.seq
		r.items[item.Kind][copy.ID] = copy
		written++
	}
	return written, nil
}

func (r *fakeItemRepo) SampleUnmastered(ctx context.Context, query *repository.SampleQuery) ([]*entity.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Item
	for _, item := range r.items[query.Kind] {
		if item.Language != query.Language || item.Level != query.Level {
			continue
		}
		out = append(out, cloneItem(item))
	}
	// Deterministic stand-in for the store's random sampling.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if query.Limit > 0 && int32(len(out)) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (r *fakeItemRepo) KnownHeadwords(ctx context.Context, kind entity.ItemKind, language entity.Language) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	known := make(map[string]struct{})
	for _, item := range r.items[kind] {
		if item.Language == language {
			known[item.DedupKey()] = struct{}{}
		}
	}
	return known, nil
}

func (r *fakeItemRepo) AttachAudio(ctx context.Context, kind entity.ItemKind, id int64, audioRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[kind][id]
	if !ok {
		return entity.ErrItemNotFound
	}
	item.AudioRef = audioRef
	return nil
}

type fakeUserRepo struct {
	mu    sync.RWMutex
	seq   int64
	users map[int64]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*entity.User)}
}

func cloneUser(src *entity.User) *entity.User {
	if src == nil {
		return nil
	}
	copy := *src
	return &copy
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return nil, entity.ErrDuplicateUser
		}
	}
	r.seq++
	copy := cloneUser(user)
	copy.ID = r.seq
	r.users[copy.ID] = copy
	return cloneUser(copy), nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *entity.User) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return nil, entity.ErrUserNotFound
	}
	copy := cloneUser(user)
	r.users[copy.ID] = copy
	return cloneUser(copy), nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, entity.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Username == username {
			return cloneUser(user), nil
		}
	}
	return nil, entity.ErrUserNotFound
}

// seedVocabItem inserts one vocabulary item and fails the test on error.
func seedVocabItem(t testingT, repo *fakeItemRepo, headword string, lang entity.Language, level entity.Level) *entity.Item {
	item, err := repo.Create(context.Background(), &entity.Item{
		Kind:     entity.ItemKindVocabulary,
		Language: lang,
		Level:    level,
		Headword: headword,
		Meaning:  fmt.Sprintf("meaning of %s", headword),
	})
	if err != nil {
		t.Fatalf("seed item %q: %v", headword, err)
	}
	return item
}

type testingT interface {
	Fatalf(format string, args ...any)
}
