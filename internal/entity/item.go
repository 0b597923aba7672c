package entity

import (
	"fmt"
	"strings"
	"time"
)

// Item is the atomic unit of study. One struct covers all three kinds: the
// Headword field doubles as the grammar pattern name and the reading title,
// and kind-specific payload fields stay empty for the other kinds. Items are
// immutable after creation except for the attached audio reference.
type Item struct {
	ID       int64
	Kind     ItemKind
	Language Language
	Level    Level

	Headword string
	Reading  string   // kana / phonetic transcription (vocabulary)
	Meaning  string   // translation (vocabulary) or explanation (grammar)
	Example  string   // single example sentence (vocabulary)
	Examples []string // example list (grammar)
	Body     string   // passage body (reading)

	AudioRef  string
	CreatedAt time.Time
}

// ItemDedupKey builds the key ingest uses to deduplicate items within one
// language.
func ItemDedupKey(headword string, language Language) string {
	return headword + "\x00" + language.Code()
}

// DedupKey identifies an item for ingest deduplication.
func (it *Item) DedupKey() string {
	return ItemDedupKey(it.Headword, it.Language)
}

// Normalize ensures defaults & constraints before persistence.
func (it *Item) Normalize(now time.Time) {
	it.Headword = strings.TrimSpace(it.Headword)
	if it.Language == LanguageEnglish {
		it.Headword = NormalizeHeadwordToken(it.Headword)
	}
	it.Reading = strings.TrimSpace(it.Reading)
	it.Meaning = strings.TrimSpace(it.Meaning)
	it.Example = strings.TrimSpace(it.Example)
	it.Body = strings.TrimSpace(it.Body)
	if it.Examples == nil {
		it.Examples = []string{}
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
}

// Validate checks the invariants an item must satisfy before insert.
func (it *Item) Validate() error {
	if !it.Kind.Valid() {
		return fmt.Errorf("%w: unknown item kind %q", ErrInvalidInput, it.Kind)
	}
	if !it.Language.Valid() {
		return fmt.Errorf("%w: unknown language %q", ErrInvalidInput, it.Language)
	}
	if !it.Level.Valid() {
		return fmt.Errorf("%w: unknown level %q", ErrInvalidInput, it.Level)
	}
	if it.Level.Language() != it.Language {
		return fmt.Errorf("%w: level %s does not belong to language %s", ErrInvalidInput, it.Level, it.Language)
	}
	if it.Headword == "" {
		return fmt.Errorf("%w: empty headword", ErrInvalidInput)
	}
	return nil
}

// ItemCard is the projection of an item that ships with due-list rows so a
// review can render without a second query.
type ItemCard struct {
	ItemID   int64
	Kind     ItemKind
	Language Language
	Level    Level
	Headword string
	Reading  string
	Meaning  string
	AudioRef string
}
