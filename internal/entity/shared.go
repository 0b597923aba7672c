package entity

import "strings"

// Language represents supported language codes using ISO-style abbreviations.
type Language string

const (
	LanguageUnspecified Language = ""
	LanguageEnglish     Language = "en"
	LanguageJapanese    Language = "ja"
)

// Code returns the lowercase language code (without defaulting).
func (l Language) Code() string {
	return strings.TrimSpace(string(l))
}

// CodeOrDefault returns the language code, falling back to English when unspecified.
func (l Language) CodeOrDefault() string {
	if l.Code() == "" {
		return string(LanguageEnglish)
	}
	return l.Code()
}

// Valid reports whether the language is one of the two study languages.
func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageJapanese
}

// ParseLanguage converts an arbitrary string into a supported Language value.
func ParseLanguage(code string) Language {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "en", "english":
		return LanguageEnglish
	case "ja", "jp", "japanese":
		return LanguageJapanese
	default:
		return LanguageUnspecified
	}
}

// ItemKind classifies a learnable item.
type ItemKind string

const (
	ItemKindUnspecified ItemKind = ""
	ItemKindVocabulary  ItemKind = "vocabulary"
	ItemKindGrammar     ItemKind = "grammar"
	ItemKindReading     ItemKind = "reading"
)

// String returns the canonical kind tag.
func (k ItemKind) String() string { return string(k) }

// Valid reports whether the kind is one of the three study kinds.
func (k ItemKind) Valid() bool {
	switch k {
	case ItemKindVocabulary, ItemKindGrammar, ItemKindReading:
		return true
	}
	return false
}

// ParseItemKind converts an arbitrary string into an ItemKind value.
func ParseItemKind(s string) ItemKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vocabulary", "vocab", "word":
		return ItemKindVocabulary
	case "grammar":
		return ItemKindGrammar
	case "reading", "passage":
		return ItemKindReading
	default:
		return ItemKindUnspecified
	}
}

// AllItemKinds lists the study kinds in their canonical order.
func AllItemKinds() []ItemKind {
	return []ItemKind{ItemKindVocabulary, ItemKindGrammar, ItemKindReading}
}

// Level is a difficulty tag: CET bands for English, JLPT bands for Japanese.
type Level string

const (
	LevelUnspecified Level = ""
	LevelCET4        Level = "cet-4"
	LevelCET5        Level = "cet-5"
	LevelCET6        Level = "cet-6"
	LevelN5          Level = "n5"
	LevelN4          Level = "n4"
	LevelN3          Level = "n3"
	LevelN2          Level = "n2"
	LevelN1          Level = "n1"
)

// ParseLevel converts a level tag into its canonical form. Case and hyphen
// variants ("CET4", "cet-4", "N2") are accepted.
func ParseLevel(s string) Level {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "") {
	case "cet4":
		return LevelCET4
	case "cet5":
		return LevelCET5
	case "cet6":
		return LevelCET6
	case "n5":
		return LevelN5
	case "n4":
		return LevelN4
	case "n3":
		return LevelN3
	case "n2":
		return LevelN2
	case "n1":
		return LevelN1
	default:
		return LevelUnspecified
	}
}

// Language returns the study language a level belongs to.
func (l Level) Language() Language {
	switch l {
	case LevelCET4, LevelCET5, LevelCET6:
		return LanguageEnglish
	case LevelN5, LevelN4, LevelN3, LevelN2, LevelN1:
		return LanguageJapanese
	}
	return LanguageUnspecified
}

// Valid reports whether the level is a known tag.
func (l Level) Valid() bool {
	return l.Language() != LanguageUnspecified
}

// Weight ranks levels by difficulty within their language, easiest first.
// Consumed only by the bulk priority score, never by the per-user due list.
func (l Level) Weight() float64 {
	switch l {
	case LevelCET4, LevelN5:
		return 1
	case LevelCET5, LevelN4:
		return 2
	case LevelCET6, LevelN3:
		return 3
	case LevelN2:
		return 4
	case LevelN1:
		return 5
	}
	return 0
}

// LevelsFor returns the enumerated level set of a language, easiest first.
func LevelsFor(lang Language) []Level {
	switch lang {
	case LanguageEnglish:
		return []Level{LevelCET4, LevelCET5, LevelCET6}
	case LanguageJapanese:
		return []Level{LevelN5, LevelN4, LevelN3, LevelN2, LevelN1}
	}
	return nil
}

// NormalizeHeadwordToken lowercases and trims an English headword token.
// Japanese headwords go through the ingest normalizer's NFKC pass instead.
func NormalizeHeadwordToken(word string) string {
	trimmed := strings.TrimSpace(word)
	if trimmed == "" {
		return ""
	}
	return strings.ToLower(trimmed)
}
