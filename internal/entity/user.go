package entity

import (
	"fmt"
	"strings"
	"time"
)

// DefaultDailyStudyMinutes is applied when a user has no explicit budget.
const DefaultDailyStudyMinutes = 30

// User holds the study profile the core reads and writes. Credential
// verification belongs to the transport collaborator; the core only stores
// the salted hash.
type User struct {
	ID             int64
	Username       string
	CredentialHash string
	EnglishLevel   Level
	JapaneseLevel  Level
	DailyMinutes   int32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Normalize ensures defaults & constraints before persistence.
func (u *User) Normalize(now time.Time) {
	u.Username = strings.TrimSpace(u.Username)
	if u.EnglishLevel == LevelUnspecified {
		u.EnglishLevel = LevelCET4
	}
	if u.JapaneseLevel == LevelUnspecified {
		u.JapaneseLevel = LevelN5
	}
	if u.DailyMinutes <= 0 {
		u.DailyMinutes = DefaultDailyStudyMinutes
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
}

// Validate checks the profile invariants.
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("%w: empty username", ErrInvalidInput)
	}
	if u.CredentialHash == "" {
		return fmt.Errorf("%w: empty credential hash", ErrInvalidInput)
	}
	if u.EnglishLevel.Language() != LanguageEnglish {
		return fmt.Errorf("%w: english level %q", ErrInvalidInput, u.EnglishLevel)
	}
	if u.JapaneseLevel.Language() != LanguageJapanese {
		return fmt.Errorf("%w: japanese level %q", ErrInvalidInput, u.JapaneseLevel)
	}
	if u.DailyMinutes <= 0 {
		return fmt.Errorf("%w: daily minutes must be positive", ErrInvalidInput)
	}
	return nil
}

// LevelFor returns the user's preferred level for a language.
func (u *User) LevelFor(lang Language) Level {
	switch lang {
	case LanguageEnglish:
		return u.EnglishLevel
	case LanguageJapanese:
		return u.JapaneseLevel
	}
	return LevelUnspecified
}
