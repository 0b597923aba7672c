package ingest

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/eslsoft/lexloop/internal/entity"
)

// Source formats the pipeline can parse.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatHTML = "html"
)

// Fallback policies when a source cannot be fetched.
const (
	FallbackNone    = ""
	FallbackBuiltin = "backup_builtin"
	FallbackSkip    = "skip"
)

// Descriptor describes one remote content source for a single level. Delay
// bounds and headers apply to this source only; absent delays inherit the
// file's crawler block, then config. A nil Enabled means enabled.
type Descriptor struct {
	Name     string `json:"name,omitempty"`
	URL      string `json:"url" validate:"required,url"`
	Format   string `json:"format" validate:"required,oneof=json csv html"`
	Kind     string `json:"kind,omitempty" validate:"omitempty,oneof=vocabulary grammar reading"`
	Fallback string `json:"fallback,omitempty" validate:"omitempty,oneof=backup_builtin skip"`
	Enabled  *bool  `json:"enabled,omitempty"`

	Headers        map[string]string `json:"headers,omitempty"`
	MinDelayMillis int               `json:"min_delay_ms,omitempty" validate:"min=0"`
	MaxDelayMillis int               `json:"max_delay_ms,omitempty" validate:"omitempty,gtefield=MinDelayMillis"`

	// Aliases prepends source-specific field names to the built-in probe
	// lists, keyed by canonical field (headword, reading, meaning, example,
	// body).
	Aliases map[string][]string `json:"aliases,omitempty" validate:"omitempty,dive,dive,min=1"`
}

// CrawlerSettings overrides the configured crawler defaults for one sources
// file. Zero values fall back to config.
type CrawlerSettings struct {
	UserAgents     []string `json:"user_agents" validate:"omitempty,dive,min=1"`
	MinDelayMillis int      `json:"min_delay_ms" validate:"min=0"`
	MaxDelayMillis int      `json:"max_delay_ms" validate:"min=0,gtefield=MinDelayMillis"`
	MaxAttempts    int      `json:"max_attempts" validate:"min=0"`
	TimeoutMillis  int      `json:"timeout_ms" validate:"min=0"`
}

// SourceFile is the on-disk shape of the sources descriptor: per-language
// maps keyed by level tag plus a crawler settings block.
type SourceFile struct {
	EnglishSources  map[string]Descriptor `json:"english_sources" validate:"dive"`
	JapaneseSources map[string]Descriptor `json:"japanese_sources" validate:"dive"`
	Crawler         CrawlerSettings       `json:"crawler"`
}

// Source is one resolved ingest target.
type Source struct {
	Language entity.Language
	Level    entity.Level
	Kind     entity.ItemKind
	URL      string
	Format   string
	Fallback string
	Label    string
	Disabled bool

	Headers  map[string]string
	MinDelay time.Duration
	MaxDelay time.Duration
	Aliases  map[string][]string
}

// Name identifies the source in logs and stats. An explicit descriptor name
// wins over the derived language/level/kind tag.
func (s Source) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return fmt.Sprintf("%s/%s/%s", s.Language.Code(), s.Level, s.Kind)
}

// Canonical field keys a descriptor may alias.
var aliasFields = map[string]bool{
	"headword": true,
	"reading":  true,
	"meaning":  true,
	"example":  true,
	"body":     true,
}

// LoadSources reads and validates a sources file, resolving level keys into
// canonical tags. Unknown levels or levels of the wrong language are rejected.
func LoadSources(path string) ([]Source, CrawlerSettings, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, CrawlerSettings{}, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(payload)
}

// ParseSources parses a sources descriptor payload.
func ParseSources(payload []byte) ([]Source, CrawlerSettings, error) {
	var file SourceFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, CrawlerSettings{}, fmt.Errorf("%w: parse sources file: %v", entity.ErrInvalidInput, err)
	}
	if err := validator.New().Struct(&file); err != nil {
		return nil, CrawlerSettings{}, fmt.Errorf("%w: validate sources file: %v", entity.ErrInvalidInput, err)
	}

	var sources []Source
	appendSources := func(lang entity.Language, descriptors map[string]Descriptor) error {
		for tag, d := range descriptors {
			level := entity.ParseLevel(tag)
			if level == entity.LevelUnspecified {
				return fmt.Errorf("%w: unknown level %q", entity.ErrInvalidInput, tag)
			}
			if level.Language() != lang {
				return fmt.Errorf("%w: level %s does not belong to %s sources", entity.ErrInvalidInput, level, lang.Code())
			}
			kind := entity.ParseItemKind(d.Kind)
			if kind == entity.ItemKindUnspecified {
				kind = entity.ItemKindVocabulary
			}
			for field := range d.Aliases {
				if !aliasFields[field] {
					return fmt.Errorf("%w: unknown alias field %q for level %s", entity.ErrInvalidInput, field, level)
				}
			}
			sources = append(sources, Source{
				Language: lang,
				Level:    level,
				Kind:     kind,
				URL:      d.URL,
				Format:   d.Format,
				Fallback: d.Fallback,
				Label:    d.Name,
				Disabled: d.Enabled != nil && !*d.Enabled,
				Headers:  d.Headers,
				MinDelay: time.Duration(d.MinDelayMillis) * time.Millisecond,
				MaxDelay: time.Duration(d.MaxDelayMillis) * time.Millisecond,
				Aliases:  d.Aliases,
			})
		}
		return nil
	}
	if err := appendSources(entity.LanguageEnglish, file.EnglishSources); err != nil {
		return nil, CrawlerSettings{}, err
	}
	if err := appendSources(entity.LanguageJapanese, file.JapaneseSources); err != nil {
		return nil, CrawlerSettings{}, err
	}

	// Map iteration order is random; keep runs reproducible.
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name() < sources[j].Name() })
	return sources, file.Crawler, nil
}
