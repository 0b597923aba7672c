package ingest

import (
	"testing"
	"time"

	"github.com/eslsoft/lexloop/internal/entity"
)

func TestParseSources(t *testing.T) {
	payload := []byte(`{
		"english_sources": {
			"cet-4": {"url": "https://words.example.com/cet4.json", "format": "json"},
			"cet-6": {"url": "https://words.example.com/cet6.csv", "format": "csv", "fallback": "backup_builtin"}
		},
		"japanese_sources": {
			"n5": {"url": "https://words.example.com/n5.html", "format": "html", "kind": "vocabulary"}
		},
		"crawler": {
			"user_agents": ["lexloop-test/1.0"],
			"min_delay_ms": 10,
			"max_delay_ms": 50,
			"max_attempts": 2
		}
	}`)

	sources, settings, err := ParseSources(payload)
	if err != nil {
		t.Fatalf("ParseSources: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	// Sorted by name: en/cet-4, en/cet-6, ja/n5.
	if sources[0].Level != entity.LevelCET4 || sources[0].Language != entity.LanguageEnglish {
		t.Errorf("first source = %+v", sources[0])
	}
	if sources[1].Fallback != FallbackBuiltin {
		t.Errorf("cet-6 fallback = %q, want backup_builtin", sources[1].Fallback)
	}
	if sources[2].Kind != entity.ItemKindVocabulary || sources[2].Format != FormatHTML {
		t.Errorf("n5 source = %+v", sources[2])
	}
	if settings.MaxAttempts != 2 || len(settings.UserAgents) != 1 {
		t.Errorf("crawler settings = %+v", settings)
	}
}

func TestParseSourcesPerSourceOverrides(t *testing.T) {
	payload := []byte(`{
		"english_sources": {
			"cet-4": {
				"name": "oxford-cet4",
				"url": "https://words.example.com/cet4.json",
				"format": "json",
				"min_delay_ms": 200,
				"max_delay_ms": 800,
				"headers": {"Authorization": "Bearer t"},
				"aliases": {"headword": ["vocab"], "meaning": ["zh"]}
			},
			"cet-6": {"url": "https://words.example.com/cet6.json", "format": "json", "enabled": false}
		}
	}`)

	sources, _, err := ParseSources(payload)
	if err != nil {
		t.Fatalf("ParseSources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}

	cet6 := sources[0] // sorted by name: en/cet-6 before oxford-cet4
	if cet6.Level != entity.LevelCET6 || !cet6.Disabled {
		t.Errorf("cet-6 source = %+v, want disabled", cet6)
	}

	cet4 := sources[1]
	if cet4.Name() != "oxford-cet4" {
		t.Errorf("name = %q, want descriptor name", cet4.Name())
	}
	if cet4.Disabled {
		t.Error("cet-4 disabled without enabled=false")
	}
	if cet4.MinDelay != 200*time.Millisecond || cet4.MaxDelay != 800*time.Millisecond {
		t.Errorf("delays = [%v, %v]", cet4.MinDelay, cet4.MaxDelay)
	}
	if cet4.Headers["Authorization"] != "Bearer t" {
		t.Errorf("headers = %v", cet4.Headers)
	}
	if len(cet4.Aliases["headword"]) != 1 || cet4.Aliases["headword"][0] != "vocab" {
		t.Errorf("aliases = %v", cet4.Aliases)
	}
}

func TestParseSourcesRejectsUnknownAliasField(t *testing.T) {
	payload := []byte(`{"english_sources": {"cet-4": {
		"url": "https://x.example.com/a.json", "format": "json",
		"aliases": {"synonyms": ["syn"]}
	}}}`)
	if _, _, err := ParseSources(payload); entity.KindOf(err) != entity.KindInvalidInput {
		t.Fatalf("kind = %v, want invalid_input", entity.KindOf(err))
	}
}

func TestParseSourcesRejectsInvertedDelays(t *testing.T) {
	payload := []byte(`{"english_sources": {"cet-4": {
		"url": "https://x.example.com/a.json", "format": "json",
		"min_delay_ms": 500, "max_delay_ms": 100
	}}}`)
	if _, _, err := ParseSources(payload); entity.KindOf(err) != entity.KindInvalidInput {
		t.Fatalf("kind = %v, want invalid_input", entity.KindOf(err))
	}
}

func TestParseSourcesRejectsUnknownLevel(t *testing.T) {
	payload := []byte(`{"english_sources": {"b2": {"url": "https://x.example.com/a.json", "format": "json"}}}`)
	if _, _, err := ParseSources(payload); entity.KindOf(err) != entity.KindInvalidInput {
		t.Fatalf("kind = %v, want invalid_input", entity.KindOf(err))
	}
}

func TestParseSourcesRejectsLevelLanguageMismatch(t *testing.T) {
	payload := []byte(`{"english_sources": {"n3": {"url": "https://x.example.com/a.json", "format": "json"}}}`)
	if _, _, err := ParseSources(payload); entity.KindOf(err) != entity.KindInvalidInput {
		t.Fatalf("kind = %v, want invalid_input", entity.KindOf(err))
	}
}

func TestParseSourcesRejectsBadFormat(t *testing.T) {
	payload := []byte(`{"english_sources": {"cet-4": {"url": "https://x.example.com/a.xml", "format": "xml"}}}`)
	if _, _, err := ParseSources(payload); entity.KindOf(err) != entity.KindInvalidInput {
		t.Fatalf("kind = %v, want invalid_input", entity.KindOf(err))
	}
}
