package ingest

import (
	"time"

	"github.com/eslsoft/lexloop/internal/entity"
)

// Built-in seed lists: a small vocabulary core per level so a fresh install
// (or a dead source with the backup_builtin fallback) still yields a usable
// study corpus.

type seedEntry struct {
	headword string
	reading  string
	meaning  string
}

var seedLists = map[entity.Level][]seedEntry{
	entity.LevelCET4: {
		{"abandon", "", "to give up completely"},
		{"benefit", "", "an advantage gained from something"},
		{"candidate", "", "a person applying for a position"},
		{"demand", "", "a firm request"},
		{"estimate", "", "to judge an approximate value"},
		{"frequent", "", "happening often"},
		{"generate", "", "to produce or create"},
		{"maintain", "", "to keep in an existing state"},
	},
	entity.LevelCET5: {
		{"accumulate", "", "to gather gradually"},
		{"controversy", "", "a prolonged public dispute"},
		{"deteriorate", "", "to become progressively worse"},
		{"implicit", "", "implied without being stated"},
		{"negligible", "", "too small to matter"},
		{"preliminary", "", "coming before the main part"},
		{"substantial", "", "of considerable size or worth"},
		{"undermine", "", "to weaken gradually"},
	},
	entity.LevelCET6: {
		{"ambiguous", "", "open to more than one interpretation"},
		{"coherent", "", "logically connected"},
		{"discrepancy", "", "a lack of agreement between facts"},
		{"intrinsic", "", "belonging naturally, essential"},
		{"paradigm", "", "a typical example or model"},
		{"scrutiny", "", "close critical examination"},
		{"tentative", "", "not certain or fixed"},
		{"vulnerable", "", "exposed to harm"},
	},
	entity.LevelN5: {
		{"学生", "がくせい", "student"},
		{"先生", "せんせい", "teacher"},
		{"毎日", "まいにち", "every day"},
		{"食べる", "たべる", "to eat"},
		{"飲む", "のむ", "to drink"},
		{"新しい", "あたらしい", "new"},
		{"大きい", "おおきい", "big"},
		{"時間", "じかん", "time, hour"},
	},
	entity.LevelN4: {
		{"経験", "けいけん", "experience"},
		{"予定", "よてい", "plan, schedule"},
		{"準備", "じゅんび", "preparation"},
		{"説明", "せつめい", "explanation"},
		{"複雑", "ふくざつ", "complicated"},
		{"必要", "ひつよう", "necessary"},
		{"集める", "あつめる", "to collect"},
		{"続ける", "つづける", "to continue"},
	},
	entity.LevelN3: {
		{"環境", "かんきょう", "environment"},
		{"影響", "えいきょう", "influence, effect"},
		{"解決", "かいけつ", "solution, resolution"},
		{"状況", "じょうきょう", "situation"},
		{"増加", "ぞうか", "increase"},
		{"確認", "かくにん", "confirmation"},
		{"提案", "ていあん", "proposal"},
		{"努力", "どりょく", "effort"},
	},
	entity.LevelN2: {
		{"把握", "はあく", "grasp, understanding"},
		{"傾向", "けいこう", "tendency"},
		{"矛盾", "むじゅん", "contradiction"},
		{"充実", "じゅうじつ", "fullness, enrichment"},
		{"妥当", "だとう", "valid, appropriate"},
		{"著しい", "いちじるしい", "remarkable, striking"},
		{"掲載", "けいさい", "publication in print"},
		{"臨む", "のぞむ", "to face, to attend"},
	},
	entity.LevelN1: {
		{"顕著", "けんちょ", "conspicuous, notable"},
		{"抜本的", "ばっぽんてき", "drastic, fundamental"},
		{"暫定", "ざんてい", "provisional"},
		{"逸脱", "いつだつ", "deviation"},
		{"網羅", "もうら", "comprehensive coverage"},
		{"頑丈", "がんじょう", "solid, sturdy"},
		{"懸念", "けねん", "concern, apprehension"},
		{"脆弱", "ぜいじゃく", "fragile, vulnerable"},
	},
}

// SeedItems returns the built-in vocabulary list for one language/level pair.
func SeedItems(language entity.Language, level entity.Level, now time.Time) []*entity.Item {
	if level.Language() != language {
		return nil
	}
	entries := seedLists[level]
	items := make([]*entity.Item, 0, len(entries))
	for _, e := range entries {
		item := &entity.Item{
			Kind:     entity.ItemKindVocabulary,
			Language: language,
			Level:    level,
			Headword: e.headword,
			Reading:  e.reading,
			Meaning:  e.meaning,
		}
		item.Normalize(now)
		items = append(items, item)
	}
	return items
}

// SeedLevels lists the levels that carry built-in seed data for a language.
func SeedLevels(language entity.Language) []entity.Level {
	var out []entity.Level
	for _, level := range entity.LevelsFor(language) {
		if len(seedLists[level]) > 0 {
			out = append(out, level)
		}
	}
	return out
}
