package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/eslsoft/lexloop/internal/entity"
)

// Field alias sets probed when a source does not use our canonical names.
// English and Japanese sources share them; the reading aliases only ever
// match Japanese payloads in practice.
var (
	headwordAliases = []string{"headword", "word", "text", "name", "pattern", "title", "kanji", "expression"}
	readingAliases  = []string{"reading", "phonetic", "kana", "hiragana", "furigana", "pronunciation"}
	meaningAliases  = []string{"meaning", "definition", "translation", "gloss", "english"}
	exampleAliases  = []string{"example", "sentence", "usage"}
	bodyAliases     = []string{"body", "passage", "content"}
)

// rawEntry is one parsed source row before normalization, keyed by the
// source's own lowercased field names.
type rawEntry map[string]string

func (e rawEntry) probe(aliases []string) string {
	for _, alias := range aliases {
		if v, ok := e[alias]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Parse decodes a source payload into raw entries according to its declared
// format.
func Parse(format string, payload []byte) ([]rawEntry, error) {
	switch format {
	case FormatJSON:
		return parseJSON(payload)
	case FormatCSV:
		return parseCSV(payload)
	case FormatHTML:
		return parseHTML(payload)
	default:
		return nil, fmt.Errorf("%w: unknown source format %q", entity.ErrInvalidInput, format)
	}
}

func parseJSON(payload []byte) ([]rawEntry, error) {
	var rows []map[string]any
	if err := json.Unmarshal(payload, &rows); err != nil {
		// Some sources wrap the list in an envelope object.
		var envelope map[string]json.RawMessage
		if envErr := json.Unmarshal(payload, &envelope); envErr != nil {
			return nil, fmt.Errorf("%w: parse json source: %v", entity.ErrCorrupt, err)
		}
		for _, raw := range envelope {
			if json.Unmarshal(raw, &rows) == nil && len(rows) > 0 {
				break
			}
		}
		if rows == nil {
			return nil, fmt.Errorf("%w: json source holds no entry list", entity.ErrCorrupt)
		}
	}

	entries := make([]rawEntry, 0, len(rows))
	for _, row := range rows {
		entry := make(rawEntry, len(row))
		for k, v := range row {
			switch val := v.(type) {
			case string:
				entry[strings.ToLower(k)] = val
			case float64:
				entry[strings.ToLower(k)] = strings.TrimSuffix(fmt.Sprintf("%v", val), ".0")
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseCSV(payload []byte) ([]rawEntry, error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse csv source: %v", entity.ErrCorrupt, err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, col := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}
	entries := make([]rawEntry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		entry := make(rawEntry, len(header))
		for i, cell := range row {
			if i < len(header) {
				entry[header[i]] = cell
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// parseHTML extracts entries from definition lists and tables: <tr> rows map
// their cells onto headword/meaning/reading column order, <li> items carry a
// bare headword.
func parseHTML(payload []byte) ([]rawEntry, error) {
	doc, err := html.Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html source: %v", entity.ErrCorrupt, err)
	}

	var entries []rawEntry
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "tr":
				cells := childTexts(n, "td")
				if len(cells) == 0 {
					cells = childTexts(n, "th")
					if len(cells) > 0 {
						return // header row
					}
				}
				entry := rawEntry{}
				if len(cells) > 0 {
					entry["word"] = cells[0]
				}
				if len(cells) > 1 {
					entry["meaning"] = cells[1]
				}
				if len(cells) > 2 {
					entry["reading"] = cells[2]
				}
				if len(entry) > 0 {
					entries = append(entries, entry)
				}
				return
			case "li":
				if text := nodeText(n); text != "" {
					entries = append(entries, rawEntry{"word": text})
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return entries, nil
}

func childTexts(n *html.Node, tag string) []string {
	var out []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, nodeText(c))
		}
	}
	return out
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// NormalizeJapanese canonicalizes a Japanese token: NFKC composition plus
// width folding so halfwidth katakana and fullwidth latin collapse into one
// spelling before dedup.
func NormalizeJapanese(s string) string {
	return strings.TrimSpace(width.Fold.String(norm.NFKC.String(s)))
}

// fieldAliases resolves the probe list for one canonical field, prepending
// any source-declared aliases to the built-in set. Source aliases are
// lowercased to match parsed entry keys.
func fieldAliases(src Source, field string, defaults []string) []string {
	extra := src.Aliases[field]
	if len(extra) == 0 {
		return defaults
	}
	out := make([]string, 0, len(extra)+len(defaults))
	for _, a := range extra {
		out = append(out, strings.ToLower(a))
	}
	return append(out, defaults...)
}

// Normalize turns raw entries into validated items for one source, dropping
// rows without a usable headword.
func Normalize(entries []rawEntry, src Source, now time.Time) []*entity.Item {
	items := make([]*entity.Item, 0, len(entries))
	for _, entry := range entries {
		headword := entry.probe(fieldAliases(src, "headword", headwordAliases))
		if headword == "" {
			continue
		}
		item := &entity.Item{
			Kind:     src.Kind,
			Language: src.Language,
			Level:    src.Level,
			Headword: headword,
			Reading:  entry.probe(fieldAliases(src, "reading", readingAliases)),
			Meaning:  entry.probe(fieldAliases(src, "meaning", meaningAliases)),
		}
		switch src.Kind {
		case entity.ItemKindVocabulary:
			item.Example = entry.probe(fieldAliases(src, "example", exampleAliases))
		case entity.ItemKindGrammar:
			if example := entry.probe(fieldAliases(src, "example", exampleAliases)); example != "" {
				item.Examples = []string{example}
			}
		case entity.ItemKindReading:
			item.Body = entry.probe(fieldAliases(src, "body", bodyAliases))
		}
		if src.Language == entity.LanguageJapanese {
			item.Headword = NormalizeJapanese(item.Headword)
			item.Reading = NormalizeJapanese(item.Reading)
		}
		item.Normalize(now)
		if err := item.Validate(); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}
