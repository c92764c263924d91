package tools

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var (
	wordRe     = regexp.MustCompile(`[a-z0-9]+`)
	citationRe = regexp.MustCompile(`\[[^\]]+\]`)
	sentEndRe  = regexp.MustCompile(`[.!?]\s+`)
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "to": true, "of": true, "in": true, "on": true,
	"at": true, "for": true, "from": true, "by": true, "as": true, "that": true, "this": true,
	"it": true, "its": true, "and": true, "or": true, "with": true, "during": true, "into": true,
	"over": true, "under": true, "than": true, "then": true, "who": true, "what": true,
	"when": true, "where": true, "which": true,
}

// words lower-cases text and returns its alphanumeric runs.
func words(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

func contentWords(text string) []string {
	out := []string{}
	for _, w := range words(text) {
		if !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// htmlToText renders markup as whitespace-separated text. Script, style and
// noscript content is dropped; plain text passes through with entities decoded.
func htmlToText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return collapseSpace(markup)
	}
	doc.Find("script, style, noscript").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, s *goquery.Selection) {
			if goquery.NodeName(s) == "#text" {
				b.WriteString(s.Text())
				b.WriteByte(' ')
				return
			}
			walk(s)
		})
	}
	walk(doc.Selection)
	return collapseSpace(b.String())
}

// splitSentences breaks cleaned text after terminal punctuation.
func splitSentences(text string) []string {
	out := []string{}
	start := 0
	for _, loc := range sentEndRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start : loc[0]+1]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// objectList accepts a JSON array (decoded or typed) and keeps its object
// elements. The bool is false when v is not an array.
func objectList(v interface{}) ([]map[string]interface{}, bool) {
	switch list := v.(type) {
	case nil:
		return nil, false
	case []map[string]interface{}:
		return list, true
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out, true
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var decoded []interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false
	}
	return objectList(decoded)
}

func stringField(m map[string]interface{}, key, def string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return def
}

// stringList keeps the string elements of a JSON array.
func stringList(v interface{}) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}
