package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Strategy returns a field value found on the page, or "" when it finds nothing.
type Strategy func(p *Page) string

// firstOf runs strategies in order and returns the first non-empty value.
func firstOf(p *Page, strategies ...Strategy) string {
	for _, s := range strategies {
		if v := strings.TrimSpace(s(p)); v != "" {
			return v
		}
	}
	return ""
}

// validated wraps a strategy with a plausibility filter.
func validated(s Strategy, ok func(string) bool) Strategy {
	return func(p *Page) string {
		v := s(p)
		if v == "" || !ok(v) {
			return ""
		}
		return v
	}
}

// mapped wraps a strategy with a value transform.
func mapped(s Strategy, fn func(string) string) Strategy {
	return func(p *Page) string {
		v := s(p)
		if v == "" {
			return ""
		}
		return fn(v)
	}
}

// specPrefix looks up the first characteristics row whose label starts with one of keys.
func specPrefix(keys ...string) Strategy {
	return func(p *Page) string {
		if s, ok := p.findSpec(func(label string) bool {
			for _, k := range keys {
				if strings.HasPrefix(label, k) {
					return true
				}
			}
			return false
		}); ok {
			return s.Value
		}
		return ""
	}
}

func (p *Page) findSpec(match func(label string) bool) (Spec, bool) {
	for _, s := range p.Specs {
		if match(s.Label) {
			return s, true
		}
	}
	return Spec{}, false
}

// labelPattern matches "Label: value" or a label on its own line followed by
// the value on the next one, capturing the value line.
func labelPattern(labels ...string) *regexp.Regexp {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = regexp.QuoteMeta(l)
	}
	return regexp.MustCompile(`(?im)^[ \t]*(?:` + strings.Join(quoted, "|") + `)[ \t]*(?:,[^:\n]{1,12})?(?::[ \t]*\n?[ \t]*|[ \t]*\n[ \t]*)([^\n]+)`)
}

// labeledText applies a label pattern to the characteristics text, then the whole page.
func labeledText(re *regexp.Regexp) Strategy {
	return func(p *Page) string {
		for _, corpus := range []string{p.CharsText, p.Text} {
			if corpus == "" {
				continue
			}
			if m := re.FindStringSubmatch(corpus); m != nil {
				return strings.TrimSpace(m[1])
			}
		}
		return ""
	}
}

// textMatch returns the first capture group of re over the given corpus.
func textMatch(re *regexp.Regexp, corpus func(p *Page) string) Strategy {
	return func(p *Page) string {
		if m := re.FindStringSubmatch(corpus(p)); m != nil {
			return strings.TrimSpace(m[1])
		}
		return ""
	}
}

func attr(selector, name string) Strategy {
	return func(p *Page) string {
		v, _ := p.Doc.Find(selector).First().Attr(name)
		return collapseSpaces(v)
	}
}

func text(selector string) Strategy {
	return func(p *Page) string {
		return collapseSpaces(p.Doc.Find(selector).First().Text())
	}
}

var leadingNumberRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)

// leadingNumber returns the first number in s, rounded to an integer.
func leadingNumber(s string) (int, bool) {
	m := leadingNumberRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return int(math.Round(f)), true
}

// intValue keeps the leading integer of a labeled value.
func intValue(s string) string {
	n, ok := leadingNumber(s)
	if !ok || n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func shortText(max int) func(string) bool {
	return func(s string) bool {
		n := utf8.RuneCountInString(s)
		return n > 0 && n <= max
	}
}

var wordSplitRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// words lowercases s and splits it on anything that is not a letter or digit.
func words(s string) []string {
	return strings.Fields(wordSplitRe.ReplaceAllString(strings.ToLower(s), " "))
}

// phrasePattern compiles a whitespace-separated phrase where a trailing "*"
// on a word matches any word ending.
func phrasePattern(phrase string) *regexp.Regexp {
	parts := strings.Fields(phrase)
	for i, w := range parts {
		if strings.HasSuffix(w, "*") {
			parts[i] = regexp.QuoteMeta(strings.TrimSuffix(w, "*")) + `[\p{L}\p{N}]*`
		} else {
			parts[i] = regexp.QuoteMeta(w)
		}
	}
	return regexp.MustCompile(`(?:^|\s)` + strings.Join(parts, `\s+`) + `(?:\s|$)`)
}
