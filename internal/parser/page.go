package parser

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	// MaxLLMInput bounds the cleaned page handed to the LLM.
	MaxLLMInput = 50000
	// MaxCharsSection bounds a located characteristics section handed to the LLM.
	MaxCharsSection = 8000
)

// ErrEmptyDocument means the page had no visible text after normalization.
var ErrEmptyDocument = errors.New("empty document")

// ParseError means the page is structurally unusable.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Spec is one labeled row of a characteristics section.
type Spec struct {
	Label string
	Unit  string
	Value string
}

// Page is a normalized product page. Everything extractors read comes from here.
type Page struct {
	URL         *url.URL
	Doc         *goquery.Document
	CleanedHTML string
	Text        string
	Lower       string

	Chars      *goquery.Selection
	CharsHTML  string
	CharsText  string
	CharsLower string
	Specs      []Spec
}

var scriptStyleRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>|<style\b[^>]*>.*?</style\s*>|<noscript\b[^>]*>.*?</noscript\s*>`)

// charsSelectors are tried in order; the first non-empty container wins.
var charsSelectors = []string{
	`[itemprop="additionalProperty"]`,
	`[class*="characteristic"]`,
	`[id*="characteristic"]`,
	`[class*="harakteristik"]`,
	`[class*="specification"]`,
	`[id*="specification"]`,
	`[class*="props"]`,
	`[class*="properties"]`,
	`[class*="params"]`,
	`[class*="features"]`,
	`table[class*="spec"]`,
}

// Normalize strips script and style blocks, parses the page and locates the
// characteristics section.
func Normalize(rawHTML, pageURL string) (*Page, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, &ParseError{URL: pageURL, Err: ErrEmptyDocument}
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, &ParseError{URL: pageURL, Err: fmt.Errorf("invalid page url: %w", err)}
	}

	cleaned := scriptStyleRe.ReplaceAllString(rawHTML, "")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleaned))
	if err != nil {
		return nil, &ParseError{URL: pageURL, Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}
	// Unterminated tags survive the regex pass.
	doc.Find("script, style, noscript, template").Remove()

	text := visibleText(doc.Selection)
	if text == "" && doc.Find("meta[content]").Length() == 0 {
		return nil, &ParseError{URL: pageURL, Err: ErrEmptyDocument}
	}

	page := &Page{
		URL:         u,
		Doc:         doc,
		CleanedHTML: cleaned,
		Text:        text,
		Lower:       strings.ToLower(text),
	}

	if chars := locateCharacteristics(doc); chars != nil {
		page.Chars = chars
		page.CharsText = visibleText(chars)
		page.CharsLower = strings.ToLower(page.CharsText)
		if h, err := goquery.OuterHtml(chars); err == nil {
			page.CharsHTML = truncateRunes(h, MaxCharsSection)
		}
		page.Specs = parseSpecs(chars)
	} else {
		page.Specs = parseSpecs(doc.Selection)
	}

	return page, nil
}

// LLMInput returns the bounded content for the LLM prompt.
func (p *Page) LLMInput() string {
	if p.CharsHTML != "" {
		return p.CharsHTML
	}
	return truncateRunes(p.CleanedHTML, MaxLLMInput)
}

// ScopedText returns the characteristics text when located and the full text otherwise.
func (p *Page) ScopedText() string {
	if p.CharsText != "" {
		return p.CharsText
	}
	return p.Text
}

// ScopedLower is the lowercase form of ScopedText.
func (p *Page) ScopedLower() string {
	if p.CharsLower != "" {
		return p.CharsLower
	}
	return p.Lower
}

// Name returns the page title used as the product name candidate.
func (p *Page) Name() string {
	return collapseSpaces(p.Doc.Find("h1").First().Text())
}

func locateCharacteristics(doc *goquery.Document) *goquery.Selection {
	for _, sel := range charsSelectors {
		var found *goquery.Selection
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if s.Find("tr, li, dt, dd, div, span").Length() == 0 {
				return true
			}
			if strings.TrimSpace(s.Text()) == "" {
				return true
			}
			found = s
			return false
		})
		if found != nil {
			return found
		}
	}
	return nil
}

var labelUnitRe = regexp.MustCompile(`^(.*?)(?:\s*,\s*|\s*\(\s*)(мм|см|м|mm|cm|m|вт|w|в|v|кг|kg)\)?$`)

func parseSpecs(root *goquery.Selection) []Spec {
	var specs []Spec
	add := func(label, value string) {
		label = strings.TrimRight(strings.ToLower(collapseSpaces(label)), ": ")
		value = collapseSpaces(value)
		if label == "" || value == "" || utf8.RuneCountInString(label) > 60 {
			return
		}
		spec := Spec{Label: label, Value: value}
		if m := labelUnitRe.FindStringSubmatch(label); m != nil {
			spec.Label, spec.Unit = strings.TrimSpace(m[1]), m[2]
		}
		specs = append(specs, spec)
	}

	root.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("th, td")
		if cells.Length() >= 2 {
			add(cells.Eq(0).Text(), cells.Eq(1).Text())
		}
	})

	root.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		add(dt.Text(), dt.NextFiltered("dd").Text())
	})

	root.Find(`[class*="name"], [class*="label"], [class*="title"]`).Each(func(_ int, s *goquery.Selection) {
		next := s.NextFiltered(`[class*="value"], [class*="val"]`)
		if next.Length() > 0 {
			add(s.Text(), next.Text())
		}
	})

	root.Find("li").Each(func(_ int, li *goquery.Selection) {
		if li.Find("li").Length() > 0 {
			return
		}
		text := collapseSpaces(li.Text())
		if label, value, ok := strings.Cut(text, ":"); ok {
			add(label, value)
		}
	})

	return specs
}

// visibleText joins the text nodes under sel with newlines so that adjacent
// cells never run together.
func visibleText(sel *goquery.Selection) string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := collapseSpaces(n.Data); t != "" {
				lines = append(lines, t)
			}
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(lines, "\n")
}

var spaceRe = regexp.MustCompile(`[\s\x{00a0}\x{202f}\x{2009}]+`)

func collapseSpaces(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
