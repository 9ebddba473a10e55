package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var nameStrategies = []Strategy{
	text("h1"),
	text(`[itemprop="name"]`),
}

var (
	brandLabels  = []string{"бренд", "производитель", "торговая марка", "фабрика", "brand", "manufacturer"}
	brandLabelRe = labelPattern(brandLabels...)
	yearRunRe    = regexp.MustCompile(`\d{4}`)
)

// titleTypeWords precede the brand in typical Russian catalog titles,
// e.g. "Люстра потолочная Maytoni Arm MOD123".
var titleTypeWords = map[string]bool{
	"люстра": true, "бра": true, "торшер": true, "светильник": true, "лампа": true,
	"спот": true, "подвес": true, "потолочная": true, "потолочный": true,
	"подвесная": true, "подвесной": true, "настенный": true, "настенная": true,
	"настольная": true, "настольный": true, "напольный": true, "точечный": true,
	"трековый": true, "светодиодная": true, "светодиодный": true,
}

var brandStrategies = []Strategy{
	validated(mapped(attr(`[itemprop="brand"] [itemprop="name"]`, "content"), cleanBrand), PlausibleBrand),
	validated(mapped(text(`[itemprop="brand"]`), cleanBrand), PlausibleBrand),
	validated(mapped(specPrefix(brandLabels...), cleanBrand), PlausibleBrand),
	validated(mapped(labeledText(brandLabelRe), cleanBrand), PlausibleBrand),
	brandFromTitle,
}

// brandFromTitle takes the token right after a product-type word in the title.
func brandFromTitle(p *Page) string {
	tokens := strings.Fields(p.Name())
	for i := 0; i < len(tokens)-1; i++ {
		if !titleTypeWords[strings.ToLower(tokens[i])] {
			continue
		}
		candidate := strings.Trim(tokens[i+1], ",.;:()«»\"")
		if PlausibleBrand(candidate) {
			return candidate
		}
	}
	return ""
}

func cleanBrand(s string) string {
	if i := strings.IndexAny(s, ",;(/"); i > 0 {
		s = s[:i]
	}
	return strings.Trim(strings.TrimSpace(s), `.«»"'`)
}

// PlausibleBrand rejects years, bare numbers, geography and lowercase prose.
// The LLM enhancer applies the same check to model answers.
func PlausibleBrand(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < 2 || n > 40 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	if !unicode.IsUpper(first) {
		return false
	}
	if yearRunRe.MatchString(s) {
		return false
	}
	if !strings.ContainsFunc(s, unicode.IsLetter) {
		return false
	}
	for _, w := range words(s) {
		if geoWords[w] {
			return false
		}
	}
	return true
}

var (
	articleLabels  = []string{"артикул", "арт.", "sku", "модель", "model", "код производителя"}
	articleLabelRe = regexp.MustCompile(`(?i)(?:артикул|арт\.|sku|модель|model)[ \t]*[:#№]?[ \t]*\n?[ \t]*([A-Za-z0-9][A-Za-z0-9\-]{0,39})`)
	articleTokenRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-]*$`)
	titleArticleRe = regexp.MustCompile(`^[A-Z0-9][A-Z0-9\-/.]*$`)
)

var articleStrategies = []Strategy{
	validated(attr(`[itemprop="sku"]`, "content"), plausibleArticle),
	validated(text(`[itemprop="sku"]`), plausibleArticle),
	validated(attr(`[itemprop="mpn"]`, "content"), plausibleArticle),
	validated(mapped(specPrefix(articleLabels...), firstToken), plausibleArticle),
	validated(textMatch(articleLabelRe, (*Page).ScopedText), plausibleArticle),
	articleFromTitle,
}

func firstToken(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

func plausibleArticle(s string) bool {
	return articleTokenRe.MatchString(s) && strings.ContainsFunc(s, unicode.IsDigit)
}

// articleFromTitle takes the trailing all-caps or numeric token of the title.
func articleFromTitle(p *Page) string {
	tokens := strings.Fields(p.Name())
	if len(tokens) < 2 {
		return ""
	}
	last := strings.Trim(tokens[len(tokens)-1], ",;:()")
	if titleArticleRe.MatchString(last) && strings.ContainsFunc(last, unicode.IsDigit) {
		return last
	}
	return ""
}
