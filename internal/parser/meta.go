package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// countries maps lowercase spellings to the catalog's canonical country name.
var countries = map[string]string{
	"италия": "Италия", "italy": "Италия", "italia": "Италия",
	"германия": "Германия", "germany": "Германия", "deutschland": "Германия",
	"австрия": "Австрия", "austria": "Австрия",
	"испания": "Испания", "spain": "Испания",
	"франция": "Франция", "france": "Франция",
	"китай": "Китай", "china": "Китай", "кнр": "Китай",
	"россия": "Россия", "russia": "Россия", "рф": "Россия",
	"чехия": "Чехия", "czech": "Чехия", "czechia": "Чехия",
	"польша": "Польша", "poland": "Польша",
	"турция": "Турция", "turkey": "Турция",
	"беларусь": "Беларусь", "belarus": "Беларусь",
	"дания": "Дания", "denmark": "Дания",
	"швеция": "Швеция", "sweden": "Швеция",
	"нидерланды": "Нидерланды", "голландия": "Нидерланды", "netherlands": "Нидерланды",
	"великобритания": "Великобритания", "англия": "Великобритания", "uk": "Великобритания", "england": "Великобритания",
	"сша": "США", "usa": "США",
	"бельгия": "Бельгия", "belgium": "Бельгия",
	"швейцария": "Швейцария", "switzerland": "Швейцария",
	"португалия": "Португалия", "portugal": "Португалия",
	"латвия": "Латвия", "latvia": "Латвия",
	"литва": "Литва", "lithuania": "Литва",
	"индия": "Индия", "india": "Индия",
	"вьетнам": "Вьетнам", "vietnam": "Вьетнам",
	"япония": "Япония", "japan": "Япония",
}

// geoWords disqualify brand candidates.
var geoWords = func() map[string]bool {
	m := map[string]bool{
		"страна": true, "country": true, "европа": true, "europe": true, "москва": true,
		"made": true, "производство": true,
	}
	for k := range countries {
		m[k] = true
	}
	return m
}()

// normalizeCountry maps a labeled value to a canonical country name. Unknown
// values pass through with the first letter capitalized.
func normalizeCountry(s string) string {
	for _, w := range words(s) {
		if c, ok := countries[w]; ok {
			return c
		}
	}
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > 40 || strings.ContainsFunc(s, unicode.IsDigit) {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

var (
	brandCountryLabels = []string{"страна бренда", "страна происхождения бренда", "brand country"}
	madeInLabels       = []string{
		"страна производства", "страна-производитель", "страна производитель", "страна изготовления",
		"страна изготовитель", "производство", "made in", "country of origin", "country of manufacture",
	}
	collectionLabels = []string{"коллекция", "серия", "collection", "series"}
	styleLabels      = []string{"стиль", "style"}
	colorLabels      = []string{"цвет арматуры", "цвет", "color", "colour"}
)

var brandCountryStrategies = []Strategy{
	mapped(specPrefix(brandCountryLabels...), normalizeCountry),
	mapped(labeledText(labelPattern(brandCountryLabels...)), normalizeCountry),
	mapped(specExact("страна", "country"), normalizeCountry),
}

var manufacturerCountryStrategies = []Strategy{
	mapped(specPrefix(madeInLabels...), normalizeCountry),
	mapped(labeledText(labelPattern(madeInLabels...)), normalizeCountry),
}

var collectionStrategies = []Strategy{
	validated(specPrefix(collectionLabels...), shortText(60)),
	validated(labeledText(labelPattern(collectionLabels...)), shortText(60)),
}

var styleStrategies = []Strategy{
	validated(specPrefix(styleLabels...), shortText(60)),
	validated(labeledText(labelPattern(styleLabels...)), shortText(60)),
}

var colorStrategies = []Strategy{
	validated(attr(`[itemprop="color"]`, "content"), shortText(60)),
	validated(specPrefix(colorLabels...), shortText(60)),
	validated(labeledText(labelPattern(colorLabels...)), shortText(60)),
}

// specExact matches a characteristics label exactly.
func specExact(labels ...string) Strategy {
	return func(p *Page) string {
		if s, ok := p.findSpec(func(label string) bool {
			for _, l := range labels {
				if label == l {
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

var ipRatingRe = regexp.MustCompile(`\bIP\s?([0-6X][0-9X])\b`)

var ipRatingStrategies = []Strategy{
	mapped(specPrefix("степень защиты", "ip", "класс пылевлагозащиты", "protection"), ipRating),
	mapped(func(p *Page) string { return p.ScopedText() }, ipRating),
}

func ipRating(s string) string {
	if m := ipRatingRe.FindStringSubmatch(strings.ToUpper(s)); m != nil {
		return "IP" + m[1]
	}
	return ""
}

var assemblyWords = []string{"инструкц", "instruction", "manual", "сборк", "монтаж", "паспорт"}

// assemblyInstruction finds a linked PDF that reads like an instruction manual.
func assemblyInstruction(p *Page) string {
	var found string
	p.Doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		lower := strings.ToLower(href)
		if !strings.Contains(lower, ".pdf") {
			return true
		}
		haystack := lower + " " + strings.ToLower(a.Text())
		for _, w := range assemblyWords {
			if strings.Contains(haystack, w) {
				found = resolveURL(p.URL, href)
				return found == ""
			}
		}
		return true
	})
	return found
}

var outOfStockPhrases = []string{"нет в наличии", "out of stock", "товар закончился", "снят с производства"}

func availability(p *Page) string {
	s := p.Doc.Find(`[itemprop="availability"]`).First()
	switch v := s.AttrOr("href", s.AttrOr("content", "")); {
	case strings.Contains(v, "OutOfStock"), strings.Contains(v, "Discontinued"):
		return "false"
	case strings.Contains(v, "InStock"), strings.Contains(v, "PreOrder"):
		return "true"
	}
	for _, phrase := range outOfStockPhrases {
		if strings.Contains(p.Lower, phrase) {
			return "false"
		}
	}
	return ""
}
