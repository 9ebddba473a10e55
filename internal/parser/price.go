package parser

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

var (
	inlinePriceRe = regexp.MustCompile(`"price"\s*:\s*"?(\d[\d \x{00a0}]*(?:[.,]\d{1,2})?)`)
	buyAtPriceRe  = regexp.MustCompile(`(?i)(?:купить\s+)?по\s+цене\s*:?\s*(\d[\d\s\x{00a0}\x{202f}]*(?:[.,]\d{1,2})?)\s*(?:₽|руб|р\.)`)
	rublesRe      = regexp.MustCompile(`(?i)(\d{1,3}(?:[ \x{00a0}\x{202f}]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)[\s\x{00a0}]*(?:₽|руб|р\.)`)
	priceCharsRe  = regexp.MustCompile(`[\s\x{00a0}\x{202f}\x{2009}]`)
)

var priceStrategies = []Strategy{
	mapped(attr(`[itemprop="price"]`, "content"), normalizePrice),
	mapped(text(`[itemprop="price"]`), normalizePrice),
	mapped(attr(`meta[property="product:price:amount"]`, "content"), normalizePrice),
	priceInlineJSON,
	priceFromClass,
	mapped(textMatch(buyAtPriceRe, pageText), normalizePrice),
	mapped(textMatch(rublesRe, scopedOrPrice), normalizePrice),
}

func pageText(p *Page) string { return p.Text }

// scopedOrPrice limits the bare "N ₽" scan to price-like blocks when the
// page has them, so related-product prices further down are not picked.
func scopedOrPrice(p *Page) string {
	if block := visibleText(p.Doc.Find(`[class*="price"], [class*="cost"]`)); block != "" {
		return block
	}
	return p.Text
}

func priceInlineJSON(p *Page) string {
	if m := inlinePriceRe.FindStringSubmatch(html.UnescapeString(p.CleanedHTML)); m != nil {
		return normalizePrice(m[1])
	}
	return ""
}

func priceFromClass(p *Page) string {
	var price string
	p.Doc.Find(`[class*="price"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := rublesRe.FindStringSubmatch(collapseSpaces(s.Text())); m != nil {
			price = normalizePrice(m[1])
		}
		return price == ""
	})
	return price
}

// normalizePrice strips thousands separators and returns a canonical
// decimal string, or "" when the value is not a positive number.
func normalizePrice(raw string) string {
	s := priceCharsRe.ReplaceAllString(raw, "")
	s = strings.TrimRight(strings.ReplaceAll(s, ",", "."), ".")
	if s == "" {
		return ""
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return ""
	}
	return s
}
