package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/lighting-importer/internal/models"
)

const minDescriptionLength = 20

var (
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*`)
	promoRe    = regexp.MustCompile(`(?i)(₽|руб\.?|цен[аыеуо]|купить|закаж|заказать|в корзину|скидк|акци[яи]|доставк|buy now|order now|add to cart|\bprice\b|\bsale\b|[$€])`)
)

var descriptionHeadings = map[string]bool{
	"описание": true, "описание товара": true, "description": true, "product description": true,
}

var descriptionStrategies = []Strategy{
	descriptionAfterHeading,
	descriptionFrom(`[itemprop="description"], [class*="product-description"], [class*="detail-text"], [class*="detail_text"], #description, .description`),
	descriptionMeta(`meta[property="og:description"]`),
	descriptionMeta(`meta[name="description"]`),
}

// descriptionAfterHeading reads the block following a "Description" heading or tab title.
func descriptionAfterHeading(p *Page) string {
	var found string
	p.Doc.Find(`h2, h3, h4, h5, [class*="title"], [class*="tab"]`).EachWithBreak(func(_ int, h *goquery.Selection) bool {
		label := strings.TrimRight(strings.ToLower(collapseSpaces(h.Text())), ": ")
		if !descriptionHeadings[label] {
			return true
		}
		h.NextAll().EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = cleanDescription(visibleText(s))
			return found == ""
		})
		return found == ""
	})
	return found
}

func descriptionFrom(selector string) Strategy {
	return func(p *Page) string {
		var found string
		p.Doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = cleanDescription(visibleText(s))
			return found == ""
		})
		return found
	}
}

func descriptionMeta(selector string) Strategy {
	return func(p *Page) string {
		return cleanDescription(p.Doc.Find(selector).First().AttrOr("content", ""))
	}
}

// cleanDescription drops promotional sentences and truncates. Blocks shorter
// than minDescriptionLength are noise and yield "".
func cleanDescription(raw string) string {
	raw = collapseSpaces(raw)
	if utf8.RuneCountInString(raw) < minDescriptionLength {
		return ""
	}

	var kept []string
	for _, sentence := range sentenceRe.FindAllString(raw, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" || promoRe.MatchString(sentence) {
			continue
		}
		kept = append(kept, sentence)
	}

	out := strings.TrimSpace(truncateRunes(strings.Join(kept, " "), models.MaxDescriptionLength))
	if utf8.RuneCountInString(out) < minDescriptionLength {
		return ""
	}
	return out
}
