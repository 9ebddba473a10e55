package parser

import (
	"regexp"
	"strings"

	"github.com/maltedev/lighting-importer/internal/models"
)

type typeRule struct {
	productType models.ProductType
	phrases     []*regexp.Regexp
}

func rule(t models.ProductType, phrases ...string) typeRule {
	r := typeRule{productType: t}
	for _, ph := range phrases {
		r.phrases = append(r.phrases, phrasePattern(ph))
	}
	return r
}

// typeRules run from the most specific phrase to the broadest single keyword;
// the first rule with any hit decides.
var typeRules = []typeRule{
	rule(models.TypeCeilingChandelier, "потолочн* люстр*", "люстр* потолочн*", "ceiling chandelier*"),
	rule(models.TypePendantChandelier, "подвесн* люстр*", "люстр* подвесн*", "pendant chandelier*"),
	rule(models.TypeSconce, "настенн* светильник*", "светильник* настенн*", "wall mounted light fixture*", "wall light*", "wall lamp*"),
	rule(models.TypeTableLamp, "настольн* ламп*", "лампа настольн*", "настольн* светильник*", "светильник* настольн*", "table lamp*", "desk lamp*"),
	rule(models.TypeFloorLamp, "напольн* светильник*", "светильник* напольн*", "напольн* ламп*", "floor lamp*"),
	rule(models.TypeTrackLight, "трек* светильник*", "светильник* трек*", "track light*"),
	rule(models.TypeSpotlight, "точечн* светильник*", "светильник* точечн*", "spot light*", "spotlight*", "downlight*"),
	rule(models.TypePendant, "подвесн* светильник*", "светильник* подвесн*", "pendant lamp*", "pendant light*"),
	rule(models.TypeCeilingLight, "потолочн* светильник*", "светильник* потолочн*", "ceiling light*", "ceiling lamp*"),
	rule(models.TypeSconce, "бра", "sconce*"),
	rule(models.TypeFloorLamp, "торшер*"),
	rule(models.TypeSpotlight, "спот*"),
	rule(models.TypeChandelier, "люстр*", "chandelier*"),
	rule(models.TypePendant, "подвес*", "pendant*"),
}

// classificationText joins the title, breadcrumbs and category metadata.
func classificationText(p *Page) string {
	parts := []string{
		p.Name(),
		visibleText(p.Doc.Find(`[class*="breadcrumb"], [itemtype*="BreadcrumbList"]`)),
		p.Doc.Find(`meta[property="product:category"]`).AttrOr("content", ""),
		p.Doc.Find(`[itemprop="category"]`).AttrOr("content", ""),
		collapseSpaces(p.Doc.Find(`[itemprop="category"]`).Text()),
	}
	return strings.Join(parts, " ")
}

func classifyProduct(p *Page) string {
	return string(Classify(classificationText(p)))
}

// Classify returns the product type for normalized text, or "" when no rule matches.
func Classify(text string) models.ProductType {
	text = " " + strings.Join(words(text), " ") + " "
	for _, r := range typeRules {
		for _, re := range r.phrases {
			if re.MatchString(text) {
				return r.productType
			}
		}
	}
	return ""
}
