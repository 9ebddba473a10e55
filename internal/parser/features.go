package parser

import (
	"strings"

	"github.com/maltedev/lighting-importer/internal/models"
)

type feature struct {
	field    string
	keywords []string
}

var features = []feature{
	{models.FieldHasRemote, []string{"пульт", "пду", "remote"}},
	{models.FieldIsDimmable, []string{"диммир", "диммер", "диммируем", "регулировка яркости", "регулировкой яркости", "dimmable", "dimmer"}},
	{models.FieldHasColorChange, []string{"смена цвета", "смены цвета", "сменой цвета", "изменение цвета", "изменения цвета", "rgb", "color changing", "colour changing", "color change"}},
}

var negations = map[string]bool{
	"без": true, "нет": true, "не": true, "no": true, "not": true, "without": true,
}

var (
	yesValues = map[string]bool{"да": true, "есть": true, "yes": true, "+": true, "имеется": true, "в комплекте": true}
	noValues  = map[string]bool{"нет": true, "no": true, "-": true, "отсутствует": true}
)

// detect resolves a feature flag. A characteristics row naming the feature
// decides by its yes/no value; otherwise any keyword occurrence that is not
// negated within its clause sets the flag.
func (f feature) detect(p *Page) string {
	for _, s := range p.Specs {
		if !containsAny(s.Label, f.keywords) {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(s.Value))
		switch {
		case yesValues[v]:
			return "true"
		case noValues[v]:
			return "false"
		}
	}

	if hasUnnegated(p.ScopedLower(), f.keywords) {
		return "true"
	}
	return ""
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// hasUnnegated reports whether any keyword occurs in corpus without a
// negation among the three words before it in the same clause.
func hasUnnegated(corpus string, keywords []string) bool {
	for _, k := range keywords {
		offset := 0
		for {
			i := strings.Index(corpus[offset:], k)
			if i < 0 {
				break
			}
			at := offset + i
			if !negatedBefore(corpus[:at]) {
				return true
			}
			offset = at + len(k)
		}
	}
	return false
}

func negatedBefore(prefix string) bool {
	if i := strings.LastIndexAny(prefix, ".,;:!?\n()"); i >= 0 {
		prefix = prefix[i+1:]
	}
	w := words(prefix)
	if len(w) > 3 {
		w = w[len(w)-3:]
	}
	for _, word := range w {
		if negations[word] {
			return true
		}
	}
	return false
}
