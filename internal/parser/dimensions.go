package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/maltedev/lighting-importer/internal/models"
)

type dimension struct {
	field   string
	labels  []string
	pattern *regexp.Regexp
}

func newDimension(field string, labels ...string) dimension {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = regexp.QuoteMeta(l)
	}
	// label, optional unit in the label, separator, number, optional unit
	re := regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:` + strings.Join(quoted, "|") +
		`)(?:\s*[,(]\s*(мм|см|mm|cm|м|m)\)?)?\s*[:\-–]?\s*(\d+(?:[.,]\d+)?)\s*(мм|см|mm|cm|м|m)?(?:[^\p{L}]|$)`)
	return dimension{field: field, labels: labels, pattern: re}
}

// dimensions are stored in millimeters. The label must be followed directly
// by its value, so "длина" never captures a "длина цепи" row.
var dimensions = []dimension{
	newDimension(models.FieldChainLength, "длина цепи", "длина подвеса", "chain length"),
	newDimension(models.FieldHeight, "высота", "height"),
	newDimension(models.FieldDiameter, "диаметр", "diameter"),
	newDimension(models.FieldLength, "длина", "length"),
	newDimension(models.FieldWidth, "ширина", "width"),
	newDimension(models.FieldDepth, "глубина", "вынос", "depth"),
}

func (d dimension) strategies() []Strategy {
	return []Strategy{d.fromSpecs, d.fromText}
}

func (d dimension) fromSpecs(p *Page) string {
	for _, s := range p.Specs {
		for _, l := range d.labels {
			if s.Label != l {
				continue
			}
			m := leadingNumberRe.FindStringSubmatch(s.Value)
			if m == nil {
				continue
			}
			unit := s.Unit
			if u := unitAfter(s.Value, m[1]); u != "" {
				unit = u
			}
			return toMillimeters(m[1], unit)
		}
	}
	return ""
}

func (d dimension) fromText(p *Page) string {
	for _, corpus := range []string{p.CharsText, p.Text} {
		if corpus == "" {
			continue
		}
		if m := d.pattern.FindStringSubmatch(corpus); m != nil {
			unit := m[3]
			if unit == "" {
				unit = m[1]
			}
			return toMillimeters(m[2], unit)
		}
	}
	return ""
}

var unitAfterRe = regexp.MustCompile(`(?i)^\s*(мм|см|mm|cm|м|m)(?:[^\p{L}]|$)`)

func unitAfter(value, number string) string {
	i := strings.Index(value, number)
	if i < 0 {
		return ""
	}
	if m := unitAfterRe.FindStringSubmatch(value[i+len(number):]); m != nil {
		return m[1]
	}
	return ""
}

// toMillimeters converts a number in the given unit; no unit means millimeters.
func toMillimeters(number, unit string) string {
	f, err := strconv.ParseFloat(strings.Replace(number, ",", ".", 1), 64)
	if err != nil || f <= 0 {
		return ""
	}
	switch strings.ToLower(unit) {
	case "см", "cm":
		f *= 10
	case "м", "m":
		f *= 1000
	}
	return strconv.Itoa(int(math.Round(f)))
}
