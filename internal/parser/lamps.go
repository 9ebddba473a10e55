package parser

import (
	"regexp"
	"strings"
)

var (
	lampCountLabels = []string{
		"количество ламп", "кол-во ламп", "число ламп", "количество лампочек", "количество источников света",
		"количество плафонов", "number of bulbs", "number of lamps", "lamp count",
	}
	lampPowerLabels = []string{
		"мощность лампы", "мощность одной лампы", "мощность лампочки", "макс. мощность лампы",
		"максимальная мощность лампы", "lamp power", "bulb wattage",
	}
	totalPowerLabels = []string{"общая мощность", "суммарная мощность", "мощность общая", "total power", "total wattage"}
	socketLabels     = []string{"тип цоколя", "цоколь", "socket", "base type"}
	lampTypeLabels   = []string{"тип лампы", "тип ламп", "тип источника света", "источник света", "lamp type", "bulb type"}
	voltageLabels    = []string{"напряжение", "voltage"}
)

const socketCodePattern = `[eе]\d{2}|gu?\d+(?:\.\d)?|gx\d+`

var (
	// 5 x 40W, 5×E14×40 Вт. The count must stand alone so socket digits
	// ("E14 x 40W") are never read as a count.
	multiplyRe = regexp.MustCompile(`(?:^|[^\p{L}\p{N}.,])(\d{1,2})\s*[xх×*]\s*(?:` + socketCodePattern + `)?\s*[xх×*]?\s*(\d{1,3}(?:[.,]\d)?)\s*(?:w|вт)`)
	// E14 x 40W, GU10×50 Вт
	socketPowerRe     = regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(?:` + socketCodePattern + `)\s*[xх×*]\s*(\d{1,3}(?:[.,]\d)?)\s*(?:w|вт)`)
	lampCountTextRe   = regexp.MustCompile(`(?:количество ламп|кол-во ламп|число ламп|number of (?:bulbs|lamps))\s*[:\-]?\s*(\d{1,3})`)
	lampPowerTextRe   = regexp.MustCompile(`(?:мощность (?:одной )?лампы|lamp power)\s*,?\s*(?:вт|w)?\s*[:\-]?\s*(\d{1,4}(?:[.,]\d+)?)`)
	totalPowerTextRe  = regexp.MustCompile(`(?:общая|суммарная) мощность\s*,?\s*(?:вт|w)?\s*[:\-]?\s*(\d{1,5}(?:[.,]\d+)?)`)
	voltageTextRe     = regexp.MustCompile(`(?:напряжение|voltage)[^\d\n]{0,20}(\d{2,3})\s*(?:в|v)`)
	socketTokenRe     = regexp.MustCompile(`(?:^|[^A-Z0-9])(GU5\.3|GU10|GX53|E27|E14|G9|G4)(?:$|[^0-9])`)
	cyrillicSocketRep = strings.NewReplacer("Е", "E", "е", "E", "Х", "X", "х", "X")
)

var lampCountStrategies = []Strategy{
	mapped(specPrefix(lampCountLabels...), intValue),
	mapped(textMatch(lampCountTextRe, (*Page).ScopedLower), intValue),
	multiplyPart(1),
}

var lampPowerStrategies = []Strategy{
	mapped(specPrefix(lampPowerLabels...), intValue),
	mapped(textMatch(lampPowerTextRe, (*Page).ScopedLower), intValue),
	multiplyPart(2),
	mapped(textMatch(socketPowerRe, (*Page).ScopedLower), intValue),
}

var totalPowerStrategies = []Strategy{
	mapped(specPrefix(totalPowerLabels...), intValue),
	mapped(textMatch(totalPowerTextRe, (*Page).ScopedLower), intValue),
}

var socketStrategies = []Strategy{
	mapped(specPrefix(socketLabels...), socketType),
	mapped((*Page).ScopedText, socketType),
}

var lampTypeStrategies = []Strategy{
	mapped(specPrefix(lampTypeLabels...), lampType),
	mapped((*Page).ScopedLower, lampType),
}

var voltageStrategies = []Strategy{
	mapped(specPrefix(voltageLabels...), intValue),
	mapped(textMatch(voltageTextRe, (*Page).ScopedLower), intValue),
}

// multiplyPart reads lamp count (1) or per-lamp power (2) from an "N × W W" pattern.
func multiplyPart(group int) Strategy {
	return func(p *Page) string {
		if m := multiplyRe.FindStringSubmatch(p.ScopedLower()); m != nil {
			return intValue(m[group])
		}
		return ""
	}
}

// socketType returns the first known socket in s.
func socketType(s string) string {
	s = strings.ToUpper(cyrillicSocketRep.Replace(s))
	if m := socketTokenRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

var lampTypeKeywords = []struct {
	keyword  string
	lampType string
	// whole requires the keyword to be a complete word, so "ledron" is not LED.
	whole bool
}{
	{"светодиод", "LED", false},
	{"led", "LED", true},
	{"галоген", "Halogen", false},
	{"halogen", "Halogen", false},
	{"накаливан", "Incandescent", false},
	{"incandescent", "Incandescent", false},
	{"энергосбер", "Energy-saving", false},
	{"люминесцент", "Energy-saving", false},
	{"energy saving", "Energy-saving", false},
	{"cfl", "Energy-saving", true},
}

// lampType maps free text onto the lamp type enumeration.
func lampType(s string) string {
	lower := " " + strings.Join(words(s), " ") + " "
	for _, k := range lampTypeKeywords {
		needle := " " + strings.Join(words(k.keyword), " ")
		if k.whole {
			needle += " "
		}
		if strings.Contains(lower, needle) {
			return k.lampType
		}
	}
	return ""
}
