package assembler

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/maltedev/lighting-importer/internal/models"
)

// ErrUnrecoverable means neither a name nor a valid price could be found.
var ErrUnrecoverable = errors.New("name and price both unrecoverable")

// AssemblyError reports a page whose fields cannot form a record.
type AssemblyError struct {
	URL string
	Err error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assemble %s: %v", e.URL, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

var now = time.Now

var productTypes = map[models.ProductType]bool{
	models.TypeChandelier:        true,
	models.TypeCeilingChandelier: true,
	models.TypePendantChandelier: true,
	models.TypePendant:           true,
	models.TypeSconce:            true,
	models.TypeFloorLamp:         true,
	models.TypeTableLamp:         true,
	models.TypeCeilingLight:      true,
	models.TypeSpotlight:         true,
	models.TypeTrackLight:        true,
}

// Assemble coerces raw fields into a ProductRecord and fills defaults.
// Values that fail coercion are treated as absent. The only error is an
// *AssemblyError when neither a name nor a price can be recovered.
func Assemble(fields models.RawFields, sourceURL string) (*models.ProductRecord, error) {
	name := toString(fields[models.FieldName])
	price, hasPrice := toDecimal(fields[models.FieldPrice])
	if name == "" && !hasPrice {
		return nil, &AssemblyError{URL: sourceURL, Err: ErrUnrecoverable}
	}

	p := &models.ProductRecord{
		Name:        name,
		Price:       price,
		Brand:       toString(fields[models.FieldBrand]),
		Article:     toString(fields[models.FieldArticle]),
		Description: truncate(toString(fields[models.FieldDescription]), models.MaxDescriptionLength),
		ProductType: models.ProductType(toString(fields[models.FieldProductType])),

		BrandCountry:        toString(fields[models.FieldBrandCountry]),
		ManufacturerCountry: toString(fields[models.FieldManufacturerCountry]),
		Collection:          toString(fields[models.FieldCollection]),
		Style:               toString(fields[models.FieldStyle]),
		Color:               toString(fields[models.FieldColor]),

		LampCount:       toInt(fields[models.FieldLampCount]),
		SocketType:      toString(fields[models.FieldSocketType]),
		LampType:        toString(fields[models.FieldLampType]),
		LampPowerWatts:  toInt(fields[models.FieldLampPower]),
		TotalPowerWatts: toInt(fields[models.FieldTotalPower]),
		IPRating:        toString(fields[models.FieldIPRating]),

		Height:      toInt(fields[models.FieldHeight]),
		Diameter:    toInt(fields[models.FieldDiameter]),
		Length:      toInt(fields[models.FieldLength]),
		Width:       toInt(fields[models.FieldWidth]),
		Depth:       toInt(fields[models.FieldDepth]),
		ChainLength: toInt(fields[models.FieldChainLength]),

		HasRemote:      toBool(fields[models.FieldHasRemote], false),
		IsDimmable:     toBool(fields[models.FieldIsDimmable], false),
		HasColorChange: toBool(fields[models.FieldHasColorChange], false),

		AssemblyInstructionURL: toString(fields[models.FieldAssemblyURL]),

		InStock:    toBool(fields[models.FieldInStock], true),
		SourceURL:  sourceURL,
		ImportedAt: now().UTC(),
	}

	if p.Name == "" {
		p.Name = models.DefaultName
	}
	if p.Brand == "" {
		p.Brand = models.UnknownBrand
	}
	if !productTypes[p.ProductType] {
		p.ProductType = models.TypeChandelier
	}

	p.Voltage = models.DefaultVoltage
	if v := toInt(fields[models.FieldVoltage]); v != nil {
		p.Voltage = *v
	}

	p.Rating = models.DefaultRating
	if r, ok := toFloat(fields[models.FieldRating]); ok && r <= 5 {
		p.Rating = r
	}
	if n := toInt(fields[models.FieldReviewCount]); n != nil {
		p.ReviewCount = *n
	}

	if p.TotalPowerWatts == nil && p.LampCount != nil && p.LampPowerWatts != nil {
		total := *p.LampCount * *p.LampPowerWatts
		p.TotalPowerWatts = &total
	}

	p.ImageMain, p.ImagesAdditional = images(fields)

	return p, nil
}

func images(fields models.RawFields) (string, []string) {
	main := toString(fields[models.FieldImageMain])
	candidates := toStrings(fields[models.FieldImagesAdditional])

	if main == "" && len(candidates) > 0 {
		main, candidates = candidates[0], candidates[1:]
	}

	seen := map[string]bool{main: true}
	additional := make([]string, 0, models.MaxAdditionalImages)
	for _, img := range candidates {
		if len(additional) == models.MaxAdditionalImages {
			break
		}
		if img == "" || seen[img] {
			continue
		}
		seen[img] = true
		additional = append(additional, img)
	}
	return main, additional
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case int:
		return float64(t), true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return toFloat(f)
	}
	return 0, false
}

// toInt returns nil for anything that is not a positive number.
func toInt(v any) *int {
	f, ok := toFloat(v)
	if !ok || f <= 0 {
		return nil
	}
	n := int(math.Round(f))
	return &n
}

func toDecimal(v any) (decimal.Decimal, bool) {
	var (
		d   decimal.Decimal
		err error
	)
	switch t := v.(type) {
	case string:
		s := strings.NewReplacer(" ", "", "\u00a0", "", ",", ".").Replace(strings.TrimSpace(t))
		d, err = decimal.NewFromString(s)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		d = decimal.NewFromFloat(t)
	case int:
		d = decimal.NewFromInt(int64(t))
	default:
		return decimal.Zero, false
	}
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

func toBool(v any, fallback bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "да", "есть":
			return true
		case "false", "0", "no", "нет":
			return false
		}
	case float64:
		return t != 0
	}
	return fallback
}

func toStrings(v any) []string {
	var out []string
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range t {
			if s := toString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit]))
}
