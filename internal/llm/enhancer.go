package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/maltedev/lighting-importer/internal/metrics"
	"github.com/maltedev/lighting-importer/internal/models"
	"github.com/maltedev/lighting-importer/internal/parser"
)

// ErrNoJSON means the model answer held no decodable JSON object.
var ErrNoJSON = errors.New("response is not a JSON object")

// LLMError is never fatal: callers log it and keep the regex-only fields.
type LLMError struct {
	URL string
	Err error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm enhancement for %s: %v", e.URL, e.Err)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

const systemPrompt = `You extract lighting product data from an HTML fragment of a product page.
Answer with a single JSON object and nothing else. Use null for anything the page does not state.
Schema:
{
  "name": string,
  "price": number,
  "brand": string,
  "article": string,
  "description": string (max 500 chars, no prices or calls to action),
  "productType": one of "chandelier","ceiling_chandelier","pendant_chandelier","pendant","sconce","floor_lamp","table_lamp","ceiling_light","spotlight","track_light",
  "brandCountry": string,
  "manufacturerCountry": string,
  "collection": string,
  "style": string,
  "color": string,
  "lampCount": integer,
  "socketType": one of "E27","E14","GU10","GU5.3","G9","G4","GX53",
  "lampType": one of "LED","Halogen","Incandescent","Energy-saving",
  "lampPowerWatts": integer,
  "totalPowerWatts": integer,
  "voltage": integer,
  "height": integer millimeters,
  "diameter": integer millimeters,
  "length": integer millimeters,
  "width": integer millimeters,
  "depth": integer millimeters,
  "chainLength": integer millimeters,
  "hasRemote": boolean,
  "isDimmable": boolean,
  "hasColorChange": boolean
}`

// enumerations restrict the values accepted for enum-like fields.
var enumerations = map[string]map[string]bool{
	models.FieldProductType: {
		"chandelier": true, "ceiling_chandelier": true, "pendant_chandelier": true, "pendant": true,
		"sconce": true, "floor_lamp": true, "table_lamp": true, "ceiling_light": true,
		"spotlight": true, "track_light": true,
	},
	models.FieldSocketType: {"E27": true, "E14": true, "GU10": true, "GU5.3": true, "G9": true, "G4": true, "GX53": true},
	models.FieldLampType:   {"LED": true, "Halogen": true, "Incandescent": true, "Energy-saving": true},
}

var acceptedFields = map[string]bool{
	models.FieldName: true, models.FieldPrice: true, models.FieldBrand: true, models.FieldArticle: true,
	models.FieldDescription: true, models.FieldProductType: true, models.FieldBrandCountry: true,
	models.FieldManufacturerCountry: true, models.FieldCollection: true, models.FieldStyle: true,
	models.FieldColor: true, models.FieldLampCount: true, models.FieldSocketType: true,
	models.FieldLampType: true, models.FieldLampPower: true, models.FieldTotalPower: true,
	models.FieldVoltage: true, models.FieldHeight: true, models.FieldDiameter: true,
	models.FieldLength: true, models.FieldWidth: true, models.FieldDepth: true,
	models.FieldChainLength: true, models.FieldHasRemote: true, models.FieldIsDimmable: true,
	models.FieldHasColorChange: true,
}

var placeholderValues = map[string]bool{
	"unknown": true, "null": true, "n/a": true, "none": true, "не указано": true, "нет данных": true, "-": true,
}

// stringChecks are plausibility filters for free-text answers, shared with
// the page extractors.
var stringChecks = map[string]func(string) bool{
	models.FieldBrand: parser.PlausibleBrand,
}

// Enhancer fills fields the extractors missed by asking a language model
// about the page.
type Enhancer struct {
	completer Completer
	timeout   time.Duration
	logger    *slog.Logger
}

// NewEnhancer wraps a completer. A non-positive timeout means 25 seconds.
func NewEnhancer(completer Completer, timeout time.Duration, logger *slog.Logger) *Enhancer {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Enhancer{
		completer: completer,
		timeout:   timeout,
		logger:    logger.With("component", "llm_enhancer"),
	}
}

// Enhance asks the model for the page's fields. The call gets its own
// timeout, independent of the fetch. Any failure comes back as *LLMError.
func (e *Enhancer) Enhance(ctx context.Context, page *parser.Page) (models.RawFields, error) {
	pageURL := page.URL.String()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	content := fmt.Sprintf("Page URL: %s\nTitle: %s\n\n%s", pageURL, page.Name(), page.LLMInput())

	start := time.Now()
	raw, err := e.completer.Complete(ctx, systemPrompt, content)
	if err != nil {
		metrics.LLMRequests.WithLabelValues("error").Inc()
		return nil, &LLMError{URL: pageURL, Err: err}
	}

	fields, err := ParseResponse(raw)
	if err != nil {
		metrics.LLMRequests.WithLabelValues("invalid_json").Inc()
		return nil, &LLMError{URL: pageURL, Err: err}
	}
	metrics.LLMRequests.WithLabelValues("ok").Inc()

	e.logger.Debug("llm fields received",
		"url", pageURL,
		"fields", len(fields),
		"duration", time.Since(start))

	return fields, nil
}

var (
	fenceOpenRe  = regexp.MustCompile("^```[a-zA-Z]*\\s*")
	fenceCloseRe = regexp.MustCompile("\\s*```$")
)

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpenRe.ReplaceAllString(s, "")
	s = fenceCloseRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseResponse decodes a model answer into raw fields, dropping unknown
// keys, nulls, placeholders, values outside the enumerations and brands
// that fail PlausibleBrand.
func ParseResponse(raw string) (models.RawFields, error) {
	body := StripCodeFence(raw)
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	} else {
		return nil, ErrNoJSON
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}

	fields := models.RawFields{}
	for key, value := range decoded {
		if !acceptedFields[key] {
			continue
		}
		switch v := value.(type) {
		case nil:
			continue
		case string:
			v = strings.TrimSpace(v)
			if v == "" || placeholderValues[strings.ToLower(v)] {
				continue
			}
			if allowed, ok := enumerations[key]; ok && !allowed[v] {
				continue
			}
			if check, ok := stringChecks[key]; ok && !check(v) {
				continue
			}
			fields[key] = v
		case float64:
			if v < 0 {
				continue
			}
			fields[key] = v
		case bool:
			fields[key] = v
		}
	}
	return fields, nil
}
