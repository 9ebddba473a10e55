package models

import "strings"

// Raw field keys shared by extractors, the LLM enhancer and the assembler.
const (
	FieldName                = "name"
	FieldPrice               = "price"
	FieldBrand               = "brand"
	FieldArticle             = "article"
	FieldDescription         = "description"
	FieldProductType         = "productType"
	FieldImageMain           = "imageMain"
	FieldImagesAdditional    = "imagesAdditional"
	FieldBrandCountry        = "brandCountry"
	FieldManufacturerCountry = "manufacturerCountry"
	FieldCollection          = "collection"
	FieldStyle               = "style"
	FieldColor               = "color"
	FieldLampCount           = "lampCount"
	FieldSocketType          = "socketType"
	FieldLampType            = "lampType"
	FieldLampPower           = "lampPowerWatts"
	FieldTotalPower          = "totalPowerWatts"
	FieldVoltage             = "voltage"
	FieldIPRating            = "ipRating"
	FieldHeight              = "height"
	FieldDiameter            = "diameter"
	FieldLength              = "length"
	FieldWidth               = "width"
	FieldDepth               = "depth"
	FieldChainLength         = "chainLength"
	FieldHasRemote           = "hasRemote"
	FieldIsDimmable          = "isDimmable"
	FieldHasColorChange      = "hasColorChange"
	FieldAssemblyURL         = "assemblyInstructionUrl"
	FieldInStock             = "inStock"
	FieldRating              = "rating"
	FieldReviewCount         = "reviewCount"
)

// DimensionFields lists the millimeter-valued fields.
var DimensionFields = []string{
	FieldHeight, FieldDiameter, FieldLength, FieldWidth, FieldDepth, FieldChainLength,
}

// RawFields accumulates uncoerced field values. Values are strings, numbers,
// booleans or string slices; the first non-empty value set for a key wins.
type RawFields map[string]any

// Has reports whether key holds a non-empty value.
func (f RawFields) Has(key string) bool {
	return !isEmpty(f[key])
}

// SetIfMissing stores value under key unless a non-empty value is already present.
func (f RawFields) SetIfMissing(key string, value any) bool {
	if isEmpty(value) || f.Has(key) {
		return false
	}
	f[key] = value
	return true
}

// Merge copies every field of other that f lacks and returns the merged keys.
func (f RawFields) Merge(other RawFields) []string {
	var merged []string
	for key, value := range other {
		if f.SetIfMissing(key, value) {
			merged = append(merged, key)
		}
	}
	return merged
}

// Missing returns the keys from the given list that have no value.
func (f RawFields) Missing(keys ...string) []string {
	var missing []string
	for _, key := range keys {
		if !f.Has(key) {
			missing = append(missing, key)
		}
	}
	return missing
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}
