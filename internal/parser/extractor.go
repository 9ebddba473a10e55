package parser

import (
	"log/slog"

	"github.com/maltedev/lighting-importer/internal/metrics"
	"github.com/maltedev/lighting-importer/internal/models"
)

type fieldRule struct {
	field      string
	strategies []Strategy
}

// Extractor runs every field's strategy cascade over a normalized page.
type Extractor struct {
	rules  []fieldRule
	logger *slog.Logger
}

// NewExtractor creates an extractor that logs per-page misses at debug level.
func NewExtractor(logger *slog.Logger) *Extractor {
	rules := []fieldRule{
		{models.FieldName, nameStrategies},
		{models.FieldPrice, priceStrategies},
		{models.FieldBrand, brandStrategies},
		{models.FieldArticle, articleStrategies},
		{models.FieldDescription, descriptionStrategies},
		{models.FieldProductType, []Strategy{classifyProduct}},
		{models.FieldBrandCountry, brandCountryStrategies},
		{models.FieldManufacturerCountry, manufacturerCountryStrategies},
		{models.FieldCollection, collectionStrategies},
		{models.FieldStyle, styleStrategies},
		{models.FieldColor, colorStrategies},
		{models.FieldLampCount, lampCountStrategies},
		{models.FieldLampPower, lampPowerStrategies},
		{models.FieldTotalPower, totalPowerStrategies},
		{models.FieldSocketType, socketStrategies},
		{models.FieldLampType, lampTypeStrategies},
		{models.FieldVoltage, voltageStrategies},
		{models.FieldIPRating, ipRatingStrategies},
		{models.FieldAssemblyURL, []Strategy{assemblyInstruction}},
		{models.FieldInStock, []Strategy{availability}},
	}
	for _, d := range dimensions {
		rules = append(rules, fieldRule{d.field, d.strategies()})
	}
	for _, f := range features {
		rules = append(rules, fieldRule{f.field, []Strategy{f.detect}})
	}

	return &Extractor{
		rules:  rules,
		logger: logger.With("component", "extractor"),
	}
}

// Extract returns the raw fields found on the page. Fields no strategy could
// fill are absent; defaults are the assembler's job.
func (e *Extractor) Extract(p *Page) models.RawFields {
	fields := models.RawFields{}
	for _, r := range e.rules {
		fields.SetIfMissing(r.field, firstOf(p, r.strategies...))
	}

	main, additional := Images(p, models.MaxAdditionalImages)
	fields.SetIfMissing(models.FieldImageMain, main)
	fields.SetIfMissing(models.FieldImagesAdditional, additional)

	missing := fields.Missing(models.FieldName, models.FieldPrice, models.FieldBrand, models.FieldArticle, models.FieldImageMain)
	for _, f := range missing {
		metrics.FieldsMissing.WithLabelValues(f).Inc()
	}

	e.logger.Debug("fields extracted",
		"url", p.URL.String(),
		"found", len(fields),
		"missing_key_fields", missing)

	return fields
}
