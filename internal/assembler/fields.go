package assembler

import (
	"strconv"

	"github.com/maltedev/lighting-importer/internal/models"
)

// Fields is the inverse of Assemble: it flattens a record back into raw
// fields, leaving out empty optionals.
func Fields(p *models.ProductRecord) models.RawFields {
	f := models.RawFields{
		models.FieldName:        p.Name,
		models.FieldPrice:       p.Price.String(),
		models.FieldBrand:       p.Brand,
		models.FieldProductType: string(p.ProductType),
		models.FieldVoltage:     strconv.Itoa(p.Voltage),
		models.FieldHasRemote:   p.HasRemote,
		models.FieldIsDimmable:  p.IsDimmable,
		models.FieldInStock:     p.InStock,
		models.FieldRating:      p.Rating,
		models.FieldReviewCount: p.ReviewCount,

		models.FieldHasColorChange: p.HasColorChange,
	}

	strs := map[string]string{
		models.FieldArticle:             p.Article,
		models.FieldDescription:         p.Description,
		models.FieldImageMain:           p.ImageMain,
		models.FieldBrandCountry:        p.BrandCountry,
		models.FieldManufacturerCountry: p.ManufacturerCountry,
		models.FieldCollection:          p.Collection,
		models.FieldStyle:               p.Style,
		models.FieldColor:               p.Color,
		models.FieldSocketType:          p.SocketType,
		models.FieldLampType:            p.LampType,
		models.FieldIPRating:            p.IPRating,
		models.FieldAssemblyURL:         p.AssemblyInstructionURL,
	}
	for key, value := range strs {
		f.SetIfMissing(key, value)
	}

	ints := map[string]*int{
		models.FieldLampCount:   p.LampCount,
		models.FieldLampPower:   p.LampPowerWatts,
		models.FieldTotalPower:  p.TotalPowerWatts,
		models.FieldHeight:      p.Height,
		models.FieldDiameter:    p.Diameter,
		models.FieldLength:      p.Length,
		models.FieldWidth:       p.Width,
		models.FieldDepth:       p.Depth,
		models.FieldChainLength: p.ChainLength,
	}
	for key, value := range ints {
		if value != nil {
			f[key] = strconv.Itoa(*value)
		}
	}

	if len(p.ImagesAdditional) > 0 {
		f[models.FieldImagesAdditional] = append([]string(nil), p.ImagesAdditional...)
	}
	return f
}
