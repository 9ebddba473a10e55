package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRawFields_SetIfMissing(t *testing.T) {
	f := RawFields{}

	assert.True(t, f.SetIfMissing(FieldName, "Люстра Como"))
	assert.False(t, f.SetIfMissing(FieldName, "Люстра Bella"))
	assert.Equal(t, "Люстра Como", f[FieldName])

	assert.False(t, f.SetIfMissing(FieldBrand, "   "))
	assert.False(t, f.SetIfMissing(FieldImagesAdditional, []string{}))
	assert.False(t, f.Has(FieldBrand))

	f[FieldBrand] = ""
	assert.True(t, f.SetIfMissing(FieldBrand, "Maytoni"))
	assert.True(t, f.SetIfMissing(FieldHasRemote, false))
}

func TestRawFields_Merge(t *testing.T) {
	f := RawFields{FieldName: "Бра Eglo", FieldColor: ""}
	merged := f.Merge(RawFields{
		FieldName:  "Другое имя",
		FieldColor: "белый",
		FieldStyle: "модерн",
	})

	assert.ElementsMatch(t, []string{FieldColor, FieldStyle}, merged)
	assert.Equal(t, "Бра Eglo", f[FieldName])
	assert.Equal(t, "белый", f[FieldColor])
}

func TestRawFields_Missing(t *testing.T) {
	f := RawFields{FieldName: "Торшер", FieldLampCount: 3}
	assert.Equal(t, []string{FieldPrice, FieldBrand}, f.Missing(FieldName, FieldPrice, FieldLampCount, FieldBrand))
}

func TestProductRecord_Validate(t *testing.T) {
	valid := &ProductRecord{
		Name:             "Люстра",
		Price:            decimal.NewFromInt(100),
		ImageMain:        "https://shop.example/a.jpg",
		ImagesAdditional: []string{"https://shop.example/b.jpg"},
	}
	assert.Empty(t, valid.Validate())

	invalid := &ProductRecord{
		Price:     decimal.NewFromInt(-1),
		ImageMain: "https://shop.example/a.jpg",
		ImagesAdditional: []string{
			"https://shop.example/a.jpg",
			"https://shop.example/b.jpg",
			"https://shop.example/c.jpg",
			"https://shop.example/d.jpg",
			"https://shop.example/e.jpg",
			"https://shop.example/f.jpg",
		},
	}
	errs := invalid.Validate()
	assert.Contains(t, errs, "name is required")
	assert.Contains(t, errs, "price must not be negative")
	assert.Contains(t, errs, "too many additional images")
	assert.Contains(t, errs, "duplicate image: https://shop.example/a.jpg")
}
