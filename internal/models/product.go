package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	UnknownBrand   = "unknown"
	DefaultName    = "Без названия"
	DefaultVoltage = 220
	DefaultRating  = 5.0

	MaxAdditionalImages  = 5
	MaxDescriptionLength = 500
)

// ProductType is the closed set of catalog categories.
type ProductType string

const (
	TypeChandelier        ProductType = "chandelier"
	TypeCeilingChandelier ProductType = "ceiling_chandelier"
	TypePendantChandelier ProductType = "pendant_chandelier"
	TypePendant           ProductType = "pendant"
	TypeSconce            ProductType = "sconce"
	TypeFloorLamp         ProductType = "floor_lamp"
	TypeTableLamp         ProductType = "table_lamp"
	TypeCeilingLight      ProductType = "ceiling_light"
	TypeSpotlight         ProductType = "spotlight"
	TypeTrackLight        ProductType = "track_light"
)

// ProductRecord is one normalized product built from a single source page.
type ProductRecord struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Brand       string          `json:"brand"`
	Article     string          `json:"article,omitempty"`
	Description string          `json:"description,omitempty"`
	ProductType ProductType     `json:"productType"`

	ImageMain        string   `json:"imageMain,omitempty"`
	ImagesAdditional []string `json:"imagesAdditional"`

	BrandCountry        string `json:"brandCountry,omitempty"`
	ManufacturerCountry string `json:"manufacturerCountry,omitempty"`
	Collection          string `json:"collection,omitempty"`
	Style               string `json:"style,omitempty"`
	Color               string `json:"color,omitempty"`

	LampCount       *int   `json:"lampCount,omitempty"`
	SocketType      string `json:"socketType,omitempty"`
	LampType        string `json:"lampType,omitempty"`
	LampPowerWatts  *int   `json:"lampPowerWatts,omitempty"`
	TotalPowerWatts *int   `json:"totalPowerWatts,omitempty"`
	Voltage         int    `json:"voltage"`
	IPRating        string `json:"ipRating,omitempty"`

	Height      *int `json:"height,omitempty"`
	Diameter    *int `json:"diameter,omitempty"`
	Length      *int `json:"length,omitempty"`
	Width       *int `json:"width,omitempty"`
	Depth       *int `json:"depth,omitempty"`
	ChainLength *int `json:"chainLength,omitempty"`

	HasRemote      bool `json:"hasRemote"`
	IsDimmable     bool `json:"isDimmable"`
	HasColorChange bool `json:"hasColorChange"`

	AssemblyInstructionURL string `json:"assemblyInstructionUrl,omitempty"`

	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"reviewCount"`
	InStock     bool    `json:"inStock"`

	SourceURL  string    `json:"sourceUrl"`
	ImportedAt time.Time `json:"importedAt"`
}

// Validate returns every violated record invariant.
func (p *ProductRecord) Validate() []string {
	var errors []string

	if p.Name == "" {
		errors = append(errors, "name is required")
	}

	if p.Price.IsNegative() {
		errors = append(errors, "price must not be negative")
	}

	if len(p.ImagesAdditional) > MaxAdditionalImages {
		errors = append(errors, "too many additional images")
	}

	seen := map[string]bool{p.ImageMain: p.ImageMain != ""}
	for _, img := range p.ImagesAdditional {
		if seen[img] {
			errors = append(errors, "duplicate image: "+img)
		}
		seen[img] = true
	}

	return errors
}

// FailedURL pairs a URL with the reason its import failed.
type FailedURL struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// ImportResult is the batch entry point response.
type ImportResult struct {
	Imported   int         `json:"imported"`
	Failed     int         `json:"failed"`
	FailedURLs []FailedURL `json:"failedUrls"`
}
