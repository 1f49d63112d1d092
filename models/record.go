package models

import "time"

// RawRecord holds one unprocessed product row exactly as extracted from a
// rendered page. Field names come from the page itself (table headers) and the
// values are untyped text. This is written to the raw artifact before any
// normalization.
type RawRecord struct {
	Fields    map[string]string `json:"fields"`
	SourceURL string            `json:"source_url"`
	PageIndex int               `json:"page_index"`
	Branch    string            `json:"branch,omitempty"`
	ScrapedAt time.Time         `json:"scraped_at"`
}

// Unit is the canonical measurement dimension of a product.
type Unit string

const (
	UnitWeight Unit = "weight"
	UnitVolume Unit = "volume"
	UnitCount  Unit = "count"
)

// Valid reports whether u is one of the three canonical dimensions.
func (u Unit) Valid() bool {
	switch u {
	case UnitWeight, UnitVolume, UnitCount:
		return true
	}
	return false
}

// Product is the typed, normalized record produced from one RawRecord.
// PricePerUnit is nil when neither the source nor the product name carries
// enough information to derive it.
type Product struct {
	ProductName        string   `json:"product_name"`
	CurrentPrice       float64  `json:"current_price"`
	PricePerUnit       *float64 `json:"price_per_unit"`
	Unit               Unit     `json:"unit"`
	Category           string   `json:"category"`
	DiscountPercentage float64  `json:"discount_percentage"`
	StoreLocation      string   `json:"store_location"`
}
