package models

import "time"

// FieldViolation describes one schema constraint a record failed.
type FieldViolation struct {
	Field    string `json:"field"`
	Reason   string `json:"reason"`
	Observed string `json:"observed"`
}

// ValidationOutcome pairs a normalized record with its validation verdict.
// A rejected record carries every violated constraint, not just the first.
type ValidationOutcome struct {
	RecordIndex int              `json:"record_index"`
	Record      Product          `json:"record"`
	Accepted    bool             `json:"accepted"`
	Violations  []FieldViolation `json:"violations,omitempty"`
}

// RecordError is one per-field entry in the validation report artifact.
type RecordError struct {
	RecordIndex int    `json:"record_index"`
	ProductName string `json:"product_name"`
	Field       string `json:"field"`
	Reason      string `json:"reason"`
}

// ValidationReport is the serializable ledger for one source run.
type ValidationReport struct {
	Source            string        `json:"source"`
	PassedCount       int           `json:"passed_count"`
	FailedCount       int           `json:"failed_count"`
	DuplicatesDropped int           `json:"duplicates_dropped"`
	Errors            []RecordError `json:"errors"`
}

// CategoryStats aggregates accepted products of one category.
type CategoryStats struct {
	Count    int     `json:"count"`
	AvgPrice float64 `json:"avg_price"`
}

// PricePoint names a product and its price inside a top/bottom-N selection.
type PricePoint struct {
	ProductName  string  `json:"product_name"`
	CurrentPrice float64 `json:"current_price"`
}

// SourceSummary holds the per-source analytics computed over accepted
// records only. It is derived data, recomputed on every run.
type SourceSummary struct {
	Source             string                   `json:"source"`
	RunID              string                   `json:"run_id"`
	GeneratedAt        time.Time                `json:"generated_at"`
	Partial            bool                     `json:"partial,omitempty"`
	TotalProducts      int                      `json:"total_products"`
	ProductsOnDiscount int                      `json:"products_on_discount"`
	DiscountRatio      float64                  `json:"discount_ratio"`
	AveragePrice       float64                  `json:"average_price"`
	Categories         map[string]CategoryStats `json:"categories"`
	TopN               []PricePoint             `json:"top_n"`
	BottomN            []PricePoint             `json:"bottom_n"`
}

// SourceRank is one source's comparable figures inside a ComparisonReport.
type SourceRank struct {
	Source        string  `json:"source"`
	TotalProducts int     `json:"total_products"`
	CategoryCount int     `json:"category_count"`
	AveragePrice  float64 `json:"average_price"`
	DiscountCount int     `json:"discount_count"`
}

// ComparisonReport ranks sources against each other. It is a pure function
// of the summaries it was derived from.
type ComparisonReport struct {
	GeneratedAt     time.Time    `json:"generated_at"`
	Sources         []SourceRank `json:"sources"`
	ByTotalProducts []string     `json:"by_total_products"`
	ByCategoryCount []string     `json:"by_category_count"`
	ByAveragePrice  []string     `json:"by_average_price"`
	ByDiscountCount []string     `json:"by_discount_count"`
}
