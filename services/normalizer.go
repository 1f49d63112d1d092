// Package services holds the record-level pipeline stages: normalization of
// raw field maps into canonical products, schema validation, and aggregation
// into summaries and cross-source comparisons.
package services

import (
	"strings"

	"go.uber.org/zap"

	"market-scraper/config"
	"market-scraper/models"
)

// CategoryFunc resolves a product's category from its supplied category
// field and cleaned name.
type CategoryFunc func(supplied, name string) string

// LocationFunc resolves the store location for a record.
type LocationFunc func(rec models.RawRecord) string

// SkipFunc decides whether a raw record should be skipped before any field
// work happens. It returns the skip reason, or "" to keep the record.
type SkipFunc func(rec models.RawRecord) string

// Normalizer converts raw records into canonical products. Each resolution
// step is a substitutable hook so a source with unusual semantics can
// override one step without rewriting the whole stage.
type Normalizer struct {
	src      config.SourceConfig
	log      *zap.Logger
	category CategoryFunc
	location LocationFunc
	skip     SkipFunc
}

// NormalizerOption customizes a Normalizer.
type NormalizerOption func(*Normalizer)

// WithCategoryFunc replaces the default category resolution.
func WithCategoryFunc(f CategoryFunc) NormalizerOption {
	return func(n *Normalizer) { n.category = f }
}

// WithLocationFunc replaces the default store-location resolution.
func WithLocationFunc(f LocationFunc) NormalizerOption {
	return func(n *Normalizer) { n.location = f }
}

// WithSkipFunc replaces the default pre-normalization skip check.
func WithSkipFunc(f SkipFunc) NormalizerOption {
	return func(n *Normalizer) { n.skip = f }
}

// NewNormalizer builds a Normalizer for one source with the default
// resolution strategies.
func NewNormalizer(src config.SourceConfig, log *zap.Logger, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		src: src,
		log: log.Named("normalizer").With(zap.String("source", src.Name)),
	}
	n.category = n.defaultCategory
	n.location = n.defaultLocation
	n.skip = n.defaultSkip
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NormalizeStats accounts for every input record: each one is produced,
// skipped, or failed.
type NormalizeStats struct {
	Input    int `json:"input"`
	Produced int `json:"produced"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Normalize converts the raw stream into canonical products. Records that
// fail to normalize are dropped with a logged reason; they never poison the
// rest of the batch.
func (n *Normalizer) Normalize(raw []models.RawRecord) ([]models.Product, NormalizeStats) {
	stats := NormalizeStats{Input: len(raw)}
	products := make([]models.Product, 0, len(raw))

	for i, rec := range raw {
		if reason := n.skip(rec); reason != "" {
			stats.Skipped++
			n.log.Debug("record skipped", zap.Int("index", i), zap.String("reason", reason))
			continue
		}

		p, err := n.NormalizeRecord(rec)
		if err != nil {
			stats.Failed++
			n.log.Warn("record failed normalization",
				zap.Int("index", i),
				zap.String("name", rec.Fields[n.src.Fields.Name]),
				zap.Error(err))
			continue
		}
		products = append(products, *p)
		stats.Produced++
	}

	n.log.Info("normalization complete",
		zap.Int("input", stats.Input),
		zap.Int("produced", stats.Produced),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	return products, stats
}

// NormalizeRecord converts one raw record. The returned error is a
// *models.NormalizationError naming the offending field.
func (n *Normalizer) NormalizeRecord(rec models.RawRecord) (*models.Product, error) {
	fm := n.src.Fields

	rawName := strings.TrimSpace(rec.Fields[fm.Name])
	if rawName == "" {
		return nil, &models.NormalizationError{Field: "product_name", Reason: "missing"}
	}

	current, ok := parsePrice(rec.Fields[fm.CurrentPrice])
	if !ok {
		return nil, &models.NormalizationError{Field: "current_price", Reason: "unparseable value " + rec.Fields[fm.CurrentPrice]}
	}
	if current <= 0 {
		return nil, &models.NormalizationError{Field: "current_price", Reason: "not positive"}
	}

	// Measurement precedence: the product name, then the source's unit-price
	// field, then one piece.
	meas, found := extractMeasurement(rawName)
	name := rawName
	if found {
		name = stripMeasurement(rawName, meas.Token)
		if name == "" {
			name = rawName
		}
	} else if fm.PricePerUnit != "" {
		meas, found = extractMeasurement(rec.Fields[fm.PricePerUnit])
	}

	var ppu *float64
	switch {
	case found:
		v := round2(current / meas.StandardQuantity)
		ppu = &v
	default:
		meas = defaultMeasurement()
		if fm.PricePerUnit != "" {
			if v, ok := parseSuppliedPPU(rec.Fields[fm.PricePerUnit], current); ok {
				v = round2(v)
				ppu = &v
				break
			}
		}
		v := round2(current)
		ppu = &v
	}

	discount := 0.0
	if fm.RegularPrice != "" {
		if regular, ok := parsePrice(rec.Fields[fm.RegularPrice]); ok && regular > 0 && current < regular {
			discount = round2(100 * (regular - current) / regular)
			if discount > 100 {
				discount = 100
			}
		}
	}

	return &models.Product{
		ProductName:        name,
		CurrentPrice:       round2(current),
		PricePerUnit:       ppu,
		Unit:               meas.Unit,
		Category:           n.category(rec.Fields[fm.Category], name),
		DiscountPercentage: discount,
		StoreLocation:      n.location(rec),
	}, nil
}

// defaultCategory prefers a supplied category, falls back to keyword
// matching on the cleaned name, then to the source's default.
func (n *Normalizer) defaultCategory(supplied, name string) string {
	if c := strings.TrimSpace(supplied); c != "" {
		return c
	}
	lower := strings.ToLower(name)
	for keyword, category := range n.src.CategoryKeywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return category
		}
	}
	return n.src.DefaultCategory
}

// defaultLocation maps the record's store field through the source's
// location table, falling back to the branch the record came from.
func (n *Normalizer) defaultLocation(rec models.RawRecord) string {
	key := strings.TrimSpace(rec.Fields[n.src.Fields.Store])
	if key == "" {
		key = rec.Branch
	}
	if mapped, ok := n.src.LocationMap[key]; ok {
		return mapped
	}
	if key != "" {
		return key
	}
	return "Unknown Location"
}

// defaultSkip drops records marked unavailable when the source filters them.
func (n *Normalizer) defaultSkip(rec models.RawRecord) string {
	if !n.src.FilterUnavailable || n.src.Fields.Availability == "" {
		return ""
	}
	if !parseAvailability(rec.Fields[n.src.Fields.Availability]) {
		return "unavailable"
	}
	return ""
}
