package services

import (
	"fmt"

	"go.uber.org/zap"

	"market-scraper/models"
)

// Validator applies the canonical product schema. It knows nothing about
// sources: every canonical record is judged by the same rules regardless of
// where it was scraped.
type Validator struct {
	log *zap.Logger
}

// NewValidator builds the source-agnostic schema validator.
func NewValidator(log *zap.Logger) *Validator {
	return &Validator{log: log.Named("validator")}
}

// ValidationResult carries the accepted, deduplicated records plus the full
// per-record verdicts and the serializable report.
type ValidationResult struct {
	Accepted []models.Product
	Outcomes []models.ValidationOutcome
	Report   models.ValidationReport
}

// Validate checks every product against the schema and deduplicates the
// survivors on (product name, store location), keeping the first occurrence.
func (v *Validator) Validate(source string, products []models.Product) *ValidationResult {
	res := &ValidationResult{
		Outcomes: make([]models.ValidationOutcome, 0, len(products)),
		Report:   models.ValidationReport{Source: source},
	}

	seen := make(map[string]struct{}, len(products))

	for i, p := range products {
		violations := checkRecord(p)
		outcome := models.ValidationOutcome{
			RecordIndex: i,
			Record:      p,
			Accepted:    len(violations) == 0,
			Violations:  violations,
		}
		res.Outcomes = append(res.Outcomes, outcome)

		if !outcome.Accepted {
			res.Report.FailedCount++
			for _, viol := range violations {
				res.Report.Errors = append(res.Report.Errors, models.RecordError{
					RecordIndex: i,
					ProductName: p.ProductName,
					Field:       viol.Field,
					Reason:      viol.Reason,
				})
			}
			continue
		}

		key := p.ProductName + "\x00" + p.StoreLocation
		if _, dup := seen[key]; dup {
			res.Report.DuplicatesDropped++
			continue
		}
		seen[key] = struct{}{}

		res.Report.PassedCount++
		res.Accepted = append(res.Accepted, p)
	}

	v.log.Info("validation complete",
		zap.String("source", source),
		zap.Int("passed", res.Report.PassedCount),
		zap.Int("failed", res.Report.FailedCount),
		zap.Int("duplicates_dropped", res.Report.DuplicatesDropped))
	return res
}

// checkRecord enumerates every schema violation in a record, not just the
// first, so a report reader sees the whole picture at once.
func checkRecord(p models.Product) []models.FieldViolation {
	var violations []models.FieldViolation
	add := func(field, reason, observed string) {
		violations = append(violations, models.FieldViolation{Field: field, Reason: reason, Observed: observed})
	}

	if p.ProductName == "" {
		add("product_name", "must not be empty", "")
	}
	if p.CurrentPrice <= 0 {
		add("current_price", "must be > 0", fmt.Sprintf("%g", p.CurrentPrice))
	}
	if p.PricePerUnit != nil && *p.PricePerUnit <= 0 {
		add("price_per_unit", "must be > 0 when present", fmt.Sprintf("%g", *p.PricePerUnit))
	}
	if !p.Unit.Valid() {
		add("unit", "must be one of weight, volume, count", string(p.Unit))
	}
	if p.DiscountPercentage < 0 || p.DiscountPercentage > 100 {
		add("discount_percentage", "must be within [0, 100]", fmt.Sprintf("%g", p.DiscountPercentage))
	}
	if p.StoreLocation == "" {
		add("store_location", "must not be empty", "")
	}

	return violations
}
