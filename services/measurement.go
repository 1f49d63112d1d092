package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"market-scraper/models"
)

// measurement is a parsed quantity declaration, converted to its base unit
// (grams, milliliters, or pieces) together with the kind of unit.
type measurement struct {
	Quantity float64
	Unit     models.Unit
	// StandardQuantity is the quantity expressed in the pricing base:
	// kilograms for weight, liters for volume, pieces for count.
	StandardQuantity float64
	// Token is the exact substring that matched in the source text, used to
	// strip the size declaration out of the product name.
	Token string
}

// unitPattern recognizes one family of unit suffixes. Alternatives are
// ordered longest-first so e.g. "МЛ" wins over "Л".
type unitPattern struct {
	re         *regexp.Regexp
	unit       models.Unit
	multiplier float64
}

// Listings mix Cyrillic and Latin unit spellings freely, sometimes within
// one source. The quantity may use either comma or dot decimals. The trailing
// class stands in for \b, which is ASCII-only and so useless after Cyrillic.
func unitRe(alts string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(` + alts + `)([^\p{L}\p{N}]|$)`)
}

var unitPatterns = []unitPattern{
	// Volume, converted to milliliters. Longer spellings come first so e.g.
	// "ЛТ" never half-matches as "Л".
	{unitRe(`МЛ|ML`), models.UnitVolume, 1},
	{unitRe(`ЛИТРИ|ЛИТАР|ЛТ|LT`), models.UnitVolume, 1000},
	{unitRe(`Л|L`), models.UnitVolume, 1000},
	// Weight, converted to grams.
	{unitRe(`КИЛОГРАМИ|КИЛОГРАМ|КГР|КГ|KG`), models.UnitWeight, 1000},
	{unitRe(`ГРАМОВИ|ГРАМ|ГР|GR`), models.UnitWeight, 1},
	{unitRe(`Г|G`), models.UnitWeight, 1},
	// Count.
	{unitRe(`ПАРЧЕ|PARCHE|PARCE|ПАР|PAR`), models.UnitCount, 1},
	{unitRe(`КОМ|KOM|БРОЈ|PCS|PC`), models.UnitCount, 1},
}

// baseDivisor maps a unit kind to the factor between its base unit and the
// pricing base (grams per kilogram, milliliters per liter).
func baseDivisor(u models.Unit) float64 {
	switch u {
	case models.UnitWeight, models.UnitVolume:
		return 1000
	default:
		return 1
	}
}

// extractMeasurement finds the first recognizable quantity declaration in a
// name or measurement field. The second return is false when no pattern
// matches.
func extractMeasurement(text string) (measurement, bool) {
	sanitized := strings.NewReplacer(",", ".", "/", " ").Replace(text)

	for _, p := range unitPatterns {
		loc := p.re.FindStringSubmatchIndex(sanitized)
		if loc == nil {
			continue
		}
		qtyStr := sanitized[loc[2]:loc[3]]
		qty, err := strconv.ParseFloat(qtyStr, 64)
		if err != nil || qty <= 0 {
			continue
		}
		base := qty * p.multiplier
		return measurement{
			Quantity:         base,
			Unit:             p.unit,
			StandardQuantity: base / baseDivisor(p.unit),
			// Token ends at the unit group so the trailing delimiter, when
			// one was matched, stays in the name.
			Token: text[loc[0]:loc[5]],
		}, true
	}
	return measurement{}, false
}

// defaultMeasurement is assumed when a product declares no quantity: one
// piece.
func defaultMeasurement() measurement {
	return measurement{Quantity: 1, Unit: models.UnitCount, StandardQuantity: 1}
}

var (
	nonNumeric     = regexp.MustCompile(`[^\d,.]`)
	firstNumber    = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// parsePrice extracts a monetary amount from free-form listing text. Both
// "1.234,56" and "1,234.56" styles appear in the wild; when both separators
// are present the last one is the decimal mark, a lone comma is always one.
// Currency markers like "ден." leave stray separators behind, so the edges
// are trimmed before separator resolution.
func parsePrice(text string) (float64, bool) {
	cleaned := strings.Trim(nonNumeric.ReplaceAllString(text, ""), ".,")
	if cleaned == "" {
		return 0, false
	}
	switch ci, di := strings.LastIndex(cleaned, ","), strings.LastIndex(cleaned, "."); {
	case ci >= 0 && di >= 0 && ci > di:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case ci >= 0 && di >= 0:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	default:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseSuppliedPPU reads a source-provided unit price field. Some sources
// repeat the current price in this column when they have no real unit price;
// such values are treated as absent.
func parseSuppliedPPU(text string, currentPrice float64) (float64, bool) {
	m := firstNumber.FindString(strings.ReplaceAll(text, ",", "."))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if currentPrice > 0 && math.Abs(v-currentPrice) < 0.005 {
		return 0, false
	}
	return v, true
}

// stripMeasurement removes the matched size token from a product name and
// collapses the whitespace left behind.
func stripMeasurement(name, token string) string {
	if token == "" {
		return strings.TrimSpace(name)
	}
	out := strings.Replace(name, token, " ", 1)
	out = whitespaceRuns.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

var availabilityYes = map[string]struct{}{
	"ДА": {}, "DA": {}, "YES": {}, "Y": {}, "TRUE": {}, "1": {},
}

// parseAvailability reads a stock indicator column. Anything not positively
// affirmative counts as unavailable.
func parseAvailability(text string) bool {
	_, ok := availabilityYes[strings.ToUpper(strings.TrimSpace(text))]
	return ok
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
