package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"market-scraper/config"
	"market-scraper/render"
)

// ExtractFunc turns one rendered page into raw field maps, one per candidate
// row. The default parses a header/row product table; sources with unusual
// DOM shapes substitute their own extraction while reusing the rest of the
// crawler.
type ExtractFunc func(page *render.Page, src config.SourceConfig) ([]map[string]string, error)

// ExtractTableRows is the default extraction strategy: headers come from the
// table's "thead th" cells (normalized to snake_case) and each "tbody tr"
// becomes one field map.
func ExtractTableRows(page *render.Page, src config.SourceConfig) ([]map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Content))
	if err != nil {
		return nil, eris.Wrapf(err, "extract: parse page %s", page.URL)
	}

	table := doc.Find(src.Selectors.Table).First()
	if table.Length() == 0 {
		// No product table on the page: an exhausted listing, not an error.
		return nil, nil
	}

	var headers []string
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, normalizeHeader(th.Text()))
	})
	if len(headers) == 0 {
		return nil, nil
	}

	var rows []map[string]string
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		fields := make(map[string]string, len(headers))
		tr.Find("td").EachWithBreak(func(i int, td *goquery.Selection) bool {
			if i >= len(headers) {
				return false
			}
			fields[headers[i]] = strings.TrimSpace(td.Text())
			return true
		})
		if len(fields) > 0 {
			rows = append(rows, fields)
		}
	})

	return rows, nil
}

var headerSeparators = regexp.MustCompile(`[\s\n]+`)

// normalizeHeader turns a table header cell into the snake_case field name
// raw records are keyed by.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return headerSeparators.ReplaceAllString(h, "_")
}

// structuralReject explains why a candidate row was discarded before it ever
// became a RawRecord.
type structuralReject string

const (
	rejectEmptyName    structuralReject = "empty name"
	rejectNoWordChars  structuralReject = "name has no letters or digits"
	rejectEmptyPrice   structuralReject = "empty price"
	rejectInvalidPrice structuralReject = "price not a positive number"
)

// structuralCheck is the cheap pre-filter protecting downstream stages from
// rows that are not even minimally well-formed. It is deliberately weaker
// than schema validation.
func structuralCheck(fields map[string]string, fm config.FieldMap) (structuralReject, bool) {
	name := strings.TrimSpace(fields[fm.Name])
	if name == "" {
		return rejectEmptyName, false
	}
	if !containsWordChar(name) {
		return rejectNoWordChars, false
	}

	price := strings.TrimSpace(fields[fm.CurrentPrice])
	if price == "" {
		return rejectEmptyPrice, false
	}
	if v, ok := parseRoughPrice(price); !ok || v <= 0 {
		return rejectInvalidPrice, false
	}

	return "", true
}

func containsWordChar(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

var nonPriceChars = regexp.MustCompile(`[^\d,.]`)

// parseRoughPrice is the pre-filter's price check: strip everything but
// digits and separators, trim the stray separators currency markers leave at
// the edges, then read the last separator as the decimal mark. The full
// normalizer owns the authoritative parse.
func parseRoughPrice(s string) (float64, bool) {
	cleaned := strings.Trim(nonPriceChars.ReplaceAllString(s, ""), ".,")
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
