package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-scraper/config"
	"market-scraper/render"
)

func listingPage(body string) *render.Page {
	return &render.Page{URL: "https://example.test/?page=1", Content: body}
}

const productTable = `
<html><body>
<div class="table-responsive">
  <table class="table">
    <thead>
      <tr><th>Назив на стока-производ</th><th>Продажна цена</th><th>Редовна цена</th></tr>
    </thead>
    <tbody>
      <tr><td>МЛЕКО СВЕЖО 1Л</td><td>79,00</td><td>89,00</td></tr>
      <tr><td>ЛЕБ БЕЛ 500Г</td><td>45,00</td><td>45,00</td></tr>
    </tbody>
  </table>
</div>
</body></html>`

func TestExtractTableRows(t *testing.T) {
	src := config.SourceConfig{
		Selectors: config.Selectors{Table: "div.table-responsive .table"},
	}

	rows, err := ExtractTableRows(listingPage(productTable), src)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "МЛЕКО СВЕЖО 1Л", rows[0]["назив_на_стока-производ"])
	assert.Equal(t, "79,00", rows[0]["продажна_цена"])
	assert.Equal(t, "45,00", rows[1]["редовна_цена"])
}

func TestExtractTableRowsNoTable(t *testing.T) {
	src := config.SourceConfig{
		Selectors: config.Selectors{Table: "div.table-responsive .table"},
	}

	rows, err := ExtractTableRows(listingPage("<html><body><p>nothing here</p></body></html>"), src)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Продажна цена", "продажна_цена"},
		{"Продажна цена\n(со ДДВ)", "продажна_цена_(со_ддв)"},
		{"  Назив на стока  ", "назив_на_стока"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeHeader(tt.in))
	}
}

func TestStructuralCheck(t *testing.T) {
	fm := config.FieldMap{Name: "name", CurrentPrice: "price"}

	tests := []struct {
		desc   string
		fields map[string]string
		reason structuralReject
		ok     bool
	}{
		{"valid row", map[string]string{"name": "Milk", "price": "79,00"}, "", true},
		{"empty name", map[string]string{"name": "  ", "price": "79,00"}, rejectEmptyName, false},
		{"punctuation-only name", map[string]string{"name": "***", "price": "79,00"}, rejectNoWordChars, false},
		{"cyrillic name is a word", map[string]string{"name": "Млеко", "price": "79,00"}, "", true},
		{"empty price", map[string]string{"name": "Milk", "price": ""}, rejectEmptyPrice, false},
		{"unparseable price", map[string]string{"name": "Milk", "price": "n/a"}, rejectInvalidPrice, false},
		{"zero price", map[string]string{"name": "Milk", "price": "0,00"}, rejectInvalidPrice, false},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			reason, ok := structuralCheck(tt.fields, fm)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestParseRoughPrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"79,00", 79, true},
		{"1.234,56 ден", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"79.50", 79.5, true},
		// The currency abbreviation's own dot must not survive stripping.
		{"79.50 ден.", 79.5, true},
		{"ден. 79,00", 79, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"ден.", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseRoughPrice(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if ok {
			assert.InDelta(t, tt.want, got, 0.001, tt.in)
		}
	}
}
