package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-scraper/models"
)

func TestExtractMeasurement(t *testing.T) {
	tests := []struct {
		in       string
		unit     models.Unit
		standard float64
	}{
		{"Milk 1L", models.UnitVolume, 1},
		{"СОК ОД ПОРТОКАЛ 330МЛ", models.UnitVolume, 0.33},
		{"МАСЛО ЗА ЈАДЕЊЕ 1,5Л", models.UnitVolume, 1.5},
		{"МЛЕКО 1ЛТ", models.UnitVolume, 1},
		{"ВИНО 1 ЛИТАР", models.UnitVolume, 1},
		{"ЛЕБ БЕЛ 500Г", models.UnitWeight, 0.5},
		{"БРАШНО ТИП 400 1КГ", models.UnitWeight, 1},
		{"ОРИЗ 1КГР", models.UnitWeight, 1},
		{"ШЕЌЕР 1 КИЛОГРАМ", models.UnitWeight, 1},
		{"СИРЕЊЕ 200 ГРАМ", models.UnitWeight, 0.2},
		{"КАФЕ МЕЛЕНО 200 ГР", models.UnitWeight, 0.2},
		{"ЈАЈЦА 10КОМ", models.UnitCount, 10},
		{"ЈАЈЦА 10 БРОЈ", models.UnitCount, 10},
		{"ВЛОШКИ 20 ПАРЧЕ", models.UnitCount, 20},
		{"Eggs 6 kom", models.UnitCount, 6},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, ok := extractMeasurement(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.unit, m.Unit)
			assert.InDelta(t, tt.standard, m.StandardQuantity, 0.0001)
		})
	}
}

func TestExtractMeasurementNoMatch(t *testing.T) {
	for _, in := range []string{"ЛЕБ БЕЛ", "Сол морска", ""} {
		_, ok := extractMeasurement(in)
		assert.False(t, ok, in)
	}
}

func TestStripMeasurement(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"Milk 1L", "1L", "Milk"},
		{"СОК 330МЛ ПОРТОКАЛ", "330МЛ", "СОК ПОРТОКАЛ"},
		{"ЛЕБ БЕЛ", "", "ЛЕБ БЕЛ"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripMeasurement(tt.name, tt.token))
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"79,00", 79, true},
		{"79.50 ден.", 79.5, true},
		{"1.234,56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"", 0, false},
		{"нема", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePrice(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if ok {
			assert.InDelta(t, tt.want, got, 0.001, tt.in)
		}
	}
}

func TestParseSuppliedPPU(t *testing.T) {
	// A value equal to the current price is the site padding the column, not
	// a real unit price.
	_, ok := parseSuppliedPPU("79,00", 79)
	assert.False(t, ok)

	v, ok := parseSuppliedPPU("158,00", 79)
	require.True(t, ok)
	assert.InDelta(t, 158, v, 0.001)

	_, ok = parseSuppliedPPU("", 79)
	assert.False(t, ok)
}

func TestParseAvailability(t *testing.T) {
	for _, in := range []string{"ДА", "да", " Da ", "YES", "1"} {
		assert.True(t, parseAvailability(in), in)
	}
	for _, in := range []string{"НЕ", "NO", "", "0", "нема"} {
		assert.False(t, parseAvailability(in), in)
	}
}
