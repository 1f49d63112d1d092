package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market-scraper/config"
	"market-scraper/models"
)

func normSource() config.SourceConfig {
	return config.SourceConfig{
		Name: "testmart",
		Fields: config.FieldMap{
			Name:         "name",
			CurrentPrice: "current",
			RegularPrice: "regular",
			Category:     "category",
			PricePerUnit: "ppu",
			Availability: "available",
		},
		CategoryKeywords: map[string]string{"milk": "Dairy", "млеко": "Dairy"},
		DefaultCategory:  "Uncategorized",
		LocationMap:      map[string]string{"89": "Vero Centar"},
	}
}

func rawRec(fields map[string]string) models.RawRecord {
	return models.RawRecord{Fields: fields, Branch: "89"}
}

func TestNormalizeRecordMilkScenario(t *testing.T) {
	n := NewNormalizer(normSource(), zap.NewNop())

	p, err := n.NormalizeRecord(rawRec(map[string]string{
		"name":    "Milk 1L",
		"current": "60,00",
		"regular": "70,00",
	}))
	require.NoError(t, err)

	assert.Equal(t, "Milk", p.ProductName)
	assert.InDelta(t, 60, p.CurrentPrice, 0.001)
	assert.Equal(t, models.UnitVolume, p.Unit)
	require.NotNil(t, p.PricePerUnit)
	assert.InDelta(t, 60, *p.PricePerUnit, 0.001)
	assert.InDelta(t, 14.29, p.DiscountPercentage, 0.001)
	assert.Equal(t, "Dairy", p.Category)
	assert.Equal(t, "Vero Centar", p.StoreLocation)
}

func TestNormalizeRecordWeightPPU(t *testing.T) {
	n := NewNormalizer(normSource(), zap.NewNop())

	p, err := n.NormalizeRecord(rawRec(map[string]string{
		"name":    "ЛЕБ БЕЛ 500Г",
		"current": "45,00",
	}))
	require.NoError(t, err)

	assert.Equal(t, "ЛЕБ БЕЛ", p.ProductName)
	assert.Equal(t, models.UnitWeight, p.Unit)
	require.NotNil(t, p.PricePerUnit)
	// 45 denars for half a kilo prices the kilo at 90.
	assert.InDelta(t, 90, *p.PricePerUnit, 0.001)
	assert.Zero(t, p.DiscountPercentage)
}

func TestNormalizeRecordNoMeasurementDefaultsToPiece(t *testing.T) {
	n := NewNormalizer(normSource(), zap.NewNop())

	p, err := n.NormalizeRecord(rawRec(map[string]string{
		"name":    "Сол морска",
		"current": "25,00",
	}))
	require.NoError(t, err)

	assert.Equal(t, "Сол морска", p.ProductName)
	assert.Equal(t, models.UnitCount, p.Unit)
	require.NotNil(t, p.PricePerUnit)
	assert.InDelta(t, 25, *p.PricePerUnit, 0.001)
}

func TestNormalizeRecordSuppliedCategoryWins(t *testing.T) {
	n := NewNormalizer(normSource(), zap.NewNop())

	p, err := n.NormalizeRecord(rawRec(map[string]string{
		"name":     "Milk 1L",
		"current":  "60,00",
		"category": "Beverages",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Beverages", p.Category)
}

func TestNormalizeRecordDefaultCategory(t *testing.T) {
	n := NewNormalizer(normSource(), zap.NewNop())

	p, err := n.NormalizeRecord(rawRec(map[string]string{
		"name":    "Шрафцигер",
		"current": "199,00",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Uncategorized", p.Category)
}

func TestNormalizeRecordBadPrice(t *testing.T) {
	n := NewNormalizer(normSource(), zap.NewNop())

	for _, price := range []string{"", "нема", "0,00"} {
		_, err := n.NormalizeRecord(rawRec(map[string]string{
			"name":    "Milk 1L",
			"current": price,
		}))
		require.Error(t, err, price)
		var ne *models.NormalizationError
		assert.ErrorAs(t, err, &ne)
		assert.Equal(t, "current_price", ne.Field)
	}
}

func TestNormalizeRecordDiscountOnlyWhenCheaper(t *testing.T) {
	n := NewNormalizer(normSource(), zap.NewNop())

	// Regular price at or below the current price means no discount.
	p, err := n.NormalizeRecord(rawRec(map[string]string{
		"name":    "Milk 1L",
		"current": "70,00",
		"regular": "70,00",
	}))
	require.NoError(t, err)
	assert.Zero(t, p.DiscountPercentage)

	p, err = n.NormalizeRecord(rawRec(map[string]string{
		"name":    "Milk 1L",
		"current": "80,00",
		"regular": "70,00",
	}))
	require.NoError(t, err)
	assert.Zero(t, p.DiscountPercentage)
}

func TestNormalizeFiltersUnavailable(t *testing.T) {
	src := normSource()
	src.FilterUnavailable = true
	n := NewNormalizer(src, zap.NewNop())

	products, stats := n.Normalize([]models.RawRecord{
		rawRec(map[string]string{"name": "Milk 1L", "current": "60,00", "available": "ДА"}),
		rawRec(map[string]string{"name": "Bread 500g", "current": "45,00", "available": "НЕ"}),
	})

	assert.Len(t, products, 1)
	assert.Equal(t, 2, stats.Input)
	assert.Equal(t, 1, stats.Produced)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Failed)
}

func TestNormalizeCountsFailures(t *testing.T) {
	n := NewNormalizer(normSource(), zap.NewNop())

	products, stats := n.Normalize([]models.RawRecord{
		rawRec(map[string]string{"name": "Milk 1L", "current": "60,00"}),
		rawRec(map[string]string{"name": "Broken", "current": "нема"}),
	})

	assert.Len(t, products, 1)
	assert.Equal(t, 1, stats.Produced)
	assert.Equal(t, 1, stats.Failed)
}

func TestNormalizeRecordIdempotentName(t *testing.T) {
	n := NewNormalizer(normSource(), zap.NewNop())

	rec := rawRec(map[string]string{"name": "Milk 1L", "current": "60,00"})
	first, err := n.NormalizeRecord(rec)
	require.NoError(t, err)
	second, err := n.NormalizeRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalizerCustomHooks(t *testing.T) {
	n := NewNormalizer(normSource(), zap.NewNop(),
		WithCategoryFunc(func(_, _ string) string { return "Fixed" }),
		WithLocationFunc(func(models.RawRecord) string { return "Somewhere" }),
	)

	p, err := n.NormalizeRecord(rawRec(map[string]string{
		"name":    "Milk 1L",
		"current": "60,00",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Fixed", p.Category)
	assert.Equal(t, "Somewhere", p.StoreLocation)
}
