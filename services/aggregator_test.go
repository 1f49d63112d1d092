package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market-scraper/models"
)

func aggProduct(name, category string, price, discount float64) models.Product {
	return models.Product{
		ProductName:        name,
		CurrentPrice:       price,
		Unit:               models.UnitCount,
		Category:           category,
		DiscountPercentage: discount,
		StoreLocation:      "Centar",
	}
}

func TestSummarize(t *testing.T) {
	a := NewAggregator(2, zap.NewNop())

	s := a.Summarize("testmart", "run-1", []models.Product{
		aggProduct("Milk", "Dairy", 60, 10),
		aggProduct("Yogurt", "Dairy", 40, 0),
		aggProduct("Bread", "Bakery", 45, 0),
		aggProduct("Cake", "Bakery", 250, 25),
	})

	assert.Equal(t, "testmart", s.Source)
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 4, s.TotalProducts)
	assert.Equal(t, 2, s.ProductsOnDiscount)
	assert.InDelta(t, 50, s.DiscountRatio, 0.001)
	assert.InDelta(t, 98.75, s.AveragePrice, 0.001)

	require.Len(t, s.Categories, 2)
	assert.Equal(t, 2, s.Categories["Dairy"].Count)
	assert.InDelta(t, 50, s.Categories["Dairy"].AvgPrice, 0.001)
	assert.InDelta(t, 147.5, s.Categories["Bakery"].AvgPrice, 0.001)

	require.Len(t, s.TopN, 2)
	assert.Equal(t, "Cake", s.TopN[0].ProductName)
	assert.Equal(t, "Milk", s.TopN[1].ProductName)
	require.Len(t, s.BottomN, 2)
	assert.Equal(t, "Yogurt", s.BottomN[0].ProductName)
	assert.Equal(t, "Bread", s.BottomN[1].ProductName)
}

func TestSummarizeEmpty(t *testing.T) {
	a := NewAggregator(10, zap.NewNop())

	s := a.Summarize("testmart", "run-1", nil)
	assert.Zero(t, s.TotalProducts)
	assert.Zero(t, s.DiscountRatio)
	assert.Zero(t, s.AveragePrice)
	assert.Empty(t, s.TopN)
	assert.Empty(t, s.BottomN)
}

func TestSummarizeTiesKeepDiscoveryOrder(t *testing.T) {
	a := NewAggregator(3, zap.NewNop())

	s := a.Summarize("testmart", "run-1", []models.Product{
		aggProduct("First", "Misc", 100, 0),
		aggProduct("Second", "Misc", 100, 0),
		aggProduct("Third", "Misc", 100, 0),
	})

	require.Len(t, s.TopN, 3)
	assert.Equal(t, []string{"First", "Second", "Third"}, []string{
		s.TopN[0].ProductName, s.TopN[1].ProductName, s.TopN[2].ProductName,
	})
}

func summaryFor(source string, total, categories, discounts int, avg float64) *models.SourceSummary {
	cats := make(map[string]models.CategoryStats, categories)
	for i := 0; i < categories; i++ {
		cats[string(rune('A'+i))] = models.CategoryStats{Count: 1}
	}
	return &models.SourceSummary{
		Source:             source,
		TotalProducts:      total,
		ProductsOnDiscount: discounts,
		AveragePrice:       avg,
		Categories:         cats,
	}
}

func TestCompareRankings(t *testing.T) {
	a := NewAggregator(10, zap.NewNop())

	report := a.Compare([]*models.SourceSummary{
		summaryFor("vero", 120, 5, 30, 175.2),
		summaryFor("zito", 200, 3, 10, 142.1),
		summaryFor("tinex", 80, 8, 30, 175.2),
	})

	require.Len(t, report.Sources, 3)
	// Sources are listed alphabetically.
	assert.Equal(t, "tinex", report.Sources[0].Source)

	assert.Equal(t, []string{"zito", "vero", "tinex"}, report.ByTotalProducts)
	assert.Equal(t, []string{"tinex", "vero", "zito"}, report.ByCategoryCount)
	// vero and tinex tie on average price and discount count; name order
	// breaks the tie.
	assert.Equal(t, []string{"tinex", "vero", "zito"}, report.ByAveragePrice)
	assert.Equal(t, []string{"tinex", "vero", "zito"}, report.ByDiscountCount)
}

func TestRenderComparison(t *testing.T) {
	a := NewAggregator(10, zap.NewNop())
	report := a.Compare([]*models.SourceSummary{
		summaryFor("vero", 120, 5, 30, 175.2),
		summaryFor("zito", 200, 3, 10, 142.1),
	})

	out := RenderComparison(report)
	assert.Contains(t, out, "vero")
	assert.Contains(t, out, "zito")
	assert.Contains(t, out, "by total products")
}
