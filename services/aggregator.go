package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"market-scraper/models"
)

// Aggregator computes analytics over accepted records. Everything it emits
// is derived data, recomputed from scratch each run.
type Aggregator struct {
	topN int
	log  *zap.Logger
}

// NewAggregator builds an Aggregator keeping n entries in each price
// extreme list.
func NewAggregator(n int, log *zap.Logger) *Aggregator {
	if n <= 0 {
		n = 10
	}
	return &Aggregator{topN: n, log: log.Named("aggregator")}
}

// Summarize computes the per-source analytics for one run's accepted
// records.
func (a *Aggregator) Summarize(source, runID string, products []models.Product) *models.SourceSummary {
	s := &models.SourceSummary{
		Source:        source,
		RunID:         runID,
		GeneratedAt:   time.Now().UTC(),
		TotalProducts: len(products),
		Categories:    make(map[string]models.CategoryStats),
	}

	type catAcc struct {
		count int
		sum   float64
	}
	cats := make(map[string]*catAcc)
	var priceSum float64

	for _, p := range products {
		priceSum += p.CurrentPrice
		if p.DiscountPercentage > 0 {
			s.ProductsOnDiscount++
		}
		acc := cats[p.Category]
		if acc == nil {
			acc = &catAcc{}
			cats[p.Category] = acc
		}
		acc.count++
		acc.sum += p.CurrentPrice
	}

	for name, acc := range cats {
		s.Categories[name] = models.CategoryStats{
			Count:    acc.count,
			AvgPrice: round2(acc.sum / float64(acc.count)),
		}
	}

	if len(products) > 0 {
		s.DiscountRatio = round2(100 * float64(s.ProductsOnDiscount) / float64(len(products)))
		s.AveragePrice = round2(priceSum / float64(len(products)))
	}

	s.TopN = priceExtremes(products, a.topN, func(x, y models.Product) bool {
		return x.CurrentPrice > y.CurrentPrice
	})
	s.BottomN = priceExtremes(products, a.topN, func(x, y models.Product) bool {
		return x.CurrentPrice < y.CurrentPrice
	})

	a.log.Info("summary computed",
		zap.String("source", source),
		zap.Int("total", s.TotalProducts),
		zap.Int("on_discount", s.ProductsOnDiscount),
		zap.Int("categories", len(s.Categories)))
	return s
}

// priceExtremes returns up to n products ordered by the given comparison.
// The sort is stable so equal prices keep their discovery order.
func priceExtremes(products []models.Product, n int, less func(x, y models.Product) bool) []models.PricePoint {
	sorted := make([]models.Product, len(products))
	copy(sorted, products)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	points := make([]models.PricePoint, len(sorted))
	for i, p := range sorted {
		points[i] = models.PricePoint{ProductName: p.ProductName, CurrentPrice: p.CurrentPrice}
	}
	return points
}

// Compare ranks the given summaries against each other on each metric,
// descending, with ties broken by source name.
func (a *Aggregator) Compare(summaries []*models.SourceSummary) *models.ComparisonReport {
	report := &models.ComparisonReport{GeneratedAt: time.Now().UTC()}

	for _, s := range summaries {
		report.Sources = append(report.Sources, models.SourceRank{
			Source:        s.Source,
			TotalProducts: s.TotalProducts,
			CategoryCount: len(s.Categories),
			AveragePrice:  s.AveragePrice,
			DiscountCount: s.ProductsOnDiscount,
		})
	}
	sort.Slice(report.Sources, func(i, j int) bool {
		return report.Sources[i].Source < report.Sources[j].Source
	})

	report.ByTotalProducts = rankBy(report.Sources, func(r models.SourceRank) float64 { return float64(r.TotalProducts) })
	report.ByCategoryCount = rankBy(report.Sources, func(r models.SourceRank) float64 { return float64(r.CategoryCount) })
	report.ByAveragePrice = rankBy(report.Sources, func(r models.SourceRank) float64 { return r.AveragePrice })
	report.ByDiscountCount = rankBy(report.Sources, func(r models.SourceRank) float64 { return float64(r.DiscountCount) })

	return report
}

// rankBy orders source names by a metric, highest first. ranks starts
// sorted by name, so a stable sort leaves ties in name order.
func rankBy(ranks []models.SourceRank, metric func(models.SourceRank) float64) []string {
	ordered := make([]models.SourceRank, len(ranks))
	copy(ordered, ranks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return metric(ordered[i]) > metric(ordered[j])
	})
	names := make([]string, len(ordered))
	for i, r := range ordered {
		names[i] = r.Source
	}
	return names
}

// RenderComparison formats a comparison report as a plain-text table for the
// console and the .txt artifact.
func RenderComparison(report *models.ComparisonReport) string {
	var b strings.Builder
	b.WriteString("Cross-source comparison\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format(time.RFC3339)))

	b.WriteString(fmt.Sprintf("%-16s %10s %10s %12s %10s\n",
		"SOURCE", "PRODUCTS", "CATEGORIES", "AVG PRICE", "DISCOUNTS"))
	for _, r := range report.Sources {
		b.WriteString(fmt.Sprintf("%-16s %10d %10d %12.2f %10d\n",
			r.Source, r.TotalProducts, r.CategoryCount, r.AveragePrice, r.DiscountCount))
	}

	b.WriteString("\nRankings (best first):\n")
	b.WriteString("  by total products:  " + strings.Join(report.ByTotalProducts, ", ") + "\n")
	b.WriteString("  by category count:  " + strings.Join(report.ByCategoryCount, ", ") + "\n")
	b.WriteString("  by average price:   " + strings.Join(report.ByAveragePrice, ", ") + "\n")
	b.WriteString("  by discount count:  " + strings.Join(report.ByDiscountCount, ", ") + "\n")
	return b.String()
}
