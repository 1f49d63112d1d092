// Package storage persists pipeline artifacts (per-stage files keyed by run)
// and optionally mirrors accepted products into PostgreSQL.
package storage

import "market-scraper/models"

// ProductSink receives the accepted products of a completed run. The file
// artifact store is always active; a sink is an optional extra destination.
type ProductSink interface {
	Write(source, runID string, products []models.Product) error
	Close() error
}
