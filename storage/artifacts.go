package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"

	"market-scraper/models"
)

// ArtifactStore writes each pipeline stage's output to the output directory
// and registers it in the manifest. Filenames are keyed by source and run so
// concurrent runs never collide.
type ArtifactStore struct {
	dir      string
	manifest *Manifest
}

// NewArtifactStore creates the output directory and returns a store over it.
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "artifacts: create output dir %s", dir)
	}
	return &ArtifactStore{dir: dir, manifest: NewManifest()}, nil
}

// Manifest exposes the handoff table for lookups and final persistence.
func (s *ArtifactStore) Manifest() *Manifest {
	return s.manifest
}

func (s *ArtifactStore) stagePath(source, runID string, stage models.Stage, ext string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_%s.%s", source, runID, stage, ext))
}

func (s *ArtifactStore) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "artifacts: marshal %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "artifacts: write %s", path)
	}
	return nil
}

// WriteRaw persists the crawl stage's raw records as JSON.
func (s *ArtifactStore) WriteRaw(source, runID string, records []models.RawRecord) (string, error) {
	path := s.stagePath(source, runID, models.StageRaw, "json")
	if err := s.writeJSON(path, records); err != nil {
		return "", err
	}
	s.manifest.Put(source, runID, models.StageRaw, path)
	return path, nil
}

// canonicalHeader is the column order of the canonical CSV artifact.
var canonicalHeader = []string{
	"product_name", "current_price", "price_per_unit", "unit",
	"category", "discount_percentage", "store_location",
}

// WriteCanonical persists normalized products as CSV. An absent unit price
// is written as an empty cell.
func (s *ArtifactStore) WriteCanonical(source, runID string, products []models.Product) (string, error) {
	path := s.stagePath(source, runID, models.StageCanonical, "csv")

	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "artifacts: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(canonicalHeader); err != nil {
		return "", eris.Wrap(err, "artifacts: write csv header")
	}
	for _, p := range products {
		ppu := ""
		if p.PricePerUnit != nil {
			ppu = strconv.FormatFloat(*p.PricePerUnit, 'f', 2, 64)
		}
		row := []string{
			p.ProductName,
			strconv.FormatFloat(p.CurrentPrice, 'f', 2, 64),
			ppu,
			string(p.Unit),
			p.Category,
			strconv.FormatFloat(p.DiscountPercentage, 'f', 2, 64),
			p.StoreLocation,
		}
		if err := w.Write(row); err != nil {
			return "", eris.Wrap(err, "artifacts: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", eris.Wrap(err, "artifacts: flush csv")
	}

	s.manifest.Put(source, runID, models.StageCanonical, path)
	return path, nil
}

// WriteValidationReport persists the validation stage's report as JSON.
func (s *ArtifactStore) WriteValidationReport(source, runID string, report models.ValidationReport) (string, error) {
	path := s.stagePath(source, runID, models.StageValidation, "json")
	if err := s.writeJSON(path, report); err != nil {
		return "", err
	}
	s.manifest.Put(source, runID, models.StageValidation, path)
	return path, nil
}

// WriteSummary persists the per-source summary as JSON.
func (s *ArtifactStore) WriteSummary(source, runID string, summary *models.SourceSummary) (string, error) {
	path := s.stagePath(source, runID, models.StageSummary, "json")
	if err := s.writeJSON(path, summary); err != nil {
		return "", err
	}
	s.manifest.Put(source, runID, models.StageSummary, path)
	return path, nil
}

// WriteComparison persists the cross-source comparison as JSON plus a
// plain-text rendering.
func (s *ArtifactStore) WriteComparison(report *models.ComparisonReport, rendered string) (string, error) {
	path := filepath.Join(s.dir, "comparison.json")
	if err := s.writeJSON(path, report); err != nil {
		return "", err
	}
	txt := filepath.Join(s.dir, "comparison.txt")
	if err := os.WriteFile(txt, []byte(rendered), 0o644); err != nil {
		return "", eris.Wrapf(err, "artifacts: write %s", txt)
	}
	return path, nil
}

// SaveManifest writes the handoff table next to the artifacts.
func (s *ArtifactStore) SaveManifest() error {
	return s.manifest.Save(s.dir)
}
