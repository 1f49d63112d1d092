package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"market-scraper/models"
)

// PostgresWriter mirrors accepted products into PostgreSQL. Each run replaces
// the source's previous rows, so the table always reflects the latest
// successful crawl per source.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id                  SERIAL PRIMARY KEY,
			source              VARCHAR(50)   NOT NULL,
			run_id              VARCHAR(40)   NOT NULL,
			product_name        TEXT          NOT NULL,
			current_price       NUMERIC(12,2) NOT NULL,
			price_per_unit      NUMERIC(12,2),
			unit                VARCHAR(10)   NOT NULL,
			category            TEXT          NOT NULL DEFAULT '',
			discount_percentage NUMERIC(5,2)  NOT NULL DEFAULT 0,
			store_location      TEXT          NOT NULL,
			created_at          TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			UNIQUE (source, product_name, store_location)
		);

		CREATE INDEX IF NOT EXISTS idx_products_source   ON products(source);
		CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
		CREATE INDEX IF NOT EXISTS idx_products_price    ON products(current_price);
	`)
	return err
}

// Clear deletes a source's rows from the previous run.
func (pw *PostgresWriter) Clear(source string) error {
	_, err := pw.db.Exec("DELETE FROM products WHERE source = $1", source)
	if err != nil {
		return fmt.Errorf("postgres: clear %s: %w", source, err)
	}
	return nil
}

// Write batch-inserts a run's accepted products, clearing the source's old
// rows first.
func (pw *PostgresWriter) Write(source, runID string, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}

	if err := pw.Clear(source); err != nil {
		return err
	}

	const batchSize = 50
	for i := 0; i < len(products); i += batchSize {
		end := i + batchSize
		if end > len(products) {
			end = len(products)
		}
		if err := pw.insertBatch(source, runID, products[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(source, runID string, batch []models.Product) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*9)

	for idx, p := range batch {
		base := idx * 9
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))

		var ppu sql.NullFloat64
		if p.PricePerUnit != nil {
			ppu = sql.NullFloat64{Float64: *p.PricePerUnit, Valid: true}
		}
		valueArgs = append(valueArgs,
			source, runID, p.ProductName, p.CurrentPrice, ppu,
			string(p.Unit), p.Category, p.DiscountPercentage, p.StoreLocation)
	}

	query := fmt.Sprintf(`
		INSERT INTO products (source, run_id, product_name, current_price, price_per_unit, unit, category, discount_percentage, store_location)
		VALUES %s
		ON CONFLICT (source, product_name, store_location) DO NOTHING
	`, strings.Join(valueStrings, ","))

	_, err := pw.db.Exec(query, valueArgs...)
	return err
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
