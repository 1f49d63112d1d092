package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"market-scraper/models"
)

// Topology selects how a source's listings are discovered.
type Topology string

const (
	// TopologyFlat paginates a single listing from one entry point.
	TopologyFlat Topology = "flat"
	// TopologyBranch first discovers branch listings (store locations) under
	// the entry point, then paginates each branch independently.
	TopologyBranch Topology = "branch"
)

// Selectors holds the CSS selectors used to extract listing content from a
// rendered page.
type Selectors struct {
	// Table locates the product table; headers are read from its "thead th"
	// cells and rows from "tbody tr".
	Table string `yaml:"table"`
	// BranchLinks locates branch URLs (or branch identifiers, for sources
	// that expose branches as a dropdown) on the entry page.
	BranchLinks string `yaml:"branch_links"`
	// NoDataMarkers are literal page substrings that signal an exhausted
	// listing ("no articles for the given criteria" style banners).
	NoDataMarkers []string `yaml:"no_data_markers"`
}

// FieldMap names the raw field that each canonical input is read from. Raw
// field names are the page's own table headers, normalized to snake_case.
type FieldMap struct {
	Name         string `yaml:"name"`
	CurrentPrice string `yaml:"current_price"`
	RegularPrice string `yaml:"regular_price"`
	Category     string `yaml:"category"`
	PricePerUnit string `yaml:"price_per_unit"`
	Availability string `yaml:"availability"`
	Store        string `yaml:"store"`
}

// SourceConfig describes one target website: where its listings live, how to
// traverse them, how raw fields map to the canonical schema, and the
// normalization knobs the default strategy consults.
type SourceConfig struct {
	Name         string   `yaml:"name"`
	EntryPoints  []string `yaml:"entry_points"`
	Topology     Topology `yaml:"topology"`
	ItemsPerPage int      `yaml:"items_per_page"`
	PageLimit    int      `yaml:"page_limit"`
	TotalLimit   int      `yaml:"total_limit"`

	PageParam    string `yaml:"page_param"`
	PerPageParam string `yaml:"per_page_param"`
	// BranchParam is the query parameter carrying the branch identifier for
	// dropdown-style branch sources (e.g. "org").
	BranchParam string `yaml:"branch_param"`

	Selectors Selectors `yaml:"selectors"`
	Fields    FieldMap  `yaml:"fields"`

	// FilterUnavailable skips records whose availability field parses as
	// "not available" during normalization.
	FilterUnavailable bool `yaml:"filter_unavailable"`
	// CategoryKeywords maps product-name keywords to categories for sources
	// that carry no category field. Supplied categories always win.
	CategoryKeywords map[string]string `yaml:"category_keywords"`
	DefaultCategory  string            `yaml:"default_category"`
	// LocationMap translates branch identifiers to store names.
	LocationMap map[string]string `yaml:"location_map"`
}

type sourceCatalog struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSources reads and validates the source catalog. Any malformed entry is
// a ConfigurationError: fatal before a single page is fetched.
func LoadSources(path string) ([]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read source catalog %s", path)
	}
	return ParseSources(data)
}

// ParseSources parses a yaml source catalog and applies defaults.
func ParseSources(data []byte) ([]SourceConfig, error) {
	var catalog sourceCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, &models.ConfigurationError{Field: "sources", Reason: err.Error()}
	}
	if len(catalog.Sources) == 0 {
		return nil, &models.ConfigurationError{Field: "sources", Reason: "catalog defines no sources"}
	}

	seen := make(map[string]struct{})
	for i := range catalog.Sources {
		src := &catalog.Sources[i]
		src.applyDefaults()
		if err := src.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[src.Name]; dup {
			return nil, &models.ConfigurationError{Field: "name", Reason: "duplicate source " + src.Name}
		}
		seen[src.Name] = struct{}{}
	}
	return catalog.Sources, nil
}

func (s *SourceConfig) applyDefaults() {
	if s.Topology == "" {
		s.Topology = TopologyFlat
	}
	if s.ItemsPerPage <= 0 {
		s.ItemsPerPage = 20
	}
	if s.PageParam == "" {
		s.PageParam = "page"
	}
	if s.PerPageParam == "" {
		s.PerPageParam = "perPage"
	}
	if s.DefaultCategory == "" {
		s.DefaultCategory = "Uncategorized"
	}
	if s.Selectors.Table == "" {
		s.Selectors.Table = "div.table-responsive .table"
	}
}

// Validate checks the parts of a source definition that cannot be defaulted.
func (s *SourceConfig) Validate() error {
	if s.Name == "" {
		return &models.ConfigurationError{Field: "name", Reason: "source name is required"}
	}
	if len(s.EntryPoints) == 0 {
		return &models.ConfigurationError{Field: "entry_points", Reason: "source " + s.Name + " has no entry points"}
	}
	if s.Topology != TopologyFlat && s.Topology != TopologyBranch {
		return &models.ConfigurationError{Field: "topology", Reason: "source " + s.Name + ": unknown topology " + string(s.Topology)}
	}
	if s.Topology == TopologyBranch && s.Selectors.BranchLinks == "" {
		return &models.ConfigurationError{Field: "selectors.branch_links", Reason: "source " + s.Name + ": branch topology needs a branch selector"}
	}
	if s.PageLimit < 0 || s.TotalLimit < 0 {
		return &models.ConfigurationError{Field: "limits", Reason: "source " + s.Name + ": limits must be positive or zero (unbounded)"}
	}
	if s.Fields.Name == "" || s.Fields.CurrentPrice == "" {
		return &models.ConfigurationError{Field: "fields", Reason: "source " + s.Name + ": name and current_price field mappings are required"}
	}
	return nil
}
