// Package scraper implements the per-source crawl: page discovery,
// pagination under limit constraints, and first-pass structural filtering of
// extracted rows. It drives a render.Client and emits RawRecords; it never
// interprets field contents beyond the cheap structural check.
package scraper

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"market-scraper/config"
	"market-scraper/models"
	"market-scraper/render"
	"market-scraper/utils"
)

// maxBranchWorkers bounds the parallel sub-crawls during branch traversal.
const maxBranchWorkers = 3

// Crawler traverses one source's listings and emits raw records.
type Crawler struct {
	src     config.SourceConfig
	client  render.Client
	diag    *render.Diagnostics
	retry   utils.RetryConfig
	log     *zap.Logger
	visited *utils.URLSet
	extract ExtractFunc
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithExtract substitutes the page-extraction strategy for sources whose DOM
// does not fit the default table shape.
func WithExtract(f ExtractFunc) Option {
	return func(c *Crawler) { c.extract = f }
}

// New creates a Crawler for one source using the given rendering client.
func New(src config.SourceConfig, client render.Client, diag *render.Diagnostics, retry utils.RetryConfig, log *zap.Logger, opts ...Option) *Crawler {
	c := &Crawler{
		src:     src,
		client:  client,
		diag:    diag,
		retry:   retry,
		log:     log.Named("crawler").With(zap.String("source", src.Name)),
		visited: utils.NewURLSet(),
		extract: ExtractTableRows,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is the output of one crawl: the raw record stream (materialized),
// structural-reject and failure diagnostics, and whether the crawl was cut
// short by cancellation.
type Result struct {
	Records  []models.RawRecord
	Rejected int
	Failures []models.BranchFailure
	Partial  bool
}

// Crawl walks the source's topology until its listings are exhausted or a
// limit is reached. Only an unreachable entry (or any page failure on a flat,
// single-listing source) is fatal; branch failures are isolated and recorded.
// Cancellation returns the records collected so far, marked partial.
func (c *Crawler) Crawl(ctx context.Context) (*Result, error) {
	limiter := NewTotalLimiter(c.src.TotalLimit)

	res := &Result{}
	var mu sync.Mutex
	var rejected atomic.Int64

	appendRecord := func(rec models.RawRecord) {
		mu.Lock()
		res.Records = append(res.Records, rec)
		mu.Unlock()
	}
	recordFailure := func(f models.BranchFailure) {
		mu.Lock()
		res.Failures = append(res.Failures, f)
		mu.Unlock()
	}

	var err error
	switch c.src.Topology {
	case config.TopologyBranch:
		err = c.crawlBranches(ctx, limiter, &rejected, appendRecord, recordFailure)
	default:
		err = c.crawlFlat(ctx, limiter, &rejected, appendRecord)
	}

	res.Rejected = int(rejected.Load())

	if ctx.Err() != nil {
		// Emit whatever partial output exists rather than discarding it.
		res.Partial = true
		c.log.Warn("crawl cancelled, emitting partial output",
			zap.Int("records", len(res.Records)))
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	c.log.Info("crawl complete",
		zap.Int("records", len(res.Records)),
		zap.Int("rejected", res.Rejected),
		zap.Int("failed_branches", len(res.Failures)))
	return res, nil
}

// crawlFlat traverses each entry point as a single sequential listing. Any
// page failure aborts the whole run: a flat source has no other branches to
// fall back on.
func (c *Crawler) crawlFlat(ctx context.Context, limiter *TotalLimiter, rejected *atomic.Int64, emit func(models.RawRecord)) error {
	for _, entry := range c.src.EntryPoints {
		if limiter.Exhausted() {
			return nil
		}
		if err := c.crawlListing(ctx, entry, "", limiter, rejected, emit); err != nil {
			if ctx.Err() != nil {
				return err
			}
			return &models.EntryUnreachableError{Source: c.src.Name, URL: entry, Err: err}
		}
	}
	return nil
}

// crawlBranches discovers branch listings under the entry point and fans out
// a bounded worker per branch. A failed branch is recorded and skipped; the
// rest keep going. Discovery failure is fatal for the run.
func (c *Crawler) crawlBranches(ctx context.Context, limiter *TotalLimiter, rejected *atomic.Int64, emit func(models.RawRecord), fail func(models.BranchFailure)) error {
	entry := c.src.EntryPoints[0]

	branches, err := c.discoverBranches(ctx, entry)
	if err != nil {
		return &models.EntryUnreachableError{Source: c.src.Name, URL: entry, Err: err}
	}
	if len(branches) == 0 {
		return &models.EntryUnreachableError{Source: c.src.Name, URL: entry,
			Err: fmt.Errorf("no branches matched %q", c.src.Selectors.BranchLinks)}
	}
	c.log.Info("branches discovered", zap.Int("count", len(branches)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBranchWorkers)

	for _, b := range branches {
		b := b
		g.Go(func() error {
			if gctx.Err() != nil || limiter.Exhausted() {
				return nil
			}
			if err := c.crawlListing(gctx, b.URL, b.ID, limiter, rejected, emit); err != nil && gctx.Err() == nil {
				// Partial-failure isolation: this branch is done, the others
				// continue.
				c.log.Warn("branch aborted", zap.String("branch", b.ID), zap.Error(err))
				fail(models.BranchFailure{Branch: b.ID, URL: b.URL, Error: err.Error()})
			}
			return nil
		})
	}
	return g.Wait()
}

// branch is one independently-paginated sub-listing of a source.
type branch struct {
	ID  string
	URL string
}

var branchCodeRe = regexp.MustCompile(`/(\d+)[_.]`)

// discoverBranches asks the render client for the branch targets on the
// entry page. Targets that are not absolute URLs are treated as branch
// identifiers (dropdown values) and turned into listing URLs via BranchParam.
func (c *Crawler) discoverBranches(ctx context.Context, entry string) ([]branch, error) {
	var targets []string
	err := c.retry.Do(ctx, c.src.Name+"-discover-branches", func(ctx context.Context) error {
		found, err := c.client.Discover(ctx, entry, c.src.Selectors.BranchLinks)
		if err != nil {
			return err
		}
		targets = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	branches := make([]branch, 0, len(targets))
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}

		var b branch
		if strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") {
			b = branch{ID: branchIDFromURL(t), URL: t}
		} else {
			u, err := withQueryParam(entry, c.src.BranchParam, t)
			if err != nil {
				c.log.Warn("skipping malformed branch target", zap.String("target", t), zap.Error(err))
				continue
			}
			b = branch{ID: t, URL: u}
		}

		if c.visited.Add(b.URL) {
			branches = append(branches, b)
		}
	}
	return branches, nil
}

// branchIDFromURL extracts a stable branch identifier from a branch page
// URL: a leading numeric code when present, else the last path segment.
func branchIDFromURL(raw string) string {
	if m := branchCodeRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segs[len(segs)-1]
	if last == "" {
		return raw
	}
	return strings.TrimSuffix(last, ".html")
}

// crawlListing paginates one listing until it is exhausted or a limit stops
// it. A page with zero structurally-valid rows, or carrying a no-data
// marker, ends traversal.
func (c *Crawler) crawlListing(ctx context.Context, listingURL, branchID string, limiter *TotalLimiter, rejected *atomic.Int64, emit func(models.RawRecord)) error {
	log := c.log.With(zap.String("branch", branchID))

	for page := 1; ; page++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if limiter.Exhausted() {
			log.Info("total limit reached, stopping listing")
			return nil
		}
		if c.src.PageLimit > 0 && page > c.src.PageLimit {
			log.Info("page limit reached, stopping listing", zap.Int("page_limit", c.src.PageLimit))
			return nil
		}

		pageURL, err := c.pageURL(listingURL, page)
		if err != nil {
			return err
		}

		rendered, err := c.fetchPage(ctx, pageURL, branchID, page)
		if err != nil {
			return err
		}

		if c.hasNoDataMarker(rendered.Content) {
			log.Info("no-data marker found, listing exhausted", zap.Int("page", page))
			return nil
		}

		rows, err := c.extract(rendered, c.src)
		if err != nil {
			// Page-level extraction error: capture for postmortem, abort
			// this listing only.
			snapshot := c.diag.CapturePage(fmt.Sprintf("%s_%s_page%d", c.src.Name, branchID, page), rendered)
			log.Error("page extraction failed", zap.Int("page", page),
				zap.String("snapshot", snapshot), zap.Error(err))
			return err
		}

		valid, taken := 0, 0
		for _, fields := range rows {
			reason, ok := structuralCheck(fields, c.src.Fields)
			if !ok {
				rejected.Add(1)
				log.Debug("structural reject", zap.String("reason", string(reason)))
				continue
			}
			valid++

			if taken >= c.src.ItemsPerPage {
				continue
			}
			if !limiter.TryAcquire() {
				log.Info("total limit reached mid-page", zap.Int("page", page))
				return nil
			}

			if branchID != "" && c.src.Fields.Store != "" {
				if _, present := fields[c.src.Fields.Store]; !present {
					fields[c.src.Fields.Store] = branchID
				}
			}

			emit(models.RawRecord{
				Fields:    fields,
				SourceURL: pageURL,
				PageIndex: page,
				Branch:    branchID,
				ScrapedAt: time.Now().UTC(),
			})
			taken++
		}

		log.Debug("page extracted", zap.Int("page", page),
			zap.Int("rows", len(rows)), zap.Int("valid", valid), zap.Int("taken", taken))

		if valid == 0 {
			log.Info("page yielded no structurally-valid rows, listing exhausted", zap.Int("page", page))
			return nil
		}
	}
}

// fetchPage retries a page fetch with backoff; exhaustion becomes a
// FetchError and the last rendered content (if any) is captured as a
// diagnostic snapshot.
func (c *Crawler) fetchPage(ctx context.Context, pageURL, branchID string, page int) (*render.Page, error) {
	var rendered *render.Page
	err := c.retry.Do(ctx, fmt.Sprintf("%s-fetch-page-%d", c.src.Name, page), func(ctx context.Context) error {
		p, err := c.client.Fetch(ctx, pageURL)
		if err != nil {
			return err
		}
		rendered = p
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.diag.CapturePage(fmt.Sprintf("%s_%s_page%d_fetch", c.src.Name, branchID, page), rendered)
		return nil, &models.FetchError{URL: pageURL, Attempts: c.retry.MaxAttempts, Err: err}
	}
	return rendered, nil
}

// pageURL builds the concrete URL for one listing page.
func (c *Crawler) pageURL(listingURL string, page int) (string, error) {
	u, err := url.Parse(listingURL)
	if err != nil {
		return "", &models.ConfigurationError{Field: "entry_points", Reason: "malformed URL " + listingURL}
	}
	q := u.Query()
	q.Set(c.src.PageParam, strconv.Itoa(page))
	q.Set(c.src.PerPageParam, strconv.Itoa(c.src.ItemsPerPage))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Crawler) hasNoDataMarker(content string) bool {
	for _, marker := range c.src.Selectors.NoDataMarkers {
		if marker != "" && strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

func withQueryParam(rawURL, key, value string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("branch_param not configured for non-URL branch target %q", value)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
