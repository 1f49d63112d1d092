// Package pipeline drives one source's crawl through normalization,
// validation and aggregation as an explicit state machine, emitting a stage
// artifact at every step.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"market-scraper/config"
	"market-scraper/models"
	"market-scraper/render"
	"market-scraper/scraper"
	"market-scraper/services"
	"market-scraper/storage"
	"market-scraper/utils"
)

// Coordinator runs the full pipeline for one source. It owns the run's state
// machine; stages own their own semantics.
type Coordinator struct {
	cfg   *config.Config
	src   config.SourceConfig
	pool  *render.Pool
	store *storage.ArtifactStore
	sink  storage.ProductSink
	log   *zap.Logger
}

// NewCoordinator builds a Coordinator for one source. sink may be nil.
func NewCoordinator(cfg *config.Config, src config.SourceConfig, pool *render.Pool, store *storage.ArtifactStore, sink storage.ProductSink, log *zap.Logger) *Coordinator {
	return &Coordinator{
		cfg:   cfg,
		src:   src,
		pool:  pool,
		store: store,
		sink:  sink,
		log:   log.Named("pipeline").With(zap.String("source", src.Name)),
	}
}

// advance moves the run along a legal state machine edge. An illegal edge is
// a programming error, not a runtime condition.
func (c *Coordinator) advance(run *models.Run, next models.RunStatus) error {
	if !run.Status.CanTransition(next) {
		return fmt.Errorf("illegal run transition %s -> %s", run.Status, next)
	}
	c.log.Info("run state", zap.String("run_id", run.ID),
		zap.String("from", string(run.Status)), zap.String("to", string(next)))
	run.Status = next
	return nil
}

func (c *Coordinator) fail(run *models.Run, err error) (*models.Run, *models.SourceSummary, error) {
	run.Status = models.RunFailed
	run.FinishedAt = time.Now().UTC()
	c.log.Error("run failed", zap.String("run_id", run.ID), zap.Error(err))
	return run, nil, err
}

// Run executes the pipeline end to end for the coordinator's source. Only a
// crawl-stage fatal error fails the run; later stages degrade output and
// keep going. A cancelled crawl completes the run with partial artifacts.
func (c *Coordinator) Run(ctx context.Context) (*models.Run, *models.SourceSummary, error) {
	run := models.NewRun(uuid.NewString(), c.src.Name)
	log := c.log.With(zap.String("run_id", run.ID))
	log.Info("run starting")

	// CRAWLING. The state advances before the render client is acquired so a
	// checkout failure fails the run from CRAWLING, the only state with an
	// edge to FAILED.
	if err := c.advance(run, models.RunCrawling); err != nil {
		return c.fail(run, err)
	}

	client, err := c.pool.Checkout(ctx)
	if err != nil {
		return c.fail(run, fmt.Errorf("checkout render client: %w", err))
	}
	defer c.pool.Return(client)

	diag := render.NewDiagnostics(c.cfg.DiagnosticsDir, log)
	retry := utils.RetryConfig{
		MaxAttempts:    c.cfg.MaxRetries,
		BaseDelay:      time.Duration(c.cfg.RetryBaseMs) * time.Millisecond,
		JitterFraction: 0.2,
	}
	crawler := scraper.New(c.src, client, diag, retry, log)

	crawled, err := crawler.Crawl(ctx)
	if err != nil {
		return c.fail(run, err)
	}
	run.Partial = crawled.Partial
	run.RawCount = len(crawled.Records)
	run.DroppedRaw = crawled.Rejected
	run.Failures = crawled.Failures

	if path, err := c.store.WriteRaw(c.src.Name, run.ID, crawled.Records); err != nil {
		// Artifact write failures after a successful crawl degrade the run
		// instead of discarding scraped work.
		log.Warn("raw artifact not written", zap.Error(err))
	} else {
		run.Artifacts[models.StageRaw] = path
	}

	// NORMALIZING
	if err := c.advance(run, models.RunNormalizing); err != nil {
		return c.fail(run, err)
	}
	normalizer := services.NewNormalizer(c.src, log)
	products, stats := normalizer.Normalize(crawled.Records)
	run.NormalizedCount = stats.Produced
	run.DroppedNormalize = stats.Skipped + stats.Failed

	if path, err := c.store.WriteCanonical(c.src.Name, run.ID, products); err != nil {
		log.Warn("canonical artifact not written", zap.Error(err))
	} else {
		run.Artifacts[models.StageCanonical] = path
	}

	// VALIDATING
	if err := c.advance(run, models.RunValidating); err != nil {
		return c.fail(run, err)
	}
	validated := services.NewValidator(log).Validate(c.src.Name, products)
	run.AcceptedCount = len(validated.Accepted)
	run.RejectedCount = validated.Report.FailedCount

	if path, err := c.store.WriteValidationReport(c.src.Name, run.ID, validated.Report); err != nil {
		log.Warn("validation artifact not written", zap.Error(err))
	} else {
		run.Artifacts[models.StageValidation] = path
	}

	// AGGREGATING
	if err := c.advance(run, models.RunAggregating); err != nil {
		return c.fail(run, err)
	}
	summary := services.NewAggregator(c.cfg.TopN, log).Summarize(c.src.Name, run.ID, validated.Accepted)
	summary.Partial = run.Partial

	if path, err := c.store.WriteSummary(c.src.Name, run.ID, summary); err != nil {
		log.Warn("summary artifact not written", zap.Error(err))
	} else {
		run.Artifacts[models.StageSummary] = path
	}

	if c.sink != nil {
		if err := c.sink.Write(c.src.Name, run.ID, validated.Accepted); err != nil {
			log.Warn("product sink write failed", zap.Error(err))
		}
	}

	// DONE
	if err := c.advance(run, models.RunDone); err != nil {
		return c.fail(run, err)
	}
	run.FinishedAt = time.Now().UTC()
	log.Info("run complete",
		zap.Bool("partial", run.Partial),
		zap.Int("raw", run.RawCount),
		zap.Int("normalized", run.NormalizedCount),
		zap.Int("accepted", run.AcceptedCount),
		zap.Int("rejected", run.RejectedCount),
		zap.Int("failed_branches", len(run.Failures)))
	return run, summary, nil
}
