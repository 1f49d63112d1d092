package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"market-scraper/config"
	"market-scraper/models"
	"market-scraper/pipeline"
	"market-scraper/render"
	"market-scraper/services"
	"market-scraper/storage"
	"market-scraper/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	logger, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	sources, err := config.LoadSources(cfg.SourcesPath)
	if err != nil {
		return fmt.Errorf("load source catalog: %w", err)
	}
	logger.Info("source catalog loaded", zap.Int("sources", len(sources)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewArtifactStore(cfg.OutputDir)
	if err != nil {
		return err
	}

	pool := render.NewPool(cfg.RenderPoolSize, func() (render.Client, error) {
		return render.NewChromeClient(cfg.ChromeBin, cfg.RateLimitMs, logger)
	})
	defer pool.Close()

	var sink storage.ProductSink
	if cfg.PostgresEnabled {
		pw, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pw.Close()
		sink = pw
	}

	var (
		mu        sync.Mutex
		summaries []*models.SourceSummary
		failed    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxConcurrency)

	for _, src := range sources {
		src := src
		g.Go(func() error {
			coord := pipeline.NewCoordinator(cfg, src, pool, store, sink, logger)
			srcRun, summary, err := coord.Run(gctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// One source failing never stops the others.
				failed++
				logger.Error("source run failed",
					zap.String("run", srcRun.Key()),
					zap.Error(err))
				return nil
			}
			logger.Info("source run finished",
				zap.String("run", srcRun.Key()),
				zap.Int("accepted", srcRun.AcceptedCount),
				zap.Bool("partial", srcRun.Partial))
			summaries = append(summaries, summary)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(summaries) > 1 {
		report := services.NewAggregator(cfg.TopN, logger).Compare(summaries)
		rendered := services.RenderComparison(report)
		if _, err := store.WriteComparison(report, rendered); err != nil {
			logger.Warn("comparison not written", zap.Error(err))
		}
		fmt.Println(rendered)
	}

	if err := store.SaveManifest(); err != nil {
		logger.Warn("manifest not written", zap.Error(err))
	}

	if failed == len(sources) {
		return fmt.Errorf("all %d source runs failed", failed)
	}
	logger.Info("all runs finished",
		zap.Int("succeeded", len(summaries)),
		zap.Int("failed", failed))
	return nil
}
