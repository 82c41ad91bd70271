// Command course-scraper runs one scrape of the course marketplace: search
// pages, course detail pages, instructor pages, persisted to Postgres and
// exported as CSV/XLSX snapshots.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/peterkacmarik/course-scraper/internal/api"
	clocksystem "github.com/peterkacmarik/course-scraper/internal/clock/system"
	"github.com/peterkacmarik/course-scraper/internal/config"
	"github.com/peterkacmarik/course-scraper/internal/export"
	"github.com/peterkacmarik/course-scraper/internal/extract"
	collyfetcher "github.com/peterkacmarik/course-scraper/internal/fetcher/colly"
	"github.com/peterkacmarik/course-scraper/internal/fetcher/headless"
	runid "github.com/peterkacmarik/course-scraper/internal/id/uuid"
	"github.com/peterkacmarik/course-scraper/internal/logging"
	"github.com/peterkacmarik/course-scraper/internal/progress"
	"github.com/peterkacmarik/course-scraper/internal/progress/sinks"
	"github.com/peterkacmarik/course-scraper/internal/scraper"
	"github.com/peterkacmarik/course-scraper/internal/store/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional, env vars apply on top)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "course-scraper: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateTables(ctx); err != nil {
		return err
	}

	fetcher, closeFetcher, err := buildFetcher(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFetcher()

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return err
	}
	tracker := api.NewStatusTracker()
	hub := progress.NewHub(logger.Named("progress"),
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		tracker,
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	var server *api.Server
	if cfg.Server.Enabled {
		server = api.New(cfg.Server.Port, registry, tracker, logger.Named("http"))
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("http server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http server shutdown failed", zap.Error(err))
			}
		}()
	}

	clock := clocksystem.New()
	coordinator := scraper.NewCoordinator(fetcher, cfg.Scraper.Concurrency, logger.Named("fetch"), hub, clock)
	novelty := scraper.NewNoveltyFilter(store, logger.Named("novelty"))
	exporter := export.New(cfg.Export.Dir, logger.Named("export"))

	pipeline := scraper.NewPipeline(
		coordinator,
		extract.NewSearchPage(cfg.Search.BaseURL),
		extract.NewDetailPage(cfg.Search.BaseURL),
		extract.NewInstructorPage(),
		novelty,
		store,
		exporter,
		hub,
		logger.Named("pipeline"),
		clock,
	)

	id, err := runid.New().NewID()
	if err != nil {
		return err
	}

	logger.Info("starting scrape",
		zap.String("run_id", id),
		zap.String("expression", cfg.Search.Expression),
		zap.Int("start_page", cfg.Search.StartPage),
		zap.Int("end_page", cfg.Search.EndPage),
		zap.Int("concurrency", cfg.Scraper.Concurrency),
	)

	summary, err := pipeline.Run(ctx, scraper.RunParams{
		RunID:      id,
		SeedURLs:   scraper.SeedURLs(cfg.Search.BaseURL, cfg.Search.Expression, cfg.Search.StartPage, cfg.Search.EndPage),
		Expression: cfg.Search.Expression,
	})
	if err != nil {
		return fmt.Errorf("pipeline run %s: %w", id, err)
	}

	logger.Info("scrape finished",
		zap.String("run_id", summary.RunID),
		zap.Int("discovered", summary.Discovered),
		zap.Int("novel", summary.Novel),
		zap.Int("merged", summary.Merged),
		zap.Bool("done_early", summary.Done),
	)
	return nil
}

// buildFetcher picks the headless browser or the plain HTTP fallback per
// config. The returned close func is safe to call exactly once.
func buildFetcher(cfg config.Config, logger *zap.Logger) (scraper.Fetcher, func(), error) {
	if cfg.Headless.Enabled {
		f, err := headless.NewChromedp(headless.Config{
			UserAgent:         cfg.Scraper.UserAgent,
			NavigationTimeout: cfg.FetchTimeout(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("start headless fetcher: %w", err)
		}
		logger.Info("using headless browser fetcher")
		return f, f.Close, nil
	}
	logger.Info("using plain http fetcher")
	f := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	return f, func() {}, nil
}
