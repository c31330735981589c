package app

import (
	"context"
	"fmt"
	"log/slog"

	"TenderScan/internal/config"
	"TenderScan/internal/domain"
	"TenderScan/internal/infrastructure/browser"
	"TenderScan/internal/infrastructure/cache"
	"TenderScan/internal/infrastructure/classify"
	"TenderScan/internal/infrastructure/export"
	"TenderScan/internal/infrastructure/extract"
	"TenderScan/internal/infrastructure/fetch"
	"TenderScan/internal/infrastructure/nlp"
	"TenderScan/internal/infrastructure/portal"
	"TenderScan/internal/infrastructure/scheduler"
	"TenderScan/internal/logging"
	"TenderScan/internal/scanner"
	"TenderScan/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	store    *cache.Store
	pipeline *usecase.Pipeline
	analyzer *usecase.Analyzer
	watcher  *usecase.Scheduler
	logger   *slog.Logger
}

// New builds a runnable application instance. The linguistic model and
// the stage cache are opened eagerly; either one missing is fatal.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	normalizer, err := nlp.Load(cfg.Language.ModelPath, cfg.Language.Code)
	if err != nil {
		return nil, err
	}

	store, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return nil, domain.ResourceError(fmt.Errorf("open cache: %w", err))
	}
	if cfg.Cache.Reset {
		if err := store.Reset(context.Background()); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("reset cache: %w", err)
		}
	}

	var selectors config.SelectorsConfig
	if len(cfg.Portals) > 0 {
		selectors = cfg.Portals[0].Selectors
	}
	session := browser.NewSession(cfg.Crawl.Headless, selectors, logging.Component(baseLogger, "browser"))
	fetcher := fetch.New(session, cfg.Crawl.FetchTimeout, cfg.Crawl.MaxRetries, logging.Component(baseLogger, "fetch"))

	registry := scanner.NewRegistry()
	registry.Register(portal.NewSPAScanner(logging.Component(baseLogger, "scanner.spa")))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Session:    session,
		Fetcher:    fetcher,
		Registry:   registry,
		Extractor:  extract.New(cfg.Extract.OCRMinCharsPerPage, cfg.Language.OCRLanguages, logging.Component(baseLogger, "extract")),
		Normalizer: normalizer,
		Classifier: classify.New(cfg.Match.Taxonomy, cfg.Match.Threshold, normalizer),
		Cache:      store,
		Exporter:   export.NewJSONWriter(cfg.Output.Path),
		Logger:     logging.Component(baseLogger, "pipeline"),
		Portals:    cfg.Portals,
		MaxPages:   cfg.Crawl.MaxPages,
		Workers:    cfg.Crawl.Workers,
	})

	var watcher *usecase.Scheduler
	if cfg.Schedule.CronExpression != "" {
		driver := scheduler.NewCronScheduler(cfg.Schedule.CronExpression)
		watcher = usecase.NewScheduler(driver, pipeline, logging.Component(baseLogger, "scheduler"))
	}

	return &Application{
		cfg:      cfg,
		store:    store,
		pipeline: pipeline,
		analyzer: usecase.NewAnalyzer(pipeline, logging.Component(baseLogger, "analyze")),
		watcher:  watcher,
		logger:   baseLogger,
	}, nil
}

// Run performs a single crawl-and-classify pass.
func (a *Application) Run(ctx context.Context) error {
	_, _, err := a.pipeline.Run(ctx)
	return err
}

// Watch runs the pipeline on the configured cron schedule until the
// context is cancelled.
func (a *Application) Watch(ctx context.Context) error {
	if a.watcher == nil {
		return fmt.Errorf("no cron expression configured")
	}

	if err := a.watcher.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return a.watcher.Stop(context.Background())
}

// Analyze runs local files through extraction, normalization, and
// classification without touching any portal.
func (a *Application) Analyze(ctx context.Context, paths []string) ([]usecase.FileAnalysis, error) {
	return a.analyzer.AnalyzeFiles(ctx, paths)
}

// ResetCache drops every cached stage result and the visited set.
func (a *Application) ResetCache(ctx context.Context) error {
	return a.store.Reset(ctx)
}

// Close releases the cache handle.
func (a *Application) Close() error {
	return a.store.Close()
}
