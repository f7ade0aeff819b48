// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/starford/timelapse/internal/catalog"
	"github.com/starford/timelapse/internal/landsat"
	"github.com/starford/timelapse/internal/ledger"
	"github.com/starford/timelapse/internal/observability"
	"github.com/starford/timelapse/internal/pipeline"
	"github.com/starford/timelapse/internal/retrieval"
	"github.com/starford/timelapse/internal/scene"
	"github.com/starford/timelapse/internal/sceneservice"
	"github.com/starford/timelapse/internal/sse"
	"github.com/starford/timelapse/internal/toolchain"
	"github.com/starford/timelapse/internal/workspace"
)

// Run processes every year of the configured range, one year at a time.
// Failures of a single scene or year are logged and do not stop the batch.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	if app.outputDir == "" {
		return fmt.Errorf("output directory is required")
	}

	cfg := app.config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.App, app.logWriter)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.Int("start_year", app.startYear),
		slog.Int("end_year", app.endYear),
		slog.String("output_dir", app.outputDir),
		slog.Int("workers", cfg.Pipeline.Workers),
		slog.Bool("status_enabled", cfg.Status.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, os.Stderr, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(shutdownTracing, logger)

	root, err := workspace.Open(app.outputDir)
	if err != nil {
		return fmt.Errorf("init output dir: %w", err)
	}
	region, err := cfg.Area.Region()
	if err != nil {
		return fmt.Errorf("init region: %w", err)
	}

	db, err := ledger.Open(cfg.Ledger.PathIn(root.Root()))
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer db.Close()

	reg := app.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	tools, agg, closeTools, err := app.toolchain(ctx, logger, metrics)
	if err != nil {
		return fmt.Errorf("init toolchain: %w", err)
	}
	defer closeTools()

	cat := app.catalog
	if cat == nil {
		cat = catalog.NewClient(cfg.Catalog, logger)
	}

	env := scene.Env{
		Tools: tools,
		Options: scene.Options{
			Combination: cfg.Pipeline.Bands,
			TargetSRS:   cfg.Pipeline.TargetSRS,
			NativeMax:   cfg.Pipeline.NativeMax,
		},
		Logger:  logger,
		Metrics: metrics,
	}
	proc := pipeline.NewYearProcessor(root, region, cat, env, agg,
		pipeline.WithLedger(db),
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithAggregates(cfg.Pipeline.Aggregates),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
	)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	g, gCtx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		app.processYears(gCtx, proc, db, broker, cfg.Status.Enabled(), logger)
		return nil
	})

	if cfg.Status.Enabled() {
		svc := sceneservice.NewService(db, root, cfg.Pipeline.Bands)
		httpServer := &http.Server{
			Addr:              cfg.Status.Address(),
			Handler:           newStatusRouter(cfg.Status, svc, broker, metrics),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Start HTTP server.
		g.Go(func() error {
			logger.Info("Starting status server", slog.String("address", cfg.Status.Address()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})

		// Stop the server once the batch is over or on shutdown.
		g.Go(func() error {
			select {
			case <-done:
			case <-gCtx.Done():
				logger.Info("Context cancelled, initiating shutdown")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Batch finished")
	return nil
}

// processYears runs the years in order. With live progress enabled, a
// watcher follows each year's directory and feeds the SSE broker.
func (a *application) processYears(ctx context.Context, proc *pipeline.YearProcessor, db *ledger.DB, broker *sse.Broker, live bool, logger *slog.Logger) {
	if a.startYear > a.endYear {
		logger.Warn("empty year range", slog.Int("start_year", a.startYear), slog.Int("end_year", a.endYear))
		return
	}
	for year := a.startYear; year <= a.endYear; year++ {
		if ctx.Err() != nil {
			logger.Info("Stopping before year", slog.Int("year", year))
			return
		}

		stopWatch := func() {}
		if live {
			stopWatch = watchYear(ctx, proc, db, broker, year, logger)
		}

		broker.Publish(sse.Event{Type: "run.started", Data: map[string]string{"year": strconv.Itoa(year)}})
		report, err := proc.ProcessYear(ctx, year)
		stopWatch()

		if err != nil {
			logger.Warn("year failed", slog.Int("year", year), slog.String("error", err.Error()))
		}
		broker.Publish(sse.Event{Type: "run.finished", Data: map[string]string{
			"year":   strconv.Itoa(year),
			"scenes": strconv.Itoa(len(report.Results)),
			"failed": strconv.Itoa(report.Failed()),
		}})
	}
}

// watchYear starts a ledger watcher on year's directory and returns a
// function that stops it and waits for it to exit.
func watchYear(ctx context.Context, proc *pipeline.YearProcessor, db *ledger.DB, broker *sse.Broker, year int, logger *slog.Logger) func() {
	// Years without a catalog sensor never get a directory.
	if _, err := landsat.ForYear(year).MetadataSensorID(); err != nil {
		return func() {}
	}
	dir, err := proc.Dir(year)
	if err != nil {
		logger.Warn("watcher: year dir", slog.Int("year", year), slog.String("error", err.Error()))
		return func() {}
	}
	watchCtx, cancel := context.WithCancel(ctx)
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		err := ledger.Watch(watchCtx, db, dir.Root(), year, proc.Probe(dir), logger, func(ev ledger.Event) {
			broker.PublishSceneEvent(ev.SceneID, ev.Year, ev.Status)
		})
		if err != nil {
			logger.Warn("watcher: failed", slog.Int("year", year), slog.String("error", err.Error()))
		}
	}()
	return func() {
		cancel()
		<-exited
	}
}

// toolchain returns the injected tools, or the bucket and external tools.
func (a *application) toolchain(ctx context.Context, logger *slog.Logger, metrics *observability.Metrics) (scene.Toolchain, pipeline.Aggregator, func(), error) {
	if a.tools != nil {
		return *a.tools, a.aggregator, func() {}, nil
	}
	cfg := a.config

	gcs, err := retrieval.NewGCS(ctx, cfg.Retrieval, logger, metrics)
	if err != nil {
		return scene.Toolchain{}, nil, nil, err
	}
	runner := toolchain.NewExecRunner(logger, metrics)
	gdal := toolchain.NewGDAL(runner, cfg.Tools)
	tools := scene.Toolchain{
		Retriever: gcs,
		Extractor: toolchain.NewTar(runner, cfg.Tools.Tar),
		Raster:    gdal,
	}
	closeFn := func() {
		if err := gcs.Close(); err != nil {
			logger.Warn("retrieval: close failed", slog.String("error", err.Error()))
		}
	}
	return tools, gdal, closeFn, nil
}

func newLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
