package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/starford/timelapse/internal/catalog"
	"github.com/starford/timelapse/internal/geo"
	"github.com/starford/timelapse/internal/landsat"
	"github.com/starford/timelapse/internal/ledger"
	"github.com/starford/timelapse/internal/models"
	"github.com/starford/timelapse/internal/observability"
	"github.com/starford/timelapse/internal/scene"
	"github.com/starford/timelapse/internal/workspace"
)

// Catalog lists the scene identifiers matching a query.
type Catalog interface {
	Scenes(ctx context.Context, q catalog.Query) ([]string, error)
}

// Aggregator performs the year-level raster operations.
type Aggregator interface {
	Dimensions(ctx context.Context, path string) (int, int, error)
	Resize(ctx context.Context, src, dst string, width, height int) error
	Median(ctx context.Context, dst string, srcs ...string) error
}

// Option configures a YearProcessor.
type Option func(*YearProcessor)

// WithLedger records runs and scene status in l.
func WithLedger(l ledger.SceneLedger) Option {
	return func(y *YearProcessor) { y.ledger = l }
}

// WithWorkers sets the number of scenes processed at once.
func WithWorkers(n int) Option {
	return func(y *YearProcessor) { y.workers = n }
}

// WithAggregates enables the resize and median steps after each year.
func WithAggregates(enabled bool) Option {
	return func(y *YearProcessor) { y.aggregates = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(y *YearProcessor) { y.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(y *YearProcessor) { y.metrics = m }
}

// YearProcessor runs every scene of a year through the scene pipeline.
type YearProcessor struct {
	root       *workspace.FS
	region     geo.Region
	catalog    Catalog
	env        scene.Env
	aggregator Aggregator
	ledger     ledger.SceneLedger
	workers    int
	aggregates bool
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewYearProcessor creates a processor writing into one subdirectory of root per year.
func NewYearProcessor(root *workspace.FS, region geo.Region, cat Catalog, env scene.Env, agg Aggregator, opts ...Option) *YearProcessor {
	y := &YearProcessor{
		root:       root,
		region:     region,
		catalog:    cat,
		env:        env,
		aggregator: agg,
		workers:    DefaultWorkers,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(y)
	}
	if y.env.Logger == nil {
		y.env.Logger = y.logger
	}
	if y.env.Metrics == nil {
		y.env.Metrics = y.metrics
	}
	return y
}

// YearReport summarizes one ProcessYear call.
type YearReport struct {
	Year      int
	Satellite landsat.Satellite
	RunID     string
	Results   []Result
	Malformed []string
	Resized   []string
	Median    string
}

// Failed returns how many scenes ended with an error.
func (r YearReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Dir returns the output directory of year.
func (y *YearProcessor) Dir(year int) (*workspace.FS, error) {
	return y.root.Sub(strconv.Itoa(year))
}

// Probe returns a status probe for scenes in dir.
func (y *YearProcessor) Probe(dir *workspace.FS) ledger.Probe {
	return func(token string) models.SceneStatus {
		id, err := landsat.ParseSceneID(token)
		if err != nil {
			return models.StatusPending
		}
		return scene.New(id, dir, y.env).Status()
	}
}

// ProcessYear queries the catalog for year and processes every scene it
// returns. Individual scene failures are reported in the result and do not
// fail the year; an error is returned only when the year could not be
// processed at all or an aggregate step failed.
func (y *YearProcessor) ProcessYear(ctx context.Context, year int) (YearReport, error) {
	sat := landsat.ForYear(year)
	report := YearReport{Year: year, Satellite: sat}
	logger := y.logger.With(slog.Int("year", year), slog.String("satellite", sat.String()))

	ctx, span := observability.Tracer().Start(ctx, "pipeline.year",
		trace.WithAttributes(attribute.Int("year", year), attribute.Int("satellite.version", sat.Version)))
	defer span.End()
	fail := func(err error) (YearReport, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}

	sensorID, err := sat.MetadataSensorID()
	if err != nil {
		logger.Warn("year: no catalog sensor for satellite", slog.String("error", err.Error()))
		return fail(fmt.Errorf("pipeline: year %d: %w", year, err))
	}
	if err := sat.Supports(y.env.Options.Combination); err != nil {
		logger.Warn("year: band combination not available", slog.String("error", err.Error()))
		return fail(fmt.Errorf("pipeline: year %d: %w", year, err))
	}

	dir, err := y.Dir(year)
	if err != nil {
		return fail(fmt.Errorf("pipeline: year %d: %w", year, err))
	}
	cutline, err := y.region.WriteCutline(dir)
	if err != nil {
		return fail(fmt.Errorf("pipeline: year %d: write cutline: %w", year, err))
	}

	if y.ledger != nil {
		if err := ledger.Sync(y.ledger, dir, year, y.Probe(dir), logger); err != nil {
			logger.Warn("year: ledger sync failed", slog.String("error", err.Error()))
		}
	}

	tokens, err := y.catalog.Scenes(ctx, catalog.YearQuery(y.region.BoundingBox(), sensorID, year))
	if err != nil {
		return fail(fmt.Errorf("pipeline: year %d: %w", year, err))
	}
	ids, malformed := parseTokens(tokens)
	report.Malformed = malformed
	for _, token := range malformed {
		logger.Warn("year: skipping malformed scene id", slog.String("scene_id", token))
	}
	logger.Info("year: scenes found", slog.Int("scenes", len(ids)), slog.String("sensor_id", sensorID))

	if y.ledger != nil {
		run, err := y.ledger.StartRun(year, sat)
		if err != nil {
			logger.Warn("year: start run failed", slog.String("error", err.Error()))
		}
		report.RunID = run.ID
	}

	jobs := make([]Job, 0, len(ids))
	for _, id := range ids {
		s := scene.New(id, dir, y.env)
		jobs = append(jobs, Job{
			SceneID: id.Token,
			Run: func(ctx context.Context) (scene.Outcome, error) {
				return s.Process(ctx, cutline)
			},
		})
	}
	report.Results = NewPool(y.workers, logger, y.metrics).Run(ctx, jobs)
	y.record(year, report, logger)

	logger.Info("year: scenes processed",
		slog.Int("scenes", len(report.Results)),
		slog.Int("failed", report.Failed()))

	if !y.aggregates || ctx.Err() != nil {
		return report, ctx.Err()
	}
	var errs []error
	if report.Resized, err = y.ResizeToCommonDimensions(ctx, dir); err != nil {
		errs = append(errs, err)
	}
	if report.Median, err = y.MedianComposite(ctx, dir); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fail(fmt.Errorf("pipeline: year %d: %w", year, err))
	}
	return report, nil
}

func (y *YearProcessor) record(year int, report YearReport, logger *slog.Logger) {
	for _, res := range report.Results {
		y.metrics.ObserveScene(year, res.Err)
	}
	if y.ledger == nil {
		return
	}
	now := time.Now().UTC()
	for _, res := range report.Results {
		rec := models.SceneRecord{
			SceneID:       res.SceneID,
			Year:          year,
			Status:        res.Outcome.Status,
			ArchiveSHA256: res.Outcome.ArchiveSHA256,
			UpdatedAt:     now,
		}
		if res.Err != nil {
			rec.LastError = res.Err.Error()
		}
		if err := y.ledger.UpsertScene(rec); err != nil {
			logger.Warn("year: record scene failed", slog.String("scene_id", res.SceneID), slog.String("error", err.Error()))
		}
	}
	if report.RunID == "" {
		return
	}
	if err := y.ledger.FinishRun(report.RunID, len(report.Results), report.Failed()); err != nil {
		logger.Warn("year: finish run failed", slog.String("error", err.Error()))
	}
}

// parseTokens splits catalog tokens into unique scene ids and the tokens that
// failed to parse.
func parseTokens(tokens []string) ([]landsat.SceneID, []string) {
	seen := make(map[string]struct{}, len(tokens))
	var ids []landsat.SceneID
	var malformed []string
	for _, token := range tokens {
		id, err := landsat.ParseSceneID(token)
		if err != nil {
			malformed = append(malformed, token)
			continue
		}
		if _, dup := seen[id.Token]; dup {
			continue
		}
		seen[id.Token] = struct{}{}
		ids = append(ids, id)
	}
	return ids, malformed
}

// ResizeToCommonDimensions resizes every composite in dir to the dimensions
// of the first one in name order. Existing resized files are kept. It
// returns the resized file names.
func (y *YearProcessor) ResizeToCommonDimensions(ctx context.Context, dir *workspace.FS) ([]string, error) {
	composites, err := dir.Glob("*" + scene.CompositeSuffix)
	if err != nil {
		return nil, err
	}
	if len(composites) == 0 {
		y.logger.Info("resize: no composites", slog.String("dir", dir.Root()))
		return nil, nil
	}

	first, err := dir.Path(composites[0])
	if err != nil {
		return nil, err
	}
	width, height, err := y.aggregator.Dimensions(ctx, first)
	if err != nil {
		return nil, fmt.Errorf("resize: %w", err)
	}

	var resized []string
	var errs []error
	for _, name := range composites {
		dst := strings.TrimSuffix(name, scene.CompositeSuffix) + scene.ResizedSuffix
		if dir.Exists(dst) {
			resized = append(resized, dst)
			continue
		}
		start := time.Now()
		err := y.aggregator.Resize(ctx, filepathIn(dir, name), filepathIn(dir, dst), width, height)
		y.metrics.ObserveStep("resize", start)
		if err != nil {
			y.logger.Warn("resize: failed", slog.String("file", name), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		resized = append(resized, dst)
	}
	return resized, errors.Join(errs...)
}

// MedianComposite writes the per-pixel median of the resized composites in
// dir. It returns the output name, or "" when there is nothing to combine.
func (y *YearProcessor) MedianComposite(ctx context.Context, dir *workspace.FS) (string, error) {
	if dir.Exists(scene.MedianName) {
		return scene.MedianName, nil
	}
	inputs, err := dir.Glob("*" + scene.ResizedSuffix)
	if err != nil {
		return "", err
	}
	if len(inputs) == 0 {
		y.logger.Info("median: no resized composites", slog.String("dir", dir.Root()))
		return "", nil
	}
	srcs := make([]string, len(inputs))
	for i, name := range inputs {
		srcs[i] = filepathIn(dir, name)
	}
	start := time.Now()
	err = y.aggregator.Median(ctx, filepathIn(dir, scene.MedianName), srcs...)
	y.metrics.ObserveStep("median", start)
	if err != nil {
		return "", fmt.Errorf("median: %w", err)
	}
	return scene.MedianName, nil
}

func filepathIn(dir *workspace.FS, name string) string {
	p, err := dir.Path(name)
	if err != nil {
		return name
	}
	return p
}
