package internal

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/timelapse/internal/pipeline"
	"github.com/starford/timelapse/internal/scene"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	startYear int
	endYear   int
	outputDir string

	catalog    pipeline.Catalog
	tools      *scene.Toolchain
	aggregator pipeline.Aggregator
	registry   prometheus.Registerer
	logWriter  io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithYears sets the inclusive range of years to process.
func WithYears(start, end int) Option {
	return func(a *application) {
		a.startYear = start
		a.endYear = end
	}
}

// WithOutputDir sets the root output directory.
func WithOutputDir(dir string) Option {
	return func(a *application) {
		a.outputDir = dir
	}
}

// WithCatalog replaces the EarthExplorer client.
func WithCatalog(c pipeline.Catalog) Option {
	return func(a *application) {
		a.catalog = c
	}
}

// WithToolchain replaces the archive bucket and the external tools.
func WithToolchain(tools scene.Toolchain, agg pipeline.Aggregator) Option {
	return func(a *application) {
		a.tools = &tools
		a.aggregator = agg
	}
}

// WithRegistry registers metrics with reg instead of a private registry.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(a *application) {
		a.registry = reg
	}
}

// WithLogWriter sends logs to w instead of stdout.
func WithLogWriter(w io.Writer) Option {
	return func(a *application) {
		a.logWriter = w
	}
}
