package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/timelapse/internal/catalog"
	"github.com/starford/timelapse/internal/geo"
	"github.com/starford/timelapse/internal/landsat"
	"github.com/starford/timelapse/internal/observability"
	"github.com/starford/timelapse/internal/pipeline"
	"github.com/starford/timelapse/internal/retrieval"
	"github.com/starford/timelapse/internal/toolchain"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig           `yaml:"app"`
	Status    StatusConfig                `yaml:"status"`
	Area      AreaConfig                  `yaml:"area"`
	Catalog   catalog.Config              `yaml:"catalog"`
	Retrieval retrieval.Config            `yaml:"retrieval"`
	Pipeline  PipelineConfig              `yaml:"pipeline"`
	Tools     toolchain.Commands          `yaml:"tools"`
	Ledger    LedgerConfig                `yaml:"ledger"`
	Tracing   observability.TracingConfig `yaml:"tracing"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Status.Validate(); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if err := c.Area.Validate(); err != nil {
		return fmt.Errorf("area: %w", err)
	}
	if err := validation.ValidateStruct(&c.Catalog,
		validation.Field(&c.Catalog.URL, validation.Required),
		validation.Field(&c.Catalog.MaxCloudCover, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&c.Catalog.Timeout, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if err := validation.ValidateStruct(&c.Retrieval,
		validation.Field(&c.Retrieval.Bucket, validation.Required),
	); err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := validation.ValidateStruct(&c.Tools,
		validation.Field(&c.Tools.Tar, validation.Required),
		validation.Field(&c.Tools.GDALTranslate, validation.Required),
		validation.Field(&c.Tools.GDALWarp, validation.Required),
		validation.Field(&c.Tools.GDALMerge, validation.Required),
		validation.Field(&c.Tools.GDALCalc, validation.Required),
		validation.Field(&c.Tools.GDALInfo, validation.Required),
	); err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	)
}

// StatusConfig holds the optional status server configuration.
// A zero port disables the server.
type StatusConfig struct {
	Port int        `yaml:"port"`
	Auth AuthConfig `yaml:"auth"`
}

// Enabled reports whether the status server should be started.
func (c *StatusConfig) Enabled() bool {
	return c.Port > 0
}

// Address returns the status server address.
func (c *StatusConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the status configuration.
func (c *StatusConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
	); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// AreaConfig holds the region of interest as a ring of [lon, lat] pairs.
type AreaConfig struct {
	RegionOfInterest [][2]float64 `yaml:"region_of_interest"`
}

// Region builds the configured region.
func (c *AreaConfig) Region() (geo.Region, error) {
	return geo.NewRegion(c.RegionOfInterest)
}

// Validate validates the area configuration.
func (c *AreaConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.RegionOfInterest, validation.Required),
	); err != nil {
		return err
	}
	_, err := c.Region()
	return err
}

// PipelineConfig holds scene processing configuration.
type PipelineConfig struct {
	Workers    int                 `yaml:"workers"`
	TargetSRS  string              `yaml:"target_srs"`
	NativeMax  int                 `yaml:"native_max"`
	Bands      landsat.Combination `yaml:"bands"`
	Aggregates bool                `yaml:"aggregates"`
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.TargetSRS, validation.Required),
		validation.Field(&c.NativeMax, validation.Required, validation.Min(255)),
		validation.Field(&c.Bands, validation.Required,
			validation.In(landsat.CombinationVegetation, landsat.CombinationNatural, landsat.CombinationUrban)),
	)
}

// LedgerConfig holds the SQLite ledger location. An empty path places the
// ledger in the output directory.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// PathIn resolves the ledger path for an output directory.
func (c *LedgerConfig) PathIn(outputDir string) string {
	if c.Path != "" {
		return c.Path
	}
	return filepath.Join(outputDir, "ledger.db")
}

// DefaultRegion is the study area around Lagos.
var DefaultRegion = geo.BoundingBox{North: 6.7, West: 3, South: 6.4, East: 3.7}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	b := DefaultRegion
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
		},
		Status: StatusConfig{
			Auth: AuthConfig{Mode: AuthModeDisabled},
		},
		Area: AreaConfig{
			RegionOfInterest: [][2]float64{
				{b.West, b.North},
				{b.East, b.North},
				{b.East, b.South},
				{b.West, b.South},
				{b.West, b.North},
			},
		},
		Catalog: catalog.Config{
			URL:           catalog.DefaultURL,
			MaxCloudCover: 10,
			Timeout:       60 * time.Second,
		},
		Retrieval: retrieval.Config{
			Bucket: "earthengine-public",
			Prefix: "landsat",
		},
		Pipeline: PipelineConfig{
			Workers:    pipeline.DefaultWorkers,
			TargetSRS:  "EPSG:3857",
			NativeMax:  65535,
			Bands:      landsat.CombinationVegetation,
			Aggregates: true,
		},
		Tools: toolchain.DefaultCommands(),
		Tracing: observability.TracingConfig{
			ServiceName: "timelapse",
		},
	}
}
