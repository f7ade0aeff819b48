// Package scene takes one Landsat scene from catalog identifier to a
// reprojected multi-band composite.
//
// A Scene holds no processing state. Every step first probes the scene's
// directory and skips work whose output file already exists, so re-running a
// scene after an interruption or failure resumes at the first missing file.
package scene

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/starford/timelapse/internal/apperr"
	"github.com/starford/timelapse/internal/landsat"
	"github.com/starford/timelapse/internal/models"
	"github.com/starford/timelapse/internal/observability"
	"github.com/starford/timelapse/internal/workspace"
)

// File naming within a year directory.
const (
	ArchiveExt      = ".tar.bz"
	BandExt         = ".TIF"
	RasterExt       = ".tif"
	ProjectedSuffix = "-projected" + RasterExt
	RescaledSuffix  = "-8bit" + RasterExt
	CompositeSuffix = "_RGB" + ProjectedSuffix
	ResizedSuffix   = "_RGB-projected.resized" + RasterExt
	MedianName      = "median-out" + RasterExt
)

// Retriever fetches a scene archive into dir and returns its SHA-256 digest.
type Retriever interface {
	Retrieve(ctx context.Context, ref landsat.ArchiveRef, dir *workspace.FS) (string, error)
}

// Extractor unpacks an archive into dir, prefixing members with sceneID.
type Extractor interface {
	Extract(ctx context.Context, archive, sceneID, dir string) error
}

// Raster performs the per-band raster operations.
type Raster interface {
	Rescale(ctx context.Context, src, dst string, srcMax int) error
	Reproject(ctx context.Context, src, dst, srs, cutline string) error
	Merge(ctx context.Context, dst string, srcs ...string) error
}

// Toolchain groups the external operations a scene depends on.
type Toolchain struct {
	Retriever Retriever
	Extractor Extractor
	Raster    Raster
}

// Options controls band selection and output projection.
type Options struct {
	Combination landsat.Combination
	TargetSRS   string
	NativeMax   int
}

// DefaultOptions returns vegetation composites in web mercator, rescaling
// 16-bit bands.
func DefaultOptions() Options {
	return Options{
		Combination: landsat.CombinationVegetation,
		TargetSRS:   "EPSG:3857",
		NativeMax:   65535,
	}
}

// Env is shared by every scene of a run.
type Env struct {
	Tools   Toolchain
	Options Options
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Scene is one catalog scene and its output directory.
type Scene struct {
	id        landsat.SceneID
	satellite landsat.Satellite
	bands     []string
	dir       *workspace.FS
	env       Env
	logger    *slog.Logger
}

// Outcome is the result of processing a scene.
type Outcome struct {
	Status        models.SceneStatus
	ArchiveSHA256 string
}

// New creates a scene writing into dir.
func New(id landsat.SceneID, dir *workspace.FS, env Env) *Scene {
	sat := id.Satellite()
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scene{
		id:        id,
		satellite: sat,
		bands:     sat.Bands(env.Options.Combination),
		dir:       dir,
		env:       env,
		logger:    logger.With(slog.String("scene_id", id.Token)),
	}
}

// ID returns the scene identifier.
func (s *Scene) ID() landsat.SceneID { return s.id }

// Satellite returns the generation that captured the scene.
func (s *Scene) Satellite() landsat.Satellite { return s.satellite }

// Bands returns the bands stacked into the composite, in channel order.
func (s *Scene) Bands() []string { return append([]string(nil), s.bands...) }

// ArchiveName returns the file name of the raw archive.
func (s *Scene) ArchiveName() string { return s.id.Token + ArchiveExt }

// CompositeName returns the file name of the merged composite.
func (s *Scene) CompositeName() string { return s.id.Token + CompositeSuffix }

func (s *Scene) bandName(band string) string      { return s.id.Token + "_" + band + BandExt }
func (s *Scene) rescaledName(band string) string  { return s.id.Token + "_" + band + RescaledSuffix }
func (s *Scene) projectedName(band string) string { return s.id.Token + "_" + band + ProjectedSuffix }

func (s *Scene) path(name string) string {
	return filepath.Join(s.dir.Root(), name)
}

// ArchiveExists reports whether the raw archive has been downloaded.
func (s *Scene) ArchiveExists() bool {
	return s.dir.Exists(s.ArchiveName())
}

// BandFilesExist reports whether any extracted band file is present.
func (s *Scene) BandFilesExist() bool {
	matches, err := s.dir.Glob(s.id.Token + "_B*")
	return err == nil && len(matches) > 0
}

// ProjectedFilesExist reports whether every band has been reprojected.
func (s *Scene) ProjectedFilesExist() bool {
	for _, b := range s.bands {
		if !s.dir.Exists(s.projectedName(b)) {
			return false
		}
	}
	return true
}

// CompositeExists reports whether the merged composite is present.
func (s *Scene) CompositeExists() bool {
	return s.dir.Exists(s.CompositeName())
}

func (s *Scene) requiredBandsExist() bool {
	for _, b := range s.bands {
		if !s.dir.Exists(s.bandName(b)) {
			return false
		}
	}
	return true
}

// Status derives the scene's progress from the files on disk.
func (s *Scene) Status() models.SceneStatus {
	switch {
	case s.CompositeExists():
		return models.StatusComposited
	case s.ProjectedFilesExist():
		return models.StatusProjected
	case s.BandFilesExist():
		return models.StatusExtracted
	case s.ArchiveExists():
		return models.StatusDownloaded
	default:
		return models.StatusPending
	}
}

// Process downloads the scene and builds its composite clipped to cutline.
func (s *Scene) Process(ctx context.Context, cutline string) (Outcome, error) {
	sum, err := s.Download(ctx)
	if err != nil {
		return Outcome{Status: s.Status()}, err
	}
	if err := s.Warp(ctx, cutline); err != nil {
		return Outcome{Status: s.Status(), ArchiveSHA256: sum}, err
	}
	return Outcome{Status: s.Status(), ArchiveSHA256: sum}, nil
}

// Download fetches the raw archive unless it, or its extracted bands, are
// already present. It returns the digest of a freshly downloaded archive.
func (s *Scene) Download(ctx context.Context) (string, error) {
	if s.ArchiveExists() || s.BandFilesExist() {
		s.logger.Debug("scene: skipping download")
		return "", nil
	}
	var sum string
	err := s.step(ctx, "download", func(ctx context.Context) error {
		var err error
		sum, err = s.env.Tools.Retriever.Retrieve(ctx, s.id.ArchiveRef(), s.dir)
		return err
	})
	return sum, err
}

// Extract unpacks the archive unless every band needed for the composite is present.
func (s *Scene) Extract(ctx context.Context) error {
	if !s.ArchiveExists() {
		return fmt.Errorf("scene %s: %w", s.id, apperr.ErrArchiveMissing)
	}
	if s.requiredBandsExist() {
		s.logger.Debug("scene: skipping extraction")
		return nil
	}
	return s.step(ctx, "extract", func(ctx context.Context) error {
		if err := s.env.Tools.Extractor.Extract(ctx, s.path(s.ArchiveName()), s.id.Token, s.dir.Root()); err != nil {
			return err
		}
		for _, b := range s.bands {
			if !s.dir.Exists(s.bandName(b)) {
				return fmt.Errorf("%w: extract %s: archive has no %s", apperr.ErrExternalOperation, s.id, b)
			}
		}
		return nil
	})
}

// Warp reprojects each composite band into the target projection, cropped to
// cutline, and merges them in channel order. It does nothing when the
// composite exists or when nothing has been downloaded.
func (s *Scene) Warp(ctx context.Context, cutline string) error {
	if s.CompositeExists() {
		s.logger.Debug("scene: skipping warp, composite exists")
		return nil
	}
	if !s.ArchiveExists() && !s.BandFilesExist() {
		s.logger.Debug("scene: skipping warp, nothing downloaded")
		return nil
	}
	if !s.requiredBandsExist() {
		if err := s.Extract(ctx); err != nil {
			return err
		}
	}

	projected := make([]string, 0, len(s.bands))
	for _, b := range s.bands {
		if err := s.project(ctx, b, cutline); err != nil {
			return err
		}
		projected = append(projected, s.path(s.projectedName(b)))
	}

	return s.step(ctx, "merge", func(ctx context.Context) error {
		return s.env.Tools.Raster.Merge(ctx, s.path(s.CompositeName()), projected...)
	})
}

func (s *Scene) project(ctx context.Context, band, cutline string) error {
	if s.dir.Exists(s.projectedName(band)) {
		return nil
	}
	src := s.path(s.bandName(band))
	if s.satellite.NeedsRescale() {
		dst := s.path(s.rescaledName(band))
		if !s.dir.Exists(s.rescaledName(band)) {
			err := s.step(ctx, "rescale", func(ctx context.Context) error {
				return s.env.Tools.Raster.Rescale(ctx, src, dst, s.env.Options.NativeMax)
			}, attribute.String("band", band))
			if err != nil {
				return err
			}
		}
		src = dst
	}
	return s.step(ctx, "reproject", func(ctx context.Context) error {
		return s.env.Tools.Raster.Reproject(ctx, src, s.path(s.projectedName(band)), s.env.Options.TargetSRS, cutline)
	}, attribute.String("band", band))
}

// step runs fn inside a span and records its duration.
func (s *Scene) step(ctx context.Context, name string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	start := time.Now()
	attrs = append(attrs, attribute.String("scene.id", s.id.Token))
	ctx, span := observability.Tracer().Start(ctx, "scene."+name, trace.WithAttributes(attrs...))
	defer span.End()

	err := fn(ctx)
	s.env.Metrics.ObserveStep(name, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("scene: step failed", slog.String("step", name), slog.String("error", err.Error()))
		return fmt.Errorf("scene %s: %s: %w", s.id, name, err)
	}
	s.logger.Debug("scene: step done", slog.String("step", name), slog.Duration("took", time.Since(start)))
	return nil
}
