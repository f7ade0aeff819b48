// Package retrieval fetches scene archives from the public Landsat bucket
// on Google Cloud Storage.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/starford/timelapse/internal/apperr"
	"github.com/starford/timelapse/internal/landsat"
	"github.com/starford/timelapse/internal/observability"
	"github.com/starford/timelapse/internal/workspace"
)

// ArchiveExt is the extension of scene archives in the bucket.
const ArchiveExt = ".tar.bz"

// Config addresses the archive bucket.
type Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

type openFunc func(ctx context.Context, object string) (io.ReadCloser, error)

// GCS streams archives out of a bucket.
type GCS struct {
	cfg     Config
	open    openFunc
	client  *storage.Client
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewGCS creates an anonymous client for the configured bucket.
func NewGCS(ctx context.Context, cfg Config, logger *slog.Logger, metrics *observability.Metrics) (*GCS, error) {
	client, err := storage.NewClient(ctx, option.WithoutAuthentication())
	if err != nil {
		return nil, fmt.Errorf("retrieval: storage client: %w", err)
	}
	bkt := client.Bucket(cfg.Bucket)
	g := &GCS{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		metrics: metrics,
		open: func(ctx context.Context, object string) (io.ReadCloser, error) {
			r, err := bkt.Object(object).NewReader(ctx)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
	}
	return g, nil
}

// Close releases the storage client.
func (g *GCS) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// ObjectName returns the bucket object holding ref's archive.
func (g *GCS) ObjectName(ref landsat.ArchiveRef) string {
	name := fmt.Sprintf("%s/%s/%s/%s%s", ref.ProductCode, ref.Path, ref.Row, ref.SceneID, ArchiveExt)
	if g.cfg.Prefix != "" {
		name = g.cfg.Prefix + "/" + name
	}
	return name
}

// Retrieve downloads ref's archive into dir as <sceneID>.tar.bz and returns
// its SHA-256 digest. The archive appears only once fully written.
func (g *GCS) Retrieve(ctx context.Context, ref landsat.ArchiveRef, dir *workspace.FS) (string, error) {
	start := time.Now()
	sum, err := g.retrieve(ctx, ref, dir)
	g.metrics.ObserveExternal("retrieve", start, err)
	return sum, err
}

func (g *GCS) retrieve(ctx context.Context, ref landsat.ArchiveRef, dir *workspace.FS) (string, error) {
	object := g.ObjectName(ref)
	g.logger.Debug("retrieval: fetch", slog.String("bucket", g.cfg.Bucket), slog.String("object", object))

	rc, err := g.open(ctx, object)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", fmt.Errorf("%w: retrieve %s: object not found", apperr.ErrExternalOperation, object)
		}
		return "", fmt.Errorf("%w: retrieve %s: %v", apperr.ErrExternalOperation, object, err)
	}
	defer rc.Close()

	sum, err := dir.WriteFrom(ref.SceneID+ArchiveExt, rc)
	if err != nil {
		return "", fmt.Errorf("%w: retrieve %s: %v", apperr.ErrExternalOperation, object, err)
	}
	return sum, nil
}
