package ledger

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/timelapse/internal/models"
)

// Event reports a scene whose status changed on disk.
type Event struct {
	SceneID string             `json:"scene_id"`
	Year    int                `json:"year"`
	Status  models.SceneStatus `json:"status"`
}

// EventCallback is called after a watcher-driven status change.
type EventCallback func(ev Event)

// Watch follows file changes in a year directory until ctx is cancelled,
// re-probing the scene each changed file belongs to and recording status
// changes. It calls cb (if non-nil) after each recorded change.
func Watch(ctx context.Context, db SceneLedger, dir string, year int, probe Probe, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	last := make(map[string]models.SceneStatus)
	if known, err := db.ListScenes(year); err == nil {
		for _, rec := range known {
			last[rec.SceneID] = rec.Status
		}
	}

	logger.Info("watcher: started", slog.String("dir", dir), slog.Int("year", year))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped", slog.Int("year", year))
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			id, ok := SceneIDFromName(filepath.Base(ev.Name))
			if !ok {
				continue
			}
			status := probe(id)
			if last[id] == status {
				continue
			}
			if err := db.SetStatus(id, year, status); err != nil {
				logger.Warn("watcher: set status failed", slog.String("scene_id", id), slog.String("error", err.Error()))
				continue
			}
			last[id] = status
			logger.Debug("watcher: status", slog.String("scene_id", id), slog.String("status", string(status)))
			if cb != nil {
				cb(Event{SceneID: id, Year: year, Status: status})
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
