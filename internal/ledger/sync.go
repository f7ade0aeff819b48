package ledger

import (
	"log/slog"

	"github.com/starford/timelapse/internal/landsat"
	"github.com/starford/timelapse/internal/models"
	"github.com/starford/timelapse/internal/workspace"
)

// Probe derives a scene's status from the files on disk.
type Probe func(sceneID string) models.SceneStatus

// Sync brings the recorded status of year's scenes in line with dir:
//   - scenes with files on disk get their probed status
//   - recorded scenes whose files are gone fall back to pending
func Sync(db SceneLedger, dir *workspace.FS, year int, probe Probe, logger *slog.Logger) error {
	names, err := dir.List()
	if err != nil {
		return err
	}
	known, err := db.ListScenes(year)
	if err != nil {
		return err
	}
	recorded := make(map[string]models.SceneStatus, len(known))
	for _, rec := range known {
		recorded[rec.SceneID] = rec.Status
	}

	disk := make(map[string]struct{})
	for _, name := range names {
		id, ok := SceneIDFromName(name)
		if !ok {
			continue
		}
		if _, seen := disk[id]; seen {
			continue
		}
		disk[id] = struct{}{}

		status := probe(id)
		if prev, ok := recorded[id]; ok && prev == status {
			continue
		}
		if err := db.SetStatus(id, year, status); err != nil {
			logger.Warn("sync: set status failed", slog.String("scene_id", id), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: status", slog.String("scene_id", id), slog.String("status", string(status)))
	}

	for id, status := range recorded {
		if _, ok := disk[id]; ok || status == models.StatusPending {
			continue
		}
		if err := db.SetStatus(id, year, models.StatusPending); err != nil {
			logger.Warn("sync: reset failed", slog.String("scene_id", id), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: reset stale", slog.String("scene_id", id))
	}
	return nil
}

// SceneIDFromName returns the scene identifier prefixing a pipeline file name.
func SceneIDFromName(name string) (string, bool) {
	if workspace.IsPartial(name) || len(name) <= landsat.SceneIDLength {
		return "", false
	}
	if c := name[landsat.SceneIDLength]; c != '.' && c != '_' {
		return "", false
	}
	id, err := landsat.ParseSceneID(name[:landsat.SceneIDLength])
	if err != nil {
		return "", false
	}
	return id.Token, true
}
