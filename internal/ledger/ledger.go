package ledger

import (
	"github.com/starford/timelapse/internal/landsat"
	"github.com/starford/timelapse/internal/models"
)

// SceneLedger defines the ledger operations used by the pipeline and the
// status surface. Consumers should depend on this interface rather than the
// concrete *DB type.
type SceneLedger interface {
	StartRun(year int, sat landsat.Satellite) (models.RunRecord, error)
	FinishRun(id string, scenes, failed int) error
	ListRuns(limit int) ([]models.RunRecord, error)
	UpsertScene(rec models.SceneRecord) error
	SetStatus(sceneID string, year int, status models.SceneStatus) error
	GetScene(sceneID string) (*models.SceneRecord, error)
	ListScenes(year int) ([]models.SceneRecord, error)
	Close() error
}

// Verify *DB satisfies SceneLedger at compile time.
var _ SceneLedger = (*DB)(nil)
