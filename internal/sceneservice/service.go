// Package sceneservice answers status questions about runs, scenes and
// satellite generations for the HTTP and MCP surfaces.
package sceneservice

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/starford/timelapse/internal/apperr"
	"github.com/starford/timelapse/internal/landsat"
	"github.com/starford/timelapse/internal/ledger"
	"github.com/starford/timelapse/internal/models"
	"github.com/starford/timelapse/internal/workspace"
)

// SceneDetail is the full representation of a scene.
type SceneDetail struct {
	models.SceneRecord
	Identifier landsat.SceneID   `json:"identifier"`
	Satellite  landsat.Satellite `json:"satellite"`
	Bands      []string          `json:"bands"`
	Files      []string          `json:"files"`
}

// SatelliteInfo describes the generation used for a year.
type SatelliteInfo struct {
	Year         int               `json:"year"`
	Satellite    landsat.Satellite `json:"satellite"`
	Name         string            `json:"name"`
	SensorID     string            `json:"sensor_id,omitempty"`
	SensorError  string            `json:"sensor_error,omitempty"`
	ProductCode  string            `json:"product_code"`
	Bands        []string          `json:"bands"`
	NaturalBands []string          `json:"natural_bands"`
	UrbanBands   []string          `json:"urban_bands,omitempty"`
	NeedsRescale bool              `json:"needs_rescale"`
}

// Service reads the ledger and the output tree.
type Service struct {
	db          ledger.SceneLedger
	root        *workspace.FS
	combination landsat.Combination
}

// NewService creates a new scene service.
func NewService(db ledger.SceneLedger, root *workspace.FS, combination landsat.Combination) *Service {
	return &Service{db: db, root: root, combination: combination}
}

// ListRuns returns the most recent runs first.
func (s *Service) ListRuns(_ context.Context, limit int) ([]models.RunRecord, error) {
	runs, err := s.db.ListRuns(limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []models.RunRecord{}
	}
	return runs, nil
}

// ListScenes returns the recorded scenes of year.
func (s *Service) ListScenes(_ context.Context, year int) ([]models.SceneRecord, error) {
	recs, err := s.db.ListScenes(year)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []models.SceneRecord{}
	}
	return recs, nil
}

// GetScene returns the recorded state of a scene and the files it has on disk.
func (s *Service) GetScene(_ context.Context, token string) (*SceneDetail, error) {
	id, err := landsat.ParseSceneID(token)
	if err != nil {
		return nil, err
	}
	rec, err := s.db.GetScene(id.Token)
	if err != nil {
		return nil, err
	}
	sat := id.Satellite()
	files, err := s.sceneFiles(rec.Year, id.Token)
	if err != nil {
		return nil, err
	}
	return &SceneDetail{
		SceneRecord: *rec,
		Identifier:  id,
		Satellite:   sat,
		Bands:       sat.Bands(s.combination),
		Files:       files,
	}, nil
}

func (s *Service) sceneFiles(year int, id string) ([]string, error) {
	name := strconv.Itoa(year)
	if s.root == nil || !s.root.Exists(name) {
		return []string{}, nil
	}
	dir, err := s.root.Sub(name)
	if err != nil {
		return nil, err
	}
	files, err := dir.Glob(id + "*")
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []string{}
	}
	return files, nil
}

// ParseScene splits a scene identifier into its fields.
func (s *Service) ParseScene(_ context.Context, token string) (landsat.SceneID, error) {
	return landsat.ParseSceneID(token)
}

// SatelliteForYear describes the generation preferred for year. An unmapped
// catalog sensor is reported in the result rather than as an error.
func (s *Service) SatelliteForYear(_ context.Context, year int) (*SatelliteInfo, error) {
	if year < 1 || year > 9999 {
		return nil, fmt.Errorf("%w: year %d", apperr.ErrInvalidArgument, year)
	}
	sat := landsat.ForYear(year)
	info := &SatelliteInfo{
		Year:         year,
		Satellite:    sat,
		Name:         sat.String(),
		ProductCode:  sat.ProductCode(),
		Bands:        sat.Bands(s.combination),
		NaturalBands: sat.NaturalColorBands(),
		NeedsRescale: sat.NeedsRescale(),
	}
	info.UrbanBands, _ = sat.UrbanFalseColorBands()
	sensorID, err := sat.MetadataSensorID()
	switch {
	case errors.Is(err, apperr.ErrUnmappedSensorGeneration):
		info.SensorError = err.Error()
	case err != nil:
		return nil, err
	default:
		info.SensorID = sensorID
	}
	return info, nil
}
