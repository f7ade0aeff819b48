package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/timelapse/internal/apperr"
	"github.com/starford/timelapse/internal/landsat"
	"github.com/starford/timelapse/internal/models"
)

// StartRun records the start of a pass over year.
func (db *DB) StartRun(year int, sat landsat.Satellite) (models.RunRecord, error) {
	run := models.RunRecord{
		ID:        uuid.NewString(),
		Year:      year,
		Sensor:    sat.Sensor,
		Version:   sat.Version,
		StartedAt: time.Now().UTC(),
	}
	_, err := db.conn.Exec(`
		INSERT INTO runs (id, year, sensor, version, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Year, run.Sensor, run.Version, run.StartedAt)
	if err != nil {
		return models.RunRecord{}, fmt.Errorf("ledger: start run: %w", err)
	}
	return run, nil
}

// FinishRun stores the scene totals of a run and marks it finished.
func (db *DB) FinishRun(id string, scenes, failed int) error {
	res, err := db.conn.Exec(`
		UPDATE runs SET scenes = ?, failed = ?, finished_at = ? WHERE id = ?
	`, scenes, failed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("ledger: finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ledger: run %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns all.
func (db *DB) ListRuns(limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(`
		SELECT id, year, sensor, version, scenes, failed, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list runs: %w", err)
	}
	defer rows.Close()

	var out []models.RunRecord
	for rows.Next() {
		var r models.RunRecord
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Year, &r.Sensor, &r.Version, &r.Scenes, &r.Failed, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("ledger: scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertScene stores the outcome of processing a scene. An empty digest
// keeps the one recorded by an earlier download.
func (db *DB) UpsertScene(rec models.SceneRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO scenes (scene_id, year, status, last_error, archive_sha256, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(scene_id) DO UPDATE SET
			year           = excluded.year,
			status         = excluded.status,
			last_error     = excluded.last_error,
			archive_sha256 = CASE WHEN excluded.archive_sha256 != '' THEN excluded.archive_sha256 ELSE scenes.archive_sha256 END,
			updated_at     = excluded.updated_at
	`, rec.SceneID, rec.Year, string(rec.Status), rec.LastError, rec.ArchiveSHA256, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ledger: upsert scene: %w", err)
	}
	return nil
}

// SetStatus updates only the status of a scene, creating it if unknown.
func (db *DB) SetStatus(sceneID string, year int, status models.SceneStatus) error {
	_, err := db.conn.Exec(`
		INSERT INTO scenes (scene_id, year, status, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scene_id) DO UPDATE SET
			status     = excluded.status,
			updated_at = excluded.updated_at
		WHERE scenes.status != excluded.status
	`, sceneID, year, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ledger: set status: %w", err)
	}
	return nil
}

// GetScene returns the record of one scene.
func (db *DB) GetScene(sceneID string) (*models.SceneRecord, error) {
	row := db.conn.QueryRow(`
		SELECT scene_id, year, status, last_error, archive_sha256, updated_at
		FROM scenes WHERE scene_id = ?
	`, sceneID)
	rec, err := scanScene(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger: scene %s: %w", sceneID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get scene: %w", err)
	}
	return &rec, nil
}

// ListScenes returns the scenes of year ordered by id.
func (db *DB) ListScenes(year int) ([]models.SceneRecord, error) {
	rows, err := db.conn.Query(`
		SELECT scene_id, year, status, last_error, archive_sha256, updated_at
		FROM scenes WHERE year = ? ORDER BY scene_id
	`, year)
	if err != nil {
		return nil, fmt.Errorf("ledger: list scenes: %w", err)
	}
	defer rows.Close()

	var out []models.SceneRecord
	for rows.Next() {
		rec, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan scene: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScene(s scanner) (models.SceneRecord, error) {
	var rec models.SceneRecord
	var status string
	err := s.Scan(&rec.SceneID, &rec.Year, &status, &rec.LastError, &rec.ArchiveSHA256, &rec.UpdatedAt)
	rec.Status = models.SceneStatus(status)
	return rec, err
}
