// Package models defines the domain records shared by the ledger and the status surface.
package models

import "time"

// SceneStatus is the furthest pipeline step a scene's files show as complete.
type SceneStatus string

const (
	StatusPending    SceneStatus = "pending"
	StatusDownloaded SceneStatus = "downloaded"
	StatusExtracted  SceneStatus = "extracted"
	StatusProjected  SceneStatus = "projected"
	StatusComposited SceneStatus = "composited"
)

// Done reports whether the scene has its composite.
func (s SceneStatus) Done() bool {
	return s == StatusComposited
}

// SceneRecord is the last known state of one scene.
type SceneRecord struct {
	SceneID       string      `json:"scene_id"`
	Year          int         `json:"year"`
	Status        SceneStatus `json:"status"`
	LastError     string      `json:"last_error,omitempty"`
	ArchiveSHA256 string      `json:"archive_sha256,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// RunRecord summarizes one pass over a year.
type RunRecord struct {
	ID         string     `json:"id"`
	Year       int        `json:"year"`
	Sensor     string     `json:"sensor"`
	Version    int        `json:"version"`
	Scenes     int        `json:"scenes"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
