package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/timelapse/internal/workspace"
)

// Tar extracts scene archives with the tar utility.
type Tar struct {
	runner Runner
	cmd    string
}

// NewTar creates an extractor using the given tar executable.
func NewTar(runner Runner, cmd string) *Tar {
	if cmd == "" {
		cmd = "tar"
	}
	return &Tar{runner: runner, cmd: cmd}
}

// Extract unpacks archive into dir, renaming every member so that everything
// up to its last underscore becomes the scene id: LC80440342013106LGN01_B5.TIF
// and L1T_B5.TIF both land as <sceneID>_B5.TIF.
//
// Members are unpacked into a partial directory and moved into dir only
// after tar exits cleanly, so a truncated archive leaves no band behind.
func (t *Tar) Extract(ctx context.Context, archive, sceneID, dir string) error {
	staging := StagingDir(dir, sceneID)
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("extract: clear staging: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("extract: create staging: %w", err)
	}
	defer os.RemoveAll(staging)

	if _, err := t.runner.Run(ctx, "extract", t.cmd,
		"-C", staging,
		fmt.Sprintf("--transform=s/^.*_/%s_/", sceneID),
		"-xf", archive); err != nil {
		return err
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		return fmt.Errorf("extract: read staging: %w", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Rename(filepath.Join(staging, e.Name()), filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("extract: move %s: %w", e.Name(), err)
		}
	}
	return nil
}

// StagingDir is the partial directory a scene's archive is unpacked into.
func StagingDir(dir, sceneID string) string {
	return workspace.PartialPath(filepath.Join(dir, sceneID))
}
