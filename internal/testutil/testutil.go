// Package testutil provides shared test helpers for workspaces, ledgers and
// a recording stand-in for the external toolchain.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/timelapse/internal/ledger"
	"github.com/starford/timelapse/internal/workspace"
)

// TestLedger creates a temporary SQLite ledger that is automatically cleaned up.
func TestLedger(t *testing.T) *ledger.DB {
	t.Helper()
	db, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWorkspace creates a temporary output directory.
func TestWorkspace(t *testing.T) *workspace.FS {
	t.Helper()
	fs, err := workspace.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

// Touch creates name under dir with placeholder content.
func Touch(t *testing.T, dir *workspace.FS, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := dir.Write(name, []byte(name)); err != nil {
			t.Fatal(err)
		}
	}
}

// Snapshot returns the modification time of every file under dir, keyed by name.
func Snapshot(t *testing.T, dir *workspace.FS) map[string]int64 {
	t.Helper()
	names, err := dir.List()
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]int64, len(names))
	for _, name := range names {
		info, err := os.Stat(filepath.Join(dir.Root(), name))
		if err != nil {
			t.Fatal(err)
		}
		out[name] = info.ModTime().UnixNano()
	}
	return out
}
