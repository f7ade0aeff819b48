// Package workspace manages the on-disk output tree of a time-lapse run.
//
// The files themselves are the pipeline's only state: every probe in the
// scene package is an existence check against an FS.
package workspace

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FS is a directory on the local file system.
type FS struct {
	root string // absolute path
}

// Open returns an FS rooted at dir, creating it if needed.
func Open(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: mkdir root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute directory of f.
func (f *FS) Root() string {
	return f.root
}

// Sub returns an FS for the named subdirectory, creating it if needed.
func (f *FS) Sub(name string) (*FS, error) {
	abs, err := f.Path(name)
	if err != nil {
		return nil, err
	}
	return Open(abs)
}

// Path resolves name against the root and rejects any result that escapes it.
func (f *FS) Path(name string) (string, error) {
	if name == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("workspace: absolute paths not allowed: %s", name)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("workspace: path escapes root: %s", name)
	}
	return abs, nil
}

// Exists reports whether name is present.
func (f *FS) Exists(name string) bool {
	p, err := f.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Glob returns the sorted names (relative to the root) matching pattern.
// Partial outputs are never matched.
func (f *FS) Glob(pattern string) ([]string, error) {
	if strings.ContainsRune(pattern, os.PathSeparator) {
		return nil, fmt.Errorf("workspace: glob must not contain a separator: %s", pattern)
	}
	matches, err := filepath.Glob(filepath.Join(f.root, pattern))
	if err != nil {
		return nil, fmt.Errorf("workspace: glob %s: %w", pattern, err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		name := filepath.Base(m)
		if IsPartial(name) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// List returns the sorted names of the regular files directly under the root.
func (f *FS) List() ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("workspace: list: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || IsPartial(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

// Write atomically writes content to name.
func (f *FS) Write(name string, content []byte) error {
	_, err := f.WriteFrom(name, bytes.NewReader(content))
	return err
}

// WriteFrom atomically streams r into name: partial file → fsync → rename.
// It returns the hex SHA-256 of the bytes written.
func (f *FS) WriteFrom(name string, r io.Reader) (string, error) {
	abs, err := f.Path(name)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("workspace: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, partialPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("workspace: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), r); err != nil {
		return "", fmt.Errorf("workspace: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("workspace: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("workspace: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return "", fmt.Errorf("workspace: rename: %w", err)
	}
	success = true
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Remove deletes name. A missing file is not an error.
func (f *FS) Remove(name string) error {
	abs, err := f.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("workspace: remove %s: %w", name, err)
	}
	return nil
}

const partialPrefix = ".partial-"

// PartialPath returns the in-progress path for an absolute output path.
// Producers write there and Commit the result, so a failed step never
// leaves a file that satisfies an existence probe.
func PartialPath(dst string) string {
	return filepath.Join(filepath.Dir(dst), partialPrefix+filepath.Base(dst))
}

// Commit renames the partial file of dst into place.
func Commit(dst string) error {
	if err := os.Rename(PartialPath(dst), dst); err != nil {
		return fmt.Errorf("workspace: commit %s: %w", filepath.Base(dst), err)
	}
	return nil
}

// Discard removes the partial file of dst, if any.
func Discard(dst string) {
	_ = os.Remove(PartialPath(dst))
}

// IsPartial reports whether a base name belongs to an in-progress write.
func IsPartial(name string) bool {
	return strings.HasPrefix(name, partialPrefix)
}
