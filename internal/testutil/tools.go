package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/starford/timelapse/internal/apperr"
	"github.com/starford/timelapse/internal/landsat"
	"github.com/starford/timelapse/internal/workspace"
)

// ArchiveBands is every band name any generation stacks into a composite.
var ArchiveBands = []string{
	"B1", "B2", "B3", "B4", "B5", "B6", "B7",
	"B10", "B20", "B30", "B40", "B50", "B70",
}

// Call is one recorded toolchain invocation.
type Call struct {
	Op   string
	Dst  string
	Srcs []string
	// Width and Height are the requested output size of a resize.
	Width, Height int
}

// Tools implements the retriever, extractor and raster interfaces by writing
// placeholder output files, so filesystem probes see what the real tools
// would leave behind. It is safe for concurrent use.
type Tools struct {
	// Width and Height are reported by Dimensions for every file not listed in Sizes.
	Width, Height int
	Sizes         map[string][2]int

	mu    sync.Mutex
	calls []Call
	fail  map[string]string
}

// NewTools returns a toolchain reporting 100x100 rasters.
func NewTools() *Tools {
	return &Tools{Width: 100, Height: 100, Sizes: map[string][2]int{}, fail: map[string]string{}}
}

// FailOn makes op fail whenever its destination base name contains substr.
func (f *Tools) FailOn(op, substr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = substr
}

// Heal clears every configured failure.
func (f *Tools) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = map[string]string{}
}

// Calls returns the recorded invocations.
func (f *Tools) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Count returns how many times op was invoked.
func (f *Tools) Count(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset forgets the recorded invocations.
func (f *Tools) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *Tools) record(op, dst string, srcs ...string) error {
	return f.recordCall(Call{Op: op, Dst: dst, Srcs: srcs})
}

func (f *Tools) recordCall(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if substr, ok := f.fail[c.Op]; ok && strings.Contains(filepath.Base(c.Dst), substr) {
		return fmt.Errorf("%w: %s %s: injected failure", apperr.ErrExternalOperation, c.Op, filepath.Base(c.Dst))
	}
	return nil
}

func write(path string) error {
	return os.WriteFile(path, []byte(filepath.Base(path)), 0o644)
}

// Retrieve writes an archive named after the scene.
func (f *Tools) Retrieve(_ context.Context, ref landsat.ArchiveRef, dir *workspace.FS) (string, error) {
	name := ref.SceneID + ".tar.bz"
	if err := f.record("retrieve", name); err != nil {
		return "", err
	}
	return dir.WriteFrom(name, strings.NewReader(name))
}

// Extract writes one file per ArchiveBands entry.
func (f *Tools) Extract(_ context.Context, archive, sceneID, dir string) error {
	if err := f.record("extract", dir, archive); err != nil {
		return err
	}
	if _, err := os.Stat(archive); err != nil {
		return fmt.Errorf("%w: extract: %v", apperr.ErrExternalOperation, err)
	}
	for _, b := range ArchiveBands {
		if err := write(filepath.Join(dir, sceneID+"_"+b+".TIF")); err != nil {
			return err
		}
	}
	return nil
}

func (f *Tools) produce(op, dst string, srcs ...string) error {
	if err := f.record(op, dst, srcs...); err != nil {
		return err
	}
	return f.output(op, dst, srcs...)
}

// output checks that srcs exist and writes dst.
func (f *Tools) output(op, dst string, srcs ...string) error {
	for _, src := range srcs {
		if _, err := os.Stat(src); err != nil {
			return fmt.Errorf("%w: %s: missing input: %v", apperr.ErrExternalOperation, op, err)
		}
	}
	return write(dst)
}

// Rescale writes dst.
func (f *Tools) Rescale(_ context.Context, src, dst string, _ int) error {
	return f.produce("rescale", dst, src)
}

// Reproject writes dst.
func (f *Tools) Reproject(_ context.Context, src, dst, _, _ string) error {
	return f.produce("reproject", dst, src)
}

// Merge writes dst.
func (f *Tools) Merge(_ context.Context, dst string, srcs ...string) error {
	return f.produce("merge", dst, srcs...)
}

// Resize writes dst and records the requested size.
func (f *Tools) Resize(_ context.Context, src, dst string, width, height int) error {
	if err := f.recordCall(Call{Op: "resize", Dst: dst, Srcs: []string{src}, Width: width, Height: height}); err != nil {
		return err
	}
	return f.output("resize", dst, src)
}

// Median writes dst.
func (f *Tools) Median(_ context.Context, dst string, srcs ...string) error {
	if len(srcs) == 0 {
		return errors.New("median: no inputs")
	}
	return f.produce("median", dst, srcs...)
}

// Dimensions reports the configured size of path.
func (f *Tools) Dimensions(_ context.Context, path string) (int, int, error) {
	if err := f.record("dimensions", path); err != nil {
		return 0, 0, err
	}
	if _, err := os.Stat(path); err != nil {
		return 0, 0, fmt.Errorf("%w: dimensions: %v", apperr.ErrExternalOperation, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.Sizes[filepath.Base(path)]; ok {
		return s[0], s[1], nil
	}
	return f.Width, f.Height, nil
}
