// Package toolchain invokes the external archive and raster tools the
// pipeline depends on (tar and the GDAL command-line utilities).
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/starford/timelapse/internal/apperr"
	"github.com/starford/timelapse/internal/observability"
)

// Runner executes one external command.
type Runner interface {
	// Run executes name with args, returning its standard output.
	Run(ctx context.Context, op, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewExecRunner creates a Runner backed by os/exec. metrics may be nil.
func NewExecRunner(logger *slog.Logger, metrics *observability.Metrics) *ExecRunner {
	return &ExecRunner{logger: logger, metrics: metrics}
}

// Run executes the command and reports a non-zero exit status as
// ErrExternalOperation, with the tail of stderr attached.
func (r *ExecRunner) Run(ctx context.Context, op, name string, args ...string) ([]byte, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("toolchain: run", slog.String("op", op), slog.String("cmd", name+" "+strings.Join(args, " ")))

	err := cmd.Run()
	if err != nil {
		err = fmt.Errorf("%w: %s: %v: %s", apperr.ErrExternalOperation, op, err, tail(stderr.String(), 512))
	}
	r.metrics.ObserveExternal(op, start, err)
	if err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
