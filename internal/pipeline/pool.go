// Package pipeline runs scenes concurrently and builds the per-year
// aggregate composites.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/timelapse/internal/observability"
	"github.com/starford/timelapse/internal/scene"
)

// DefaultWorkers is the number of scenes processed at once.
const DefaultWorkers = 8

// Job is one scene to process.
type Job struct {
	SceneID string
	Run     func(ctx context.Context) (scene.Outcome, error)
}

// Result is the outcome of one job.
type Result struct {
	SceneID  string
	Outcome  scene.Outcome
	Err      error
	Duration time.Duration
}

// Pool drains a queue of jobs with a fixed number of workers.
type Pool struct {
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPool creates a pool. A non-positive worker count means DefaultWorkers.
func NewPool(workers int, logger *slog.Logger, metrics *observability.Metrics) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{workers: workers, logger: logger, metrics: metrics}
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

type indexed struct {
	pos int
	res Result
}

// Run processes every job and returns their results in job order once all
// workers have finished. A failing job does not stop the others. After ctx
// is cancelled no further jobs are started, so the result list may be
// shorter than jobs.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	queue := make(chan int, len(jobs))
	for i := range jobs {
		queue <- i
	}
	close(queue)
	p.metrics.SetQueueDepth(len(jobs))

	workers := min(p.workers, len(jobs))
	collected := make([][]indexed, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range queue {
				if ctx.Err() != nil {
					return nil
				}
				p.metrics.SetQueueDepth(len(queue))
				job := jobs[i]
				start := time.Now()
				out, err := job.Run(ctx)
				res := Result{SceneID: job.SceneID, Outcome: out, Err: err, Duration: time.Since(start)}
				if err != nil {
					p.logger.Warn("pool: scene failed",
						slog.String("scene_id", job.SceneID),
						slog.Int("worker", w),
						slog.String("error", err.Error()))
				} else {
					p.logger.Info("pool: scene done",
						slog.String("scene_id", job.SceneID),
						slog.Int("worker", w),
						slog.String("status", string(out.Status)),
						slog.Duration("took", res.Duration))
				}
				collected[w] = append(collected[w], indexed{pos: i, res: res})
			}
			return nil
		})
	}
	_ = g.Wait()

	var merged []indexed
	for _, part := range collected {
		merged = append(merged, part...)
	}
	sort.Slice(merged, func(a, b int) bool { return merged[a].pos < merged[b].pos })

	out := make([]Result, len(merged))
	for i, m := range merged {
		out[i] = m.res
	}
	return out
}
