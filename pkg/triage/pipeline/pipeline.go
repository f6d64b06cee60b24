// Package pipeline provides a reference job runner for the classification
// stage: a bounded pool of workers, each owning one classifier instance,
// consuming file units from a shared queue. It exists so the stage can be
// exercised end to end; production schedulers can replace it by
// implementing work.Pipeline themselves.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jamesainslie/triage/pkg/triage/classifier"
	"github.com/jamesainslie/triage/pkg/triage/findings"
	"github.com/jamesainslie/triage/pkg/triage/jobscope"
	"github.com/jamesainslie/triage/pkg/triage/logging"
	"github.com/jamesainslie/triage/pkg/triage/notify"
	"github.com/jamesainslie/triage/pkg/triage/ruledefs"
	"github.com/jamesainslie/triage/pkg/triage/types"
	"github.com/jamesainslie/triage/pkg/triage/work"
)

// DefaultWorkers is the worker count used when none is configured.
const DefaultWorkers = 4

// queueDepth is the file unit queue capacity.
const queueDepth = 256

// Deps are the collaborators a job needs.
type Deps struct {
	// Definitions supplies the rule set definitions.
	Definitions ruledefs.Provider

	// Snapshots is the shared per-job snapshot registry. Jobs running in
	// the same process must share one registry.
	Snapshots *jobscope.Registry[classifier.Snapshot]

	// Stores hands out the findings store.
	Stores findings.Provider

	// Notifier receives match notifications.
	Notifier *notify.Notifier

	// Settings control which rule sets the job enables.
	Settings classifier.Settings
}

// Stats summarize one job run.
type Stats struct {
	// FilesProcessed is the number of files that completed processing.
	FilesProcessed int64

	// FileErrors is the number of files that returned an error result.
	FileErrors int64

	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// Job runs the classification stage over a batch of files with a bounded
// worker pool. Job implements work.Pipeline.
type Job struct {
	id      int64
	workers int
	deps    Deps

	mu          sync.RWMutex
	classifiers map[int64]*classifier.Classifier

	processed atomic.Int64
	errored   atomic.Int64
}

// NewJob creates a job with the given id and worker count.
func NewJob(id int64, workers int, deps Deps) *Job {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Job{
		id:          id,
		workers:     workers,
		deps:        deps,
		classifiers: make(map[int64]*classifier.Classifier),
	}
}

// JobID returns the job's stable identifier.
func (j *Job) JobID() int64 {
	return j.id
}

// Execute routes a dispatched unit to the classifier owned by the worker
// that executed it. Unknown unit kinds are counted as file errors.
func (j *Job) Execute(u work.Unit) {
	workerID, ok := u.Worker()
	if !ok {
		// Unit reached the pipeline without dispatch; nothing to do.
		return
	}

	j.mu.RLock()
	c := j.classifiers[workerID]
	j.mu.RUnlock()
	if c == nil {
		return
	}

	switch unit := u.(type) {
	case *work.FileUnit:
		result := c.Process(unit.File())
		j.processed.Add(1)
		if result == classifier.ResultError {
			j.errored.Add(1)
		}
	default:
		logging.Get("pipeline").Warn("unsupported unit kind", "job_id", j.id)
	}
}

// Run processes the given files and blocks until all workers finish or the
// context is cancelled. Each worker starts its own classifier; a startup
// failure on any worker cancels the run and is returned. Cancellation
// takes effect between files, never inside one.
func (j *Job) Run(ctx context.Context, files []types.FileRef) (Stats, error) {
	start := time.Now()
	logger := logging.Get("pipeline")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan work.Unit, queueDepth)
	errs := make([]error, j.workers)

	var wg sync.WaitGroup
	for i := 0; i < j.workers; i++ {
		workerID := int64(i + 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[workerID-1] = j.runWorker(ctx, cancel, workerID, queue)
		}()
	}

	// Enqueue one file unit per file. Stops early on cancellation.
enqueue:
	for _, f := range files {
		select {
		case queue <- work.NewFileUnit(j, f):
		case <-ctx.Done():
			break enqueue
		}
	}
	close(queue)
	wg.Wait()

	stats := Stats{
		FilesProcessed: j.processed.Load(),
		FileErrors:     j.errored.Load(),
		Elapsed:        time.Since(start),
	}
	logger.Info("job finished",
		"job_id", j.id,
		"files", stats.FilesProcessed,
		"errors", stats.FileErrors,
		"elapsed", stats.Elapsed)

	return stats, errors.Join(errs...)
}

// runWorker starts a classifier for one worker, consumes units until the
// queue closes, and shuts the classifier down. A startup failure cancels
// the whole run.
func (j *Job) runWorker(ctx context.Context, cancel context.CancelFunc, workerID int64, queue <-chan work.Unit) error {
	c := classifier.New(j.id, j.deps.Settings, j.deps.Definitions, j.deps.Snapshots, j.deps.Stores, j.deps.Notifier)
	if err := c.StartUp(); err != nil {
		cancel()
		return fmt.Errorf("worker %d: %w", workerID, err)
	}
	defer c.ShutDown()

	j.mu.Lock()
	j.classifiers[workerID] = c
	j.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case unit, ok := <-queue:
			if !ok {
				return nil
			}
			if err := unit.Execute(workerID); err != nil {
				logging.Get("pipeline").Error("executing unit", "job_id", j.id, "worker", workerID, "error", err)
			}
		}
	}
}

// Ensure Job implements work.Pipeline.
var _ work.Pipeline = (*Job)(nil)
