// Package runner executes a batch of conversion tasks under a bounded
// concurrency gate, feeding the archive sink and the progress hub.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/omervk/ditherworks/pkg/pipeline"
	"github.com/omervk/ditherworks/pkg/progress"
)

// DefaultConcurrency is the number of tasks allowed in flight when the
// caller does not choose one.
const DefaultConcurrency = 2

// Task is one unit of work: a named source plus its requested crop offset
// and the archive entry name its output goes to.
type Task struct {
	FileName   string
	OutputName string
	Data       []byte
	Y          int
}

// Sink receives finished entries. Close finalizes the container and is
// called only after every task succeeded.
type Sink interface {
	Append(name string, data []byte) error
	Close() error
}

// Runner converts batches of tasks. The zero concurrency value selects
// DefaultConcurrency.
type Runner struct {
	pipe        *pipeline.Pipeline
	hub         *progress.Hub
	concurrency int64
	log         *slog.Logger
}

// New creates a runner around the given pipeline and progress hub.
func New(pipe *pipeline.Pipeline, hub *progress.Hub, concurrency int, log *slog.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{pipe: pipe, hub: hub, concurrency: int64(concurrency), log: log}
}

// Run converts all tasks, appending each output to the sink and reporting
// each completion to the progress hub. At most the configured number of
// tasks run concurrently; slots are granted in FIFO order.
//
// The batch is all-or-nothing: on the first failure no further tasks are
// dispatched, in-flight tasks finish but their results are discarded, the
// job is failed naming the first failing source, and the sink is left
// unfinalized. On success the sink is closed and the job completed.
func (r *Runner) Run(ctx context.Context, jobID string, tasks []Task, out Sink) error {
	total := len(tasks)
	r.hub.Start(jobID, total)
	r.log.Info("batch started", "job", jobID, "tasks", total, "concurrency", r.concurrency)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gate := semaphore.NewWeighted(r.concurrency)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		failure error
		current int
	)
	fail := func(err error) {
		mu.Lock()
		if failure == nil {
			failure = err
			cancel()
		}
		mu.Unlock()
	}

	for _, task := range tasks {
		// A canceled acquire means the batch already failed (or the caller
		// gave up); queued tasks are never started.
		if err := gate.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			defer gate.Release(1)

			encoded, err := r.pipe.Process(ctx, task.Data, task.Y)
			if err != nil {
				fail(fmt.Errorf("%s: %w", task.FileName, err))
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if failure != nil {
				// Batch already failed; this result never reaches the sink.
				return
			}
			if err := out.Append(task.OutputName, encoded); err != nil {
				failure = fmt.Errorf("%s: %w", task.OutputName, err)
				cancel()
				return
			}
			current++
			r.hub.Report(jobID, current, total, task.FileName)
		}(task)
	}
	wg.Wait()

	mu.Lock()
	err := failure
	appended := current
	mu.Unlock()
	if err == nil && appended != total {
		// Caller cancellation stopped dispatch before the batch finished. A
		// cancel arriving after the last entry was appended is ignored.
		err = ctx.Err()
	}
	if err == nil {
		err = out.Close()
	}
	if err != nil {
		r.log.Error("batch failed", "job", jobID, "error", err)
		r.hub.Fail(jobID, err.Error())
		return err
	}

	r.log.Info("batch completed", "job", jobID, "entries", total)
	r.hub.Complete(jobID)
	return nil
}
