package extract

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is one binary in a batch.
type Job struct {
	Name    string
	Input   string
	// Output is where the stream is written; empty keeps it in memory only.
	Output  string
	Options Options
}

// JobResult is the outcome of one job. Exactly one of Err and a Done Result
// describes it.
type JobResult struct {
	Err     error
	Result  *Result
	Job     Job
	Elapsed time.Duration
}

// BatchOptions bounds a batch.
type BatchOptions struct {
	// Workers limits concurrent runs; zero uses GOMAXPROCS.
	Workers int
	// RunTimeout bounds each run independently; zero means no timeout.
	RunTimeout time.Duration
}

// Batch extracts every job on a bounded worker pool. Runs share no mutable
// state and a failing job never stops the others; results are returned in
// job order.
func Batch(ctx context.Context, jobs []Job, opts BatchOptions) []JobResult {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]JobResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, job := range jobs {
		g.Go(func() error {
			results[i] = runJob(ctx, job, opts.RunTimeout)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	Logger().Info("batch finished",
		zap.Int("jobs", len(jobs)),
		zap.Int("failed", failed),
		zap.Int("workers", workers))
	return results
}

func runJob(ctx context.Context, job Job, timeout time.Duration) (jr JobResult) {
	jr.Job = job
	start := time.Now()
	defer func() {
		if x := recover(); x != nil {
			jr.Result = nil
			jr.Err = fmt.Errorf("extract %s: panic: %v", job.Input, x)
		}
		jr.Elapsed = time.Since(start)
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := Extract(ctx, job.Input, job.Options)
	jr.Result = res
	if err != nil {
		jr.Err = err
		return jr
	}
	if job.Output != "" {
		if err := WriteStream(job.Output, res.Stream); err != nil {
			jr.Err = err
		}
	}
	return jr
}
