package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/webpro/unbarrelify/pkg/analyzer"
)

// analyzeJob is a file to analyze; index is its position in the file list.
type analyzeJob struct {
	path  string
	index int
}

// analyzeResult is the outcome of one job.
type analyzeResult struct {
	index int
	rec   *analyzer.FileRecord
	err   error
}

// workerPool analyzes files on a fixed set of goroutines. Worker count
// should match the parser pool size so workers never wait on a parser.
//
//	pool := newWorkerPool(ctx, workers, a, logger)
//	pool.Start()
//	go func() {
//	    for i, f := range files {
//	        pool.Submit(analyzeJob{path: f, index: i})
//	    }
//	    pool.FinishSubmitting()
//	}()
//	for range files {
//	    res := <-pool.Results()
//	}
//	pool.Stop()
type workerPool struct {
	numWorkers int
	jobs       chan analyzeJob
	results    chan analyzeResult
	wg         sync.WaitGroup
	analyzer   *analyzer.Analyzer
	logger     *slog.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	started    atomic.Bool
	stopped    atomic.Bool
	jobsClosed atomic.Bool

	jobsSubmitted atomic.Int64
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
}

func newWorkerPool(ctx context.Context, numWorkers int, a *analyzer.Analyzer, logger *slog.Logger) *workerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &workerPool{
		numWorkers: numWorkers,
		jobs:       make(chan analyzeJob, numWorkers*2),
		results:    make(chan analyzeResult, numWorkers),
		analyzer:   a,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start spawns the workers. Calling it twice is a no-op.
func (wp *workerPool) Start() {
	if !wp.started.CompareAndSwap(false, true) {
		return
	}
	wp.logger.Debug("starting worker pool", "workers", wp.numWorkers)
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *workerPool) worker(id int) {
	defer wp.wg.Done()
	for {
		select {
		case <-wp.ctx.Done():
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			rec, err := wp.analyzer.Analyze(job.path)
			if err != nil {
				wp.jobsFailed.Add(1)
			} else {
				wp.jobsProcessed.Add(1)
			}
			select {
			case wp.results <- analyzeResult{index: job.index, rec: rec, err: err}:
			case <-wp.ctx.Done():
				wp.logger.Debug("worker cancelled", "worker_id", id)
				return
			}
		}
	}
}

// Submit enqueues a job, blocking while the queue is full.
func (wp *workerPool) Submit(job analyzeJob) error {
	if wp.stopped.Load() {
		return fmt.Errorf("worker pool is stopped")
	}
	wp.jobsSubmitted.Add(1)
	select {
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool cancelled: %w", wp.ctx.Err())
	case wp.jobs <- job:
		return nil
	}
}

// Results delivers one result per submitted job, in completion order.
func (wp *workerPool) Results() <-chan analyzeResult {
	return wp.results
}

// Done is closed when the pool's context is cancelled.
func (wp *workerPool) Done() <-chan struct{} {
	return wp.ctx.Done()
}

// FinishSubmitting closes the queue. Safe to call more than once.
func (wp *workerPool) FinishSubmitting() {
	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
	}
}

// Stop cancels outstanding work and waits for the workers to exit. Safe to
// call more than once. The job queue is left to the submitter to close, so a
// Submit racing with Stop never sends on a closed channel.
func (wp *workerPool) Stop() {
	if !wp.stopped.CompareAndSwap(false, true) {
		return
	}
	wp.cancel()
	wp.wg.Wait()
	close(wp.results)

	wp.logger.Debug("worker pool stopped",
		"jobs_submitted", wp.jobsSubmitted.Load(),
		"jobs_processed", wp.jobsProcessed.Load(),
		"jobs_failed", wp.jobsFailed.Load())
}

// poolStats is a snapshot of the pool's counters.
type poolStats struct {
	JobsSubmitted int64
	JobsProcessed int64
	JobsFailed    int64
}

func (wp *workerPool) GetStats() poolStats {
	return poolStats{
		JobsSubmitted: wp.jobsSubmitted.Load(),
		JobsProcessed: wp.jobsProcessed.Load(),
		JobsFailed:    wp.jobsFailed.Load(),
	}
}

// analyzeParallel analyzes files on a worker pool and returns the results in
// file order. On cancellation it returns what finished, still in order.
func analyzeParallel(ctx context.Context, files []string, workers int, a *analyzer.Analyzer, logger *slog.Logger) []analyzeResult {
	pool := newWorkerPool(ctx, workers, a, logger)
	pool.Start()
	defer pool.Stop()

	go func() {
		defer pool.FinishSubmitting()
		for i, f := range files {
			if err := pool.Submit(analyzeJob{path: f, index: i}); err != nil {
				return
			}
		}
	}()

	slots := make([]*analyzeResult, len(files))
	for received := 0; received < len(files); received++ {
		select {
		case res := <-pool.Results():
			slots[res.index] = &res
		case <-pool.Done():
			received = len(files)
		}
	}

	out := make([]analyzeResult, 0, len(files))
	for _, res := range slots {
		if res != nil {
			out = append(out, *res)
		}
	}
	return out
}
