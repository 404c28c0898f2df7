// Package schedule partitions testfiles into batches and fans the batches
// out across a bounded worker pool, delivering results strictly in input
// order.
package schedule

import (
	"context"
	"runtime"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/typeset-tools/textest/internal/result"
)

// Pipeline runs one batch of testfiles to completion. core.Runner is the
// real implementation.
type Pipeline interface {
	RunAll(ctx context.Context, files []string) ([]result.TestResult, error)
}

type Scheduler struct {
	pipeline  Pipeline
	batchSize int
	workers   int
}

// New returns a scheduler cutting files into batches of batchSize and
// running at most workers batches at once. workers below one means one per
// hardware execution unit.
func New(pipeline Pipeline, batchSize, workers int) *Scheduler {
	if batchSize < 1 {
		batchSize = 1
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Scheduler{pipeline: pipeline, batchSize: batchSize, workers: workers}
}

// batchOutcome is what one worker delivers: either the batch's results or a
// fatal pipeline error.
type batchOutcome struct {
	results []result.TestResult
	err     error
}

// Run streams one result per input file to yield, in input order. The first
// batch runs synchronously so the execution-context catalog is warm before
// workers fan out; the remaining batches run concurrently, each delivering
// into its own buffered channel, and the consumer drains the channels in
// submission order.
//
// A non-nil error from yield stops consumption immediately and becomes
// Run's return value. In-flight batches are not cancelled; their buffered
// sends simply go unread. A batch's own error aborts the run the same way.
func (s *Scheduler) Run(ctx context.Context, files []string, yield func(result.TestResult) error) error {
	batches := lo.Chunk(files, s.batchSize)
	if len(batches) == 0 {
		return nil
	}
	logrus.Debugf("The testfiles break down into %d batches", len(batches))

	warmup, err := s.pipeline.RunAll(ctx, batches[0])
	if err != nil {
		return err
	}
	for _, res := range warmup {
		if err := yield(res); err != nil {
			return err
		}
	}

	remaining := batches[1:]
	if len(remaining) == 0 {
		return nil
	}

	outcomes := make([]chan batchOutcome, len(remaining))
	for i := range outcomes {
		outcomes[i] = make(chan batchOutcome, 1)
	}

	// Workers deliver into per-batch buffered channels, so a batch abandoned
	// by an early return never blocks. The pool has no cancellation tied to
	// early returns either: stopping early must not kill the compilers
	// already running. The submitter goroutine feeds the pool while results
	// are consumed, and stops once the run is over.
	pool := new(errgroup.Group)
	pool.SetLimit(s.workers)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for i, batch := range remaining {
			select {
			case <-stop:
				return
			default:
			}
			pool.Go(func() error {
				results, err := s.pipeline.RunAll(ctx, batch)
				outcomes[i] <- batchOutcome{results: results, err: err}
				return nil
			})
		}
	}()

	for _, outcome := range outcomes {
		delivered := <-outcome
		if delivered.err != nil {
			return delivered.err
		}
		for _, res := range delivered.results {
			if err := yield(res); err != nil {
				return err
			}
		}
	}
	return pool.Wait()
}
