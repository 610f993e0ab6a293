package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of concurrent crawls when none is set.
const DefaultConcurrency = 1

// Factory builds the pipeline for one target. Each target gets its own
// pipeline because per-target configuration shapes the crawl request.
type Factory func(target string) (*Pipeline, error)

// BatchProcessor crawls several targets concurrently, each in its own
// pipeline, bounded by an errgroup limit.
type BatchProcessor struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch crawls all targets and returns one job per target, in input
// order. Failed targets carry their error in Job.Err; the returned error is
// non-nil only when the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*Job, error) {
	jobs := make([]*Job, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(job *Job) {
		// Each index is written by exactly one goroutine.
		jobs[job.Index] = job
	})
	return jobs, err
}

// ProcessBatchWithCallback crawls all targets and calls callback once per
// target as soon as its job ends. The callback runs on the worker goroutine
// and must be safe for concurrent use.
//
// Targets not yet started when ctx is cancelled are still reported, with
// Job.Err set to the context error.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(job *Job),
) error {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			job := NewJob(i, target)

			if err := gctx.Err(); err != nil {
				job.Err = err
				callback(job)
				return err
			}

			bp.logger.Info("collecting target",
				"url", target,
				"index", i+1,
				"total", len(targets),
			)

			p, err := bp.factory(target)
			if err != nil {
				job.Err = err
				callback(job)
				return nil
			}

			// Failures stay in the job so the other crawls continue.
			if err := p.Execute(gctx, job); err != nil {
				bp.logger.Warn("target failed", "url", target, "error", err)
			}
			callback(job)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	if err != nil {
		return err
	}
	return ctx.Err()
}
