package core

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	dberrors "github.com/vampirenirmal/deepbook/pkg/deepbook/errors"
)

// WorkerPool bounds the number of concurrent calls made by one fan-out.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a pool running at most workers tasks at once.
// workers <= 0 means no limit.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger.With("component", "worker_pool"),
	}
}

// FanOut runs fn for every item and returns the results in item order,
// whatever order the tasks finish in. Each task writes only its own slot.
//
// The first failure cancels the remaining tasks and is returned as a
// *errors.BatchError; no results are returned with it.
func FanOut[T, R any](ctx context.Context, pool *WorkerPool, stage Stage, items []T, key func(int, T) string, fn func(context.Context, int, T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		pool.logger.Debug("no items to process", "stage", stage)
		return []R{}, nil
	}

	start := time.Now()
	pool.logger.Info("starting fan-out",
		"stage", stage,
		"item_count", len(items),
		"worker_count", pool.workers)

	g, gctx := errgroup.WithContext(ctx)
	if pool.workers > 0 {
		g.SetLimit(pool.workers)
	}

	results := make([]R, len(items))
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			r, err := fn(gctx, i, item)
			if err != nil {
				pool.logger.Error("fan-out item failed",
					"stage", stage,
					"item", key(i, item),
					"error", err)
				return &dberrors.BatchError{
					Stage: string(stage),
					Key:   key(i, item),
					Total: len(items),
					Cause: err,
				}
			}

			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	pool.logger.Info("fan-out completed",
		"stage", stage,
		"result_count", len(results),
		"duration_ms", time.Since(start).Milliseconds())

	return results, nil
}
