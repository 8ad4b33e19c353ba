package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of post-processing work.
type Task func(ctx context.Context) error

// RunTasks runs tasks on at most jobs goroutines and waits for all of
// them. The first error is returned. A failure does not cancel ctx, so
// tasks already running finish normally; tasks not yet started still run.
func RunTasks(ctx context.Context, jobs int, tasks []Task) error {
	var g errgroup.Group
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for _, task := range tasks {
		g.Go(func() error {
			return task(ctx)
		})
	}
	return g.Wait()
}
