package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// BatchOptions controls ExecuteMany.
type BatchOptions struct {
	// Parallel is the number of requests run at once. Values <= 1 run
	// requests one after another.
	Parallel int

	// StopOnError stops after the first failure. Requests that never ran
	// are reported as failed with context.Canceled.
	StopOnError bool
}

// Batch is the outcome of ExecuteMany.
type Batch struct {
	// ID is shared by every record the batch committed.
	ID      string
	Results []Result
}

// Failed returns the results that did not commit.
func (b Batch) Failed() []Result {
	var out []Result
	for _, r := range b.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Committed returns the number of committed requests.
func (b Batch) Committed() int {
	n := 0
	for _, r := range b.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// ExecuteMany runs reqs and returns one result per request, in request
// order. With Parallel > 1 requests run in chunks of that size on a worker
// pool, and the stop policy is checked after each chunk.
func (e *Executor) ExecuteMany(ctx context.Context, reqs []Request, opts BatchOptions) (Batch, error) {
	batch := Batch{ID: uuid.NewString(), Results: make([]Result, len(reqs))}
	log := e.logger.With("batch", batch.ID)
	log.Info("executing batch", "requests", len(reqs), "parallel", opts.Parallel)

	stopped := func(from int) {
		for i := from; i < len(reqs); i++ {
			batch.Results[i] = Result{
				Request: reqs[i],
				State:   StateFailed,
				Err:     types.NewOpError(string(reqs[i].Type()), reqs[i].Source(), types.ErrIO, context.Canceled),
			}
		}
	}

	if opts.Parallel <= 1 {
		for i, req := range reqs {
			batch.Results[i] = e.execute(ctx, req, batch.ID)
			if !batch.Results[i].OK() && opts.StopOnError {
				log.Warn("stopping batch after failure", "index", i)
				stopped(i + 1)
				break
			}
		}
		return batch, nil
	}

	pool, err := ants.NewPool(opts.Parallel)
	if err != nil {
		return batch, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	for start := 0; start < len(reqs); start += opts.Parallel {
		end := min(start+opts.Parallel, len(reqs))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				batch.Results[i] = e.execute(ctx, reqs[i], batch.ID)
			}); err != nil {
				wg.Done()
				batch.Results[i] = Result{
					Request: reqs[i],
					State:   StateFailed,
					Err:     types.NewOpError(string(reqs[i].Type()), reqs[i].Source(), types.ErrIO, err),
				}
			}
		}
		wg.Wait()

		if opts.StopOnError && len(Batch{Results: batch.Results[start:end]}.Failed()) > 0 {
			log.Warn("stopping batch after failed chunk", "chunk_start", start)
			stopped(end)
			break
		}
	}
	return batch, nil
}
