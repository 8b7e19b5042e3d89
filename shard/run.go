package shard

import (
	"container/heap"
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// MapFunc is user code invoked once per region within a shard, with
// args already projected onto that region by Run. Its return value is
// passed to Reduce in strict shard (then region) order.
type MapFunc func(ctx context.Context, args []any) (any, error)

// ReduceFunc folds one shard's map result into the running
// accumulator, called strictly in ascending shard order. acc is nil
// on the first call.
type ReduceFunc func(acc, result any) any

// Config controls a sharded Run.
type Config struct {
	// Procs bounds the number of shards executed concurrently. Zero
	// means unbounded (errgroup.SetLimit is not called).
	Procs int
}

// regionResult is one (map return value, per-arg ReduceData payload)
// pair, produced for each region inside a shard — a shard is a list
// of regions precisely so a "super-shard" can run several map calls
// serially inside one worker, ported from sharder.py's apply(), which
// loops "for cse in shd".
type regionResult struct {
	rv      any
	reduced []any
}

type shardResult struct {
	index   int
	regions []regionResult
}

type resultHeap []shardResult

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].index < h[j].index }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)         { *h = append(*h, x.(shardResult)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Run partitions shards across a bounded worker pool, calling mapFn
// once per region of each shard with args projected (via Projectable)
// onto that region, then draining results in strict ascending shard
// order: reduceFn folds each map return value into the accumulator,
// and every Accumulable argument receives the ReduceData payload of
// its own projection, exactly as sharder.py's Sharder.run does with
// its min-heap-buffered imap_unordered loop. The first map error
// cancels the shards that have not started yet and is returned,
// wrapped with the failing shard and region index via
// github.com/pkg/errors so the error crossing the goroutine boundary
// keeps a stack trace. An Accumulate error is returned at once,
// wrapped with its shard index; shards already running are not
// cancelled.
func Run(ctx context.Context, shards [][]Region, args []any, mapFn MapFunc, reduceFn ReduceFunc, cfg Config) (any, error) {
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Procs > 0 {
		g.SetLimit(cfg.Procs)
	}

	results := make(chan shardResult, len(shards))
	for i, regions := range shards {
		i, regions := i, regions
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			rrs := make([]regionResult, len(regions))
			for k, region := range regions {
				projected := make([]any, len(args))
				for j, a := range args {
					projected[j] = project(a, region)
				}
				rv, err := mapFn(gctx, projected)
				if err != nil {
					return errors.Wrapf(err, "shard %d region %d", i, k)
				}
				reduced := make([]any, len(projected))
				for j, a := range projected {
					reduced[j] = reduceData(a)
				}
				rrs[k] = regionResult{rv: rv, reduced: reduced}
			}
			results <- shardResult{index: i, regions: rrs}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	var acc any
	h := &resultHeap{}
	next := 0
	for r := range results {
		heap.Push(h, r)
		for h.Len() > 0 && (*h)[0].index == next {
			r := heap.Pop(h).(shardResult)
			for _, rr := range r.regions {
				if reduceFn != nil {
					acc = reduceFn(acc, rr.rv)
				}
				for j, a := range args {
					if err := accumulate(a, rr.reduced[j]); err != nil {
						return acc, errors.Wrapf(err, "accumulate shard %d", r.index)
					}
				}
			}
			next++
		}
	}
	if err := g.Wait(); err != nil {
		return acc, err
	}
	return acc, nil
}
