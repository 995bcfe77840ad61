package alongstep

import (
	"context"
	"runtime"
	"sync"
)

// parallelFor runs fn over [0, n) split into contiguous ranges, one per
// worker. Each worker processes its range in chunks of at most minChunk
// and stops early once ctx is done.
func parallelFor(ctx context.Context, n, workers, minChunk int, fn func(start, end int)) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if minChunk < 1 {
		minChunk = 1
	}
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	run := func(start, end int) {
		for s := start; s < end; s += minChunk {
			if ctx.Err() != nil {
				return
			}
			fn(s, min(s+minChunk, end))
		}
	}

	if workers == 1 {
		run(0, n)
		return ctx.Err()
	}

	chunkSize := (n + workers - 1) / workers
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		go func(s, e int) {
			defer wg.Done()
			run(s, e)
		}(start, end)
	}
	wg.Wait()
	return ctx.Err()
}
