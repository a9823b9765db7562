package faces

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of concurrent extractions across all callers.
type Pool struct {
	ext     Extractor
	sem     *semaphore.Weighted
	workers int
}

// NewPool wraps ext so that at most workers extractions run at once.
// workers <= 0 means runtime.NumCPU().
func NewPool(ext Extractor, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{ext: ext, sem: semaphore.NewWeighted(int64(workers)), workers: workers}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int {
	return p.workers
}

// Extract waits for a free slot, honouring ctx, then delegates. A cancelled
// wait is reported as BackendFailure.
func (p *Pool) Extract(ctx context.Context, image []byte) Result {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return backendFailure(err)
	}
	defer p.sem.Release(1)
	return p.ext.Extract(ctx, image)
}
