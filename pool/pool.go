// Package pool bounds the number of conversions running at once.
package pool

import (
	"context"
	"sync"
)

type WorkerPool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &WorkerPool{
		sem: make(chan struct{}, maxWorkers),
	}
}

// Submit schedules a job. The job waits for a free slot; if ctx is
// cancelled first it never runs.
func (p *WorkerPool) Submit(ctx context.Context, job func(context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
			job(ctx)
		case <-ctx.Done():
		}
	}()
}

// Wait blocks until every submitted job has finished or been skipped.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
