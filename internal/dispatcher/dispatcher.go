// Package dispatcher manages worker fan-out over the work queue.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
)

// Runner is a single worker loop.
type Runner interface {
	Run(ctx context.Context)
}

// Dispatcher fans out queue work to a fixed pool of workers.
type Dispatcher struct {
	queue   harvest.Enqueuer
	workers []Runner

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
	done    chan struct{}
}

// New creates a Dispatcher. The pool size is len(workers) and never changes.
func New(queue harvest.Enqueuer, workers []Runner) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		done:    make(chan struct{}),
	}
}

// Size returns the number of workers in the pool.
func (d *Dispatcher) Size() int {
	return len(d.workers)
}

// Start launches every worker once. Later calls are no-ops.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	for _, w := range d.workers {
		d.wg.Add(1)
		go func(wk Runner) {
			defer d.wg.Done()
			wk.Run(ctx)
		}(w)
	}
	go func() {
		d.wg.Wait()
		close(d.done)
	}()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item harvest.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// SendSentinels enqueues exactly one sentinel per worker.
func (d *Dispatcher) SendSentinels(ctx context.Context) error {
	for i := 0; i < len(d.workers); i++ {
		if err := d.Enqueue(ctx, harvest.Sentinel()); err != nil {
			return fmt.Errorf("sentinel %d of %d: %w", i+1, len(d.workers), err)
		}
	}
	return nil
}

// Join blocks until every started worker has exited or ctx ends.
func (d *Dispatcher) Join(ctx context.Context) error {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if !started {
		return errors.New("dispatcher not started")
	}
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("join workers: %w", ctx.Err())
	}
}
