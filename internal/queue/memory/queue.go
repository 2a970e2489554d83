// Package memory provides the in-process work queue shared by the producer
// and the worker pool.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/realtime-news-crawler/internal/harvest"
)

// Queue is a FIFO with blocking dequeue and task accounting. It is unbounded
// unless constructed with a positive capacity, in which case Enqueue blocks
// while the queue is full.
//
// Every dequeued item, sentinels included, must be acknowledged with Done.
// Wait blocks until all enqueued items have been acknowledged.
type Queue struct {
	mu       sync.Mutex
	items    []harvest.QueueItem
	capacity int
	pending  int
	idle     chan struct{}

	ready chan struct{}
	space chan struct{}
}

// NewQueue constructs a queue. capacity <= 0 means unbounded.
func NewQueue(capacity int) *Queue {
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		capacity: capacity,
		idle:     idle,
		ready:    make(chan struct{}, 1),
		space:    make(chan struct{}, 1),
	}
}

// Enqueue appends an item. It never blocks on an unbounded queue; on a bounded
// queue it waits for space or for the context to end.
func (q *Queue) Enqueue(ctx context.Context, item harvest.QueueItem) error {
	for {
		q.mu.Lock()
		if q.capacity <= 0 || len(q.items) < q.capacity {
			q.items = append(q.items, item)
			if q.pending == 0 {
				q.idle = make(chan struct{})
			}
			q.pending++
			q.mu.Unlock()
			notify(q.ready)
			return nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return fmt.Errorf("enqueue canceled: %w", ctx.Err())
		case <-q.space:
		}
	}
}

// Dequeue pops the oldest item, blocking until one is available or the
// context ends.
func (q *Queue) Dequeue(ctx context.Context) (harvest.QueueItem, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = harvest.QueueItem{}
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				notify(q.ready)
			}
			if q.capacity > 0 {
				notify(q.space)
			}
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return harvest.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.ready:
		}
	}
}

// Done acknowledges one previously dequeued item.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending <= 0 {
		panic("memory queue: Done called more times than items enqueued")
	}
	q.pending--
	if q.pending == 0 {
		close(q.idle)
	}
}

// Wait blocks until every enqueued item has been dequeued and acknowledged.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue drain: %w", ctx.Err())
	}
}

// Len returns the number of items waiting to be dequeued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns the number of items enqueued but not yet acknowledged.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
