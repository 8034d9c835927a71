// Package queue buffers stream frames between a reader and its applier.
//
// Enqueue blocks while the buffer is full so frames are never dropped and
// their order is kept.
package queue

import (
	"context"
	"sync"

	"github.com/okian/auditdeck/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 1024
	defaultName     = "queue"
)

// Queue provides blocking enqueue and channel-based dequeue semantics.
type Queue[T any] interface {
	// Enqueue adds e, waiting for room. It fails only when ctx is done or
	// the queue is closed.
	Enqueue(ctx context.Context, e T) error

	// Dequeue returns a channel that yields items in enqueue order. The
	// channel is closed when the queue is closed or ctx is done.
	Dequeue(ctx context.Context) <-chan T

	// Len returns the current number of queued items.
	Len() int

	// Close stops the queue. Items still buffered are discarded.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue[T any] struct {
	name     string
	capacity int
	items    chan T

	closeOnce sync.Once
	done      chan struct{}
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	cfg := options{name: defaultName, capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	q := &InMemoryQueue[T]{
		name:     cfg.name,
		capacity: cfg.capacity,
		items:    make(chan T, cfg.capacity),
		done:     make(chan struct{}),
	}
	metrics.UpdateQueueDepth(q.name, 0)
	return q
}

// Name returns the queue name used in metrics.
func (q *InMemoryQueue[T]) Name() string { return q.name }

// Capacity returns the buffer size.
func (q *InMemoryQueue[T]) Capacity() int { return q.capacity }

// Enqueue adds an item to the queue, blocking while it is full.
func (q *InMemoryQueue[T]) Enqueue(ctx context.Context, e T) error {
	select {
	case <-q.done:
		metrics.RecordQueueRejected(q.name, "closed")
		return ErrQueueClosed
	default:
	}

	select {
	case q.items <- e:
		metrics.RecordQueueEnqueue(q.name)
		metrics.UpdateQueueDepth(q.name, len(q.items))
		return nil
	case <-q.done:
		metrics.RecordQueueRejected(q.name, "closed")
		return ErrQueueClosed
	case <-ctx.Done():
		metrics.RecordQueueRejected(q.name, "context_cancelled")
		return ctx.Err()
	}
}

// Dequeue returns a channel that will receive items as they become available.
func (q *InMemoryQueue[T]) Dequeue(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.done:
				return
			case e := <-q.items:
				select {
				case out <- e:
					metrics.RecordQueueDequeue(q.name)
					metrics.UpdateQueueDepth(q.name, len(q.items))
				case <-ctx.Done():
					return
				case <-q.done:
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued items.
func (q *InMemoryQueue[T]) Len() int {
	n := len(q.items)
	metrics.UpdateQueueDepth(q.name, n)
	return n
}

// Close shuts the queue down. It is safe to call more than once.
func (q *InMemoryQueue[T]) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue[T]) IsClosed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}
