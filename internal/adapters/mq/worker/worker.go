// Package worker drains a queue with exactly one consumer so items are
// processed strictly in arrival order.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/auditdeck/pkg/logger"
)

// Queue defines how workers receive items.
type Queue[T any] interface {
	Dequeue(ctx context.Context) <-chan T
}

// Processor handles one item. Errors are logged and do not stop the worker.
type Processor[T any] interface {
	Process(ctx context.Context, item T) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc[T any] func(ctx context.Context, item T) error

// Process calls f.
func (f ProcessorFunc[T]) Process(ctx context.Context, item T) error { return f(ctx, item) }

// Worker processes items from a queue one at a time.
type Worker[T any] interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called
	// or the queue channel closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after the item in hand, if any.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker[T any] struct {
	queue     Queue[T]
	processor Processor[T]
	name      string

	processed uint64
	failed    uint64
	statsMu   sync.Mutex

	shutdownOnce sync.Once
	shutdown     chan struct{}
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker[T any](q Queue[T], p Processor[T], opts ...Option) *InMemoryWorker[T] {
	cfg := options{name: "worker", logger: logger.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &InMemoryWorker[T]{
		queue:     q,
		processor: p,
		name:      cfg.name,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    cfg.logger.Named(cfg.name),
	}
}

// Name returns the worker name.
func (w *InMemoryWorker[T]) Name() string { return w.name }

// Run starts the worker loop.
func (w *InMemoryWorker[T]) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case item, ok := <-items:
			if !ok {
				return
			}
			w.process(ctx, item)
		}
	}
}

func (w *InMemoryWorker[T]) process(ctx context.Context, item T) {
	start := time.Now()
	err := w.processor.Process(ctx, item)

	w.statsMu.Lock()
	if err != nil {
		w.failed++
	} else {
		w.processed++
	}
	w.statsMu.Unlock()

	if err != nil {
		w.logger.Error(ctx, "error processing item",
			logger.Duration("took", time.Since(start)), logger.Error(err))
	}
}

// Stats returns how many items succeeded and failed so far.
func (w *InMemoryWorker[T]) Stats() (processed, failed uint64) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.processed, w.failed
}

// Done is closed when Run returns.
func (w *InMemoryWorker[T]) Done() <-chan struct{} { return w.done }

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker[T]) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
