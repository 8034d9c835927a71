// Package feeds binds each remote collection's push stream to its live list.
//
// A stream reader never touches the snapshot. It enqueues frames and
// connection signals into a bounded queue, and exactly one worker per
// collection decodes and applies them in arrival order.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/auditdeck/internal/adapters/mq/queue"
	"github.com/okian/auditdeck/internal/adapters/mq/worker"
	"github.com/okian/auditdeck/internal/adapters/stream"
	"github.com/okian/auditdeck/internal/domain/livelist"
	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/internal/domain/schema"
	"github.com/okian/auditdeck/pkg/logger"
	"github.com/okian/auditdeck/pkg/metrics"
)

// Collection names, also used as metric labels.
const (
	Features     = "features"
	Sources      = "sources"
	AuditReports = "audit_reports"
)

const defaultQueueSize = 1_024

type messageKind int

const (
	messageFrame messageKind = iota
	messageOpen
	messageLost
)

type message struct {
	kind  messageKind
	frame stream.Frame
	err   error
}

// Stats is a point-in-time view of a feed's pipeline.
type Stats struct {
	Collection string `json:"collection"`
	Queued     int    `json:"queued"`
	Applied    uint64 `json:"applied"`
	Rejected   uint64 `json:"rejected"`
	Items      int    `json:"items"`
}

// Feed keeps one collection's synchronizer in step with its stream. A Feed
// runs once: after Stop it cannot be started again.
type Feed[T livelist.Keyed] struct {
	collection string
	path       string
	sync       *livelist.Synchronizer[T]
	decode     Decoder[T]
	validator  *schema.Validator
	log        logger.Logger

	queue  *queue.InMemoryQueue[message]
	worker *worker.InMemoryWorker[message]

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	close   stream.CancelFunc
}

// New creates a feed for collection streamed from path.
func New[T livelist.Keyed](collection, path string, policy livelist.Policy, decode Decoder[T], opts ...Option) *Feed[T] {
	cfg := options{queueSize: defaultQueueSize, validator: schema.Default(), log: logger.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	name := "feed." + collection
	log := cfg.log.Named(name)

	f := &Feed[T]{
		collection: collection,
		path:       path,
		sync:       livelist.NewSynchronizer[T](collection, policy, livelist.WithLogger(log)),
		decode:     decode,
		validator:  cfg.validator,
		log:        log,
	}
	f.queue = queue.NewInMemoryQueue[message](queue.WithName(name), queue.WithCapacity(cfg.queueSize))
	f.worker = worker.NewInMemoryWorker[message](f.queue, worker.ProcessorFunc[message](f.process),
		worker.WithName(name), worker.WithLogger(cfg.log))
	return f
}

// NewFeatures creates the update-only features feed.
func NewFeatures(opts ...Option) *Feed[model.Feature] {
	return New[model.Feature](Features, "/features/stream", livelist.UpdateOnly, FeatureEvents, opts...)
}

// NewSources creates the upserting sources feed.
func NewSources(opts ...Option) *Feed[model.Source] {
	return New[model.Source](Sources, "/sources/stream", livelist.Upsert, SourceEvents, opts...)
}

// NewAuditReports creates the audit report feed, which accepts add and
// delete events.
func NewAuditReports(opts ...Option) *Feed[model.AuditReport] {
	return New[model.AuditReport](AuditReports, "/audit-report/stream", livelist.AddDelete, AuditReportEvents, opts...)
}

// Collection returns the collection name.
func (f *Feed[T]) Collection() string { return f.collection }

// Path returns the stream path relative to the API origin.
func (f *Feed[T]) Path() string { return f.path }

// Synchronizer returns the live list this feed drives.
func (f *Feed[T]) Synchronizer() *livelist.Synchronizer[T] { return f.sync }

// Start opens the stream through client and starts the applier.
func (f *Feed[T]) Start(ctx context.Context, client *stream.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, f.collection)
	}
	f.started = true
	f.ctx, f.cancel = context.WithCancel(ctx)

	go f.worker.Run(f.ctx)
	f.close = client.Open(f.ctx, f.path, stream.HandlerFuncs{
		Open:  f.onOpen,
		Frame: f.onFrame,
		Error: f.onError,
	})
	f.log.Info(ctx, "feed started", logger.String("path", f.path))
	return nil
}

// Stop closes the stream, waits for the reader to exit and stops the
// applier. Frames still queued are discarded.
func (f *Feed[T]) Stop(ctx context.Context) error {
	f.mu.Lock()
	if !f.started || f.close == nil {
		f.mu.Unlock()
		return nil
	}
	closeStream := f.close
	f.close = nil
	f.mu.Unlock()

	f.cancel()
	closeStream()
	_ = f.queue.Close()
	metrics.SetStreamConnected(f.collection, false)
	return f.worker.Shutdown(ctx)
}

// Stats reports queue depth and apply counters.
func (f *Feed[T]) Stats() Stats {
	applied, rejected := f.worker.Stats()
	return Stats{
		Collection: f.collection,
		Queued:     f.queue.Len(),
		Applied:    applied,
		Rejected:   rejected,
		Items:      len(f.sync.Snapshot().Items),
	}
}

func (f *Feed[T]) onOpen() { f.enqueue(message{kind: messageOpen}) }

func (f *Feed[T]) onFrame(fr stream.Frame) { f.enqueue(message{kind: messageFrame, frame: fr}) }

func (f *Feed[T]) onError(err error) {
	metrics.RecordStreamError(f.collection, reason(err))
	if !errors.Is(err, stream.ErrGaveUp) {
		metrics.RecordStreamReconnect(f.collection)
	}
	f.enqueue(message{kind: messageLost, err: err})
}

// enqueue blocks while the queue is full. It only gives up once the feed
// is stopping.
func (f *Feed[T]) enqueue(m message) {
	if err := f.queue.Enqueue(f.ctx, m); err != nil {
		f.log.Debug(f.ctx, "discarding stream message", logger.Error(err))
	}
}

func (f *Feed[T]) process(_ context.Context, m message) error {
	switch m.kind {
	case messageOpen:
		metrics.SetStreamConnected(f.collection, true)
		f.sync.Connected()
	case messageLost:
		metrics.SetStreamConnected(f.collection, false)
		f.sync.ConnectionLost(m.err)
	default:
		return f.apply(m.frame)
	}
	return nil
}

// apply decodes one frame and reduces it into the snapshot. A malformed
// frame becomes an error event and the connection carries on.
func (f *Feed[T]) apply(fr stream.Frame) error {
	start := time.Now()
	e, ok, err := f.decodeFrame(fr)
	if err != nil {
		metrics.RecordStreamError(f.collection, "parse")
		f.sync.Apply(livelist.ParseError[T](err))
		return fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if !ok {
		metrics.RecordStreamEvent(f.collection, "ignored")
		f.log.Debug(context.Background(), "ignoring stream frame", logger.String("event", fr.Event), logger.String("id", fr.ID))
		return nil
	}

	state := f.sync.Apply(e)
	metrics.RecordStreamEvent(f.collection, string(e.Kind))
	metrics.UpdateSnapshotSize(f.collection, len(state.Items))
	metrics.RecordApplyLatency(f.collection, float64(time.Since(start).Microseconds())/1_000)
	return nil
}

func (f *Feed[T]) decodeFrame(fr stream.Frame) (livelist.Event[T], bool, error) {
	env, err := schema.DecodeBytes[Envelope](f.validator, schema.StreamFrame, []byte(fr.Data))
	if err != nil {
		return livelist.Event[T]{}, false, err
	}
	return f.decode(f.validator, env)
}

func reason(err error) string {
	switch {
	case errors.Is(err, stream.ErrGaveUp):
		return "gave_up"
	case errors.Is(err, stream.ErrStatus):
		return "status"
	case errors.Is(err, stream.ErrStreamClosed):
		return "closed"
	default:
		return "transport"
	}
}
