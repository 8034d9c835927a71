package livelist

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/okian/auditdeck/pkg/logger"
)

// Transition is delivered to subscribers after every applied event.
type Transition[T Keyed] struct {
	Old   State[T]
	New   State[T]
	Event Event[T]
}

// Synchronizer owns the snapshot of one collection. Apply calls are
// serialized and subscribers see transitions in the order they happened.
// Subscribers must not call Apply from inside their callback.
type Synchronizer[T Keyed] struct {
	collection string
	policy     Policy
	log        logger.Logger

	applyMu sync.Mutex // serializes Apply and notification

	mu     sync.RWMutex
	state  State[T]
	subs   map[uint64]func(Transition[T])
	nextID uint64
}

// NewSynchronizer creates a synchronizer for collection in the loading state.
func NewSynchronizer[T Keyed](collection string, policy Policy, opts ...Option) *Synchronizer[T] {
	cfg := config{log: logger.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Synchronizer[T]{
		collection: collection,
		policy:     policy,
		log:        cfg.log,
		state:      Initial[T](),
		subs:       make(map[uint64]func(Transition[T])),
	}
}

// Collection returns the collection name.
func (s *Synchronizer[T]) Collection() string { return s.collection }

// Policy returns the insert policy.
func (s *Synchronizer[T]) Policy() Policy { return s.policy }

// Apply reduces e into the snapshot and notifies subscribers.
func (s *Synchronizer[T]) Apply(e Event[T]) State[T] {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	old := s.state
	next := Reduce(s.policy, old, e)
	s.state = next
	subs := make([]func(Transition[T]), 0, len(s.subs))
	for _, id := range slices.Sorted(maps.Keys(s.subs)) {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()

	t := Transition[T]{Old: old.Clone(), New: next.Clone(), Event: e}
	for _, fn := range subs {
		fn(t)
	}
	return next.Clone()
}

// Snapshot returns a copy of the current state.
func (s *Synchronizer[T]) Snapshot() State[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Subscribe registers fn for every future transition. The returned function
// removes it.
func (s *Synchronizer[T]) Subscribe(fn func(Transition[T])) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Connected records that the push connection (re)opened.
func (s *Synchronizer[T]) Connected() {
	s.log.Debug(context.Background(), "stream connected", logger.String("collection", s.collection))
	s.Apply(ResetEvent[T]())
}

// ConnectionLost records a transport failure. The visible message is fixed;
// err is only logged.
func (s *Synchronizer[T]) ConnectionLost(err error) {
	s.log.Warn(context.Background(), "stream connection lost",
		logger.String("collection", s.collection), logger.Error(err))
	s.Apply(ErrorEvent[T](ConnectionLostMessage(s.collection)))
}

// ConnectionLostMessage is the message shown when the stream for collection
// drops.
func ConnectionLostMessage(collection string) string {
	return fmt.Sprintf("connection to %s stream failed", collection)
}
