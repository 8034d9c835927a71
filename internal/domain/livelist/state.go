// Package livelist keeps an ordered, identity-unique snapshot of a remote
// collection in step with its push stream.
//
// Reduce is the pure transition function. Synchronizer wraps it with
// ownership, serialization and change notification.
package livelist

// Keyed is implemented by every entity kept in a live list.
type Keyed interface {
	Key() string
}

// Policy decides what an event may do to identities that are not yet in the
// snapshot.
type Policy int

const (
	// UpdateOnly ignores updates for unknown identities.
	UpdateOnly Policy = iota
	// Upsert inserts unknown identities at the front.
	Upsert
	// AddDelete ignores unknown updates but accepts explicit add and delete
	// events.
	AddDelete
)

func (p Policy) String() string {
	switch p {
	case UpdateOnly:
		return "update-only"
	case Upsert:
		return "upsert"
	case AddDelete:
		return "add-delete"
	}
	return "unknown"
}

// Status is the load status of a list.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
)

// Phase is the user-facing state: the status, or error while the error flag
// is set.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseError   Phase = "error"
)

// State is one immutable snapshot of a live list.
type State[T Keyed] struct {
	Items  []T
	Status Status
	Failed bool
	Err    string
}

// Initial returns the state a list starts in.
func Initial[T Keyed]() State[T] {
	return State[T]{Items: []T{}, Status: StatusLoading}
}

// Phase collapses the status and the error flag.
func (s State[T]) Phase() Phase {
	if s.Failed {
		return PhaseError
	}
	if s.Status == StatusReady {
		return PhaseReady
	}
	return PhaseLoading
}

// Find returns the item with the given identity.
func (s State[T]) Find(id string) (T, bool) {
	if i := indexOf(s.Items, id); i >= 0 {
		return s.Items[i], true
	}
	var zero T
	return zero, false
}

// Clone returns a copy whose Items can be modified freely.
func (s State[T]) Clone() State[T] {
	items := make([]T, len(s.Items))
	copy(items, s.Items)
	s.Items = items
	return s
}
