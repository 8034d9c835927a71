package review

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a toast.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

const defaultToastCapacity = 50

// Toast is one user-facing notification.
type Toast struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Toasts is a bounded notification log. When full, the oldest toast is
// dropped.
type Toasts struct {
	mu       sync.Mutex
	capacity int
	items    []Toast // oldest first
	now      func() time.Time
}

// NewToasts creates a log holding at most capacity toasts.
func NewToasts(capacity int, opts ...Option) *Toasts {
	if capacity <= 0 {
		capacity = defaultToastCapacity
	}
	o := defaults(opts)
	return &Toasts{capacity: capacity, now: o.now}
}

// Push records a toast and returns it.
func (t *Toasts) Push(level Level, title, message string) Toast {
	toast := Toast{ID: uuid.NewString(), Level: level, Title: title, Message: message, CreatedAt: t.now()}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.items) == t.capacity {
		t.items = slices.Delete(t.items, 0, 1)
	}
	t.items = append(t.items, toast)
	return toast
}

// Success records a success toast.
func (t *Toasts) Success(title, message string) Toast { return t.Push(LevelSuccess, title, message) }

// Error records an error toast.
func (t *Toasts) Error(title, message string) Toast { return t.Push(LevelError, title, message) }

// List returns the toasts newest first.
func (t *Toasts) List() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := append([]Toast{}, t.items...)
	slices.Reverse(out)
	return out
}

// Dismiss removes a toast. It reports whether the toast existed.
func (t *Toasts) Dismiss(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := slices.IndexFunc(t.items, func(x Toast) bool { return x.ID == id })
	if i < 0 {
		return false
	}
	t.items = slices.Delete(t.items, i, i+1)
	return true
}
