package schema

import (
	"errors"
	"strings"
)

var (
	// ErrInvalid is wrapped by every ValidationError.
	ErrInvalid      = errors.New("payload does not match schema")
	ErrUnknownShape = errors.New("unknown shape")
)

// ValidationError describes why a payload was rejected. Path is the
// dot-separated location of the offending field, empty for the root.
type ValidationError struct {
	Shape   Shape
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Shape))
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }
