package feeds

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("feed already started")
	// ErrMalformedFrame wraps frames that fail schema validation.
	ErrMalformedFrame = errors.New("malformed stream frame")
	// ErrIDMismatch is returned when an envelope id disagrees with the id of
	// the entity it carries.
	ErrIDMismatch = errors.New("envelope id does not match entity id")
)
