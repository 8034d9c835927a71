package remote

import (
	"errors"
	"fmt"
)

// Failure kinds. Callers only show the message; the kinds exist for
// errors.Is in tests and metrics.
var (
	ErrTransport  = errors.New("request failed")
	ErrStatus     = errors.New("unexpected status")
	ErrValidation = errors.New("invalid response")
	ErrRejected   = errors.New("rejected by server")
	ErrInvalidArg = errors.New("invalid argument")
)

func failure(op string, kind error, detail any) error {
	return fmt.Errorf("%s: %w: %v", op, kind, detail)
}

// outcome labels err for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	case errors.Is(err, ErrStatus):
		return "status_error"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrRejected):
		return "rejected"
	}
	return "error"
}
