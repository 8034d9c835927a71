package review

import (
	"time"

	"github.com/okian/auditdeck/pkg/logger"
)

// Option configures the review components.
type Option func(*options)

type options struct {
	log logger.Logger
	now func() time.Time
}

func defaults(opts []Option) options {
	o := options{log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
