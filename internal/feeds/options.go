package feeds

import (
	"github.com/okian/auditdeck/internal/domain/schema"
	"github.com/okian/auditdeck/pkg/logger"
)

// Option configures a Feed.
type Option func(*options)

type options struct {
	queueSize int
	validator *schema.Validator
	log       logger.Logger
}

// WithQueueSize bounds the frames buffered between the stream reader and the
// applier.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithValidator sets the schema validator used to decode frames.
func WithValidator(v *schema.Validator) Option {
	return func(o *options) {
		if v != nil {
			o.validator = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}
