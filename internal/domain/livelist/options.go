package livelist

import "github.com/okian/auditdeck/pkg/logger"

// Option configures a Synchronizer.
type Option func(*config)

type config struct {
	log logger.Logger
}

// WithLogger sets the logger used for connection diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}
