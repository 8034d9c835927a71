package fakeupstream

import (
	"time"

	"github.com/okian/auditdeck/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSubscriberBuffer sets how many frames a slow stream subscriber may lag
// before it is disconnected.
func WithSubscriberBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.subscriberBuffer = n
		}
	}
}
