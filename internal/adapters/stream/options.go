package stream

import (
	"net/http"

	"github.com/okian/auditdeck/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. It must not carry a total timeout, or
// long-lived streams will be cut off.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBackoff sets the reconnect policy.
func WithBackoff(b Backoff) Option {
	return func(c *Client) { c.backoff = b }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
