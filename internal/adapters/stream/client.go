// Package stream consumes server-sent event streams and keeps them
// connected with bounded exponential backoff.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/auditdeck/pkg/logger"
)

// Handler receives the lifecycle of one subscription. Callbacks run on the
// subscription's reader goroutine, one at a time.
type Handler interface {
	// OnOpen fires after each successful (re)connect.
	OnOpen()
	// OnFrame fires for every dispatched frame, in arrival order.
	OnFrame(Frame)
	// OnError fires when the connection fails or ends.
	OnError(error)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Open  func()
	Frame func(Frame)
	Error func(error)
}

func (h HandlerFuncs) OnOpen() {
	if h.Open != nil {
		h.Open()
	}
}

func (h HandlerFuncs) OnFrame(f Frame) {
	if h.Frame != nil {
		h.Frame(f)
	}
}

func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

// CancelFunc closes a subscription and waits for its goroutine to exit.
type CancelFunc func()

// Client opens subscriptions against one base URL.
type Client struct {
	baseURL string
	http    *http.Client
	backoff Backoff
	log     logger.Logger
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		backoff: DefaultBackoff(),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open starts a subscription to path. At most one connection is live for the
// subscription at any time. The subscription ends when ctx is done, when the
// returned CancelFunc is called, or when MaxAttempts consecutive attempts fail.
func (c *Client) Open(ctx context.Context, path string, h Handler) CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.run(ctx, path, h)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (c *Client) run(ctx context.Context, path string, h Handler) {
	var (
		lastID   string
		hint     time.Duration
		failures int
	)
	for {
		opened, err := c.connect(ctx, path, h, &lastID, &hint)
		if ctx.Err() != nil {
			return
		}
		if opened {
			failures = 0
		}
		failures++
		h.OnError(err)

		if c.backoff.Exhausted(failures) {
			c.log.Error(ctx, "giving up on stream",
				logger.String("path", path), logger.Int("failures", failures), logger.Error(err))
			h.OnError(fmt.Errorf("%w: %s", ErrGaveUp, path))
			return
		}
		wait := c.backoff.Delay(failures, hint)
		c.log.Warn(ctx, "stream disconnected, reconnecting",
			logger.String("path", path), logger.Duration("wait", wait), logger.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connect runs one connection until it fails. opened reports whether the
// server accepted the stream.
func (c *Client) connect(ctx context.Context, path string, h Handler, lastID *string, hint *time.Duration) (opened bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if *lastID != "" {
		req.Header.Set("Last-Event-ID", *lastID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return false, fmt.Errorf("%w: %s returned %d", ErrStatus, path, resp.StatusCode)
	}

	c.log.Debug(ctx, "stream opened", logger.String("path", path))
	h.OnOpen()

	dec := NewDecoder(resp.Body)
	for {
		f, err := dec.Next()
		*lastID = dec.LastID()
		if r := dec.Retry(); r > 0 {
			*hint = r
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return true, ErrStreamClosed
			}
			return true, err
		}
		h.OnFrame(f)
	}
}
