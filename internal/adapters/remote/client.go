// Package remote talks to the analysis API over plain request/response.
//
// The client keeps no state between calls. Every failure, whether transport,
// status or payload shape, is an error with a displayable message. List and
// count calls swallow it and return an empty value; user-triggered calls
// return it.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/auditdeck/internal/domain/schema"
	"github.com/okian/auditdeck/pkg/logger"
	"github.com/okian/auditdeck/pkg/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Client is the entry point to the remote API, grouped by collection.
type Client struct {
	baseURL   string
	http      *http.Client
	validator *schema.Validator
	log       logger.Logger

	Features     *Features
	Sources      *Sources
	AuditReports *AuditReports
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: defaultTimeout},
		validator: schema.Default(),
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("remote")
	c.Features = &Features{c: c}
	c.Sources = &Sources{c: c}
	c.AuditReports = &AuditReports{c: c}
	return c
}

// BaseURL returns the API origin.
func (c *Client) BaseURL() string { return c.baseURL }

type request struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentType string
}

func jsonRequest(op, method, path string, in any) (request, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return request{}, failure(op, ErrInvalidArg, err)
	}
	return request{op: op, method: method, path: path, body: buf, contentType: "application/json"}, nil
}

// do performs r and returns the decoded, not yet validated, body.
func (c *Client) do(ctx context.Context, r request) (any, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return nil, failure(r.op, ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, failure(r.op, ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, failure(r.op, ErrStatus, statusDetail(resp.StatusCode, payload))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure(r.op, ErrTransport, err)
	}
	value, err := schema.Parse(raw)
	if err != nil {
		return nil, failure(r.op, ErrValidation, err)
	}
	return value, nil
}

// call performs r and decodes the body as T against shape.
func call[T any](ctx context.Context, c *Client, r request, shape schema.Shape) (T, error) {
	start := time.Now()
	var out T
	value, err := c.do(ctx, r)
	if err == nil {
		out, err = schema.Decode[T](c.validator, shape, value)
		if err != nil {
			err = failure(r.op, ErrValidation, err)
		}
	}
	record(r.op, start, err)
	return out, err
}

func record(op string, start time.Time, err error) {
	metrics.RecordRemoteRequest(op, outcome(err), float64(time.Since(start).Milliseconds()))
}

// statusDetail prefers the server's own explanation when the body carries
// one.
func statusDetail(code int, payload []byte) string {
	var body struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	detail := ""
	if json.Unmarshal(payload, &body) == nil {
		switch d := body.Detail.(type) {
		case string:
			detail = d
		case nil:
			detail = body.Message
		default:
			if b, err := json.Marshal(d); err == nil {
				detail = string(b)
			}
		}
	}
	if detail == "" {
		detail = http.StatusText(code)
	}
	return fmt.Sprintf("status %d: %s", code, detail)
}
