package stream

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"
)

// Frame is one dispatched server-sent event.
type Frame struct {
	ID    string
	Event string
	Data  []byte
}

// Decoder reads frames from a text/event-stream body.
type Decoder struct {
	r      *bufio.Reader
	lastID string
	retry  time.Duration
}

// NewDecoder wraps r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// LastID returns the last event id seen, which persists across frames.
func (d *Decoder) LastID() string { return d.lastID }

// Retry returns the reconnection delay the server last asked for, zero if
// it never did.
func (d *Decoder) Retry() time.Duration { return d.retry }

// Next blocks until a complete frame is available. An event that is cut off
// by the end of the body is dropped and io.EOF is returned.
func (d *Decoder) Next() (Frame, error) {
	var (
		data    bytes.Buffer
		hasData bool
		event   string
	)
	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			return Frame{}, err
		}
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

		if line == "" {
			if !hasData {
				event = ""
				continue
			}
			if event == "" {
				event = "message"
			}
			return Frame{ID: d.lastID, Event: event, Data: data.Bytes()}, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				d.lastID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				d.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
}
