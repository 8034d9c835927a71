package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/okian/auditdeck/internal/domain/livelist"
	"github.com/okian/auditdeck/pkg/logger"
	"github.com/okian/auditdeck/pkg/metrics"
)

const (
	// EventSource is the CloudEvents source of every re-broadcast change.
	EventSource = "auditdeck/livelist"

	// EventTypePrefix starts every CloudEvents type: auditdeck.<collection>.<event>.
	EventTypePrefix = "auditdeck."

	streamBuffer    = 256
	streamKeepAlive = 15 * time.Second
)

// StreamHandler re-broadcasts live-list changes to browsers as server-sent
// CloudEvents.
type StreamHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps Dependencies, log logger.Logger) *StreamHandler {
	return &StreamHandler{deps: deps, log: log.Named("stream")}
}

// NewChangeEvent wraps c in a structured CloudEvent.
func NewChangeEvent(c Change) (cloudevents.Event, error) {
	ev := cloudevents.NewEvent()
	ev.SetID(uuid.NewString())
	ev.SetSource(EventSource)
	ev.SetType(EventTypePrefix + c.Collection + "." + string(c.Event))
	if c.ID != "" {
		ev.SetSubject(c.ID)
	}
	ev.SetTime(time.Now())
	if err := ev.SetData(cloudevents.ApplicationJSON, c); err != nil {
		return ev, fmt.Errorf("set event data: %w", err)
	}
	return ev, ev.Validate()
}

// HandleStream handles GET /api/stream. Each client first receives one
// initial event per collection, then every change as it is applied. Slow
// clients lose events rather than stall the live lists.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", ErrNoFlusher)
		return
	}
	ctx := r.Context()

	events := make(chan Change, streamBuffer)
	cancel := h.deps.Subscribe(func(c Change) {
		select {
		case events <- c:
		default:
			metrics.RecordQueueRejected("sse", "slow_client")
		}
	})
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, c := range h.snapshot() {
		if err := h.send(ctx, w, c); err != nil {
			return
		}
	}
	flusher.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case c := <-events:
			if err := h.send(ctx, w, c); err != nil {
				h.log.Debug(ctx, "stream client gone", logger.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func (h *StreamHandler) snapshot() []Change {
	f, s, a := h.deps.Features(), h.deps.Sources(), h.deps.AuditReports()
	return []Change{
		initialChange("features", f.Phase(), f.Err, len(f.Items)),
		initialChange("sources", s.Phase(), s.Err, len(s.Items)),
		initialChange("audit_reports", a.Phase(), a.Err, len(a.Items)),
	}
}

func initialChange(collection string, phase livelist.Phase, errMsg string, size int) Change {
	return Change{Collection: collection, Event: livelist.KindInitial, Phase: phase, Error: errMsg, Size: size}
}

func (h *StreamHandler) send(ctx context.Context, w io.Writer, c Change) error {
	ev, err := NewChangeEvent(c)
	if err != nil {
		h.log.Warn(ctx, "dropping invalid change event", logger.Error(err))
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID(), ev.Type(), payload)
	return err
}
