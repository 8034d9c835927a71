package fakeupstream

import (
	"encoding/json"
	"sync"
)

// Stream names.
const (
	StreamFeatures     = "features"
	StreamSources      = "sources"
	StreamAuditReports = "audit_reports"
)

type frame struct {
	id   uint64
	data []byte
}

type subscriber struct {
	ch   chan frame
	once sync.Once
}

func (s *subscriber) close() { s.once.Do(func() { close(s.ch) }) }

// hub fans frames out to the open streams of each collection. A subscriber
// that falls behind by more than its buffer is dropped and has to reconnect.
type hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[*subscriber]struct{}
	buffer int
}

func newHub(buffer int) *hub {
	return &hub{subs: make(map[string]map[*subscriber]struct{}), buffer: buffer}
}

func (h *hub) subscribe(stream string) *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &subscriber{ch: make(chan frame, h.buffer)}
	if h.subs[stream] == nil {
		h.subs[stream] = make(map[*subscriber]struct{})
	}
	h.subs[stream][s] = struct{}{}
	return s
}

func (h *hub) unsubscribe(stream string, s *subscriber) {
	h.mu.Lock()
	delete(h.subs[stream], s)
	h.mu.Unlock()
	s.close()
}

// publish sends {type, data} to every subscriber of stream.
func (h *hub) publish(stream, typ string, data any) error {
	raw, err := json.Marshal(map[string]any{"type": typ, "data": data})
	if err != nil {
		return err
	}
	h.publishRaw(stream, raw)
	return nil
}

func (h *hub) publishRaw(stream string, raw []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	f := frame{id: h.nextID, data: raw}
	for s := range h.subs[stream] {
		select {
		case s.ch <- f:
		default:
			delete(h.subs[stream], s)
			s.close()
		}
	}
}

// frameID reserves an id for a frame written directly to one subscriber.
func (h *hub) frameID() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	return h.nextID
}

// drop closes every open stream of every collection.
func (h *hub) drop() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, subs := range h.subs {
		for s := range subs {
			delete(subs, s)
			s.close()
			n++
		}
	}
	return n
}

func (h *hub) count(stream string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[stream])
}
