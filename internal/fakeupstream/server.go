// Package fakeupstream is an in-memory stand-in for the analysis API. It
// serves the same REST and SSE surface with seeded sample data and is meant
// for local development and tests only.
package fakeupstream

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/pkg/logger"
)

const defaultSubscriberBuffer = 256

// Server holds the three collections, newest first, and broadcasts every
// mutation on the matching stream.
type Server struct {
	mu       sync.RWMutex
	features []model.Feature
	sources  []model.Source
	reports  []model.AuditReport

	resolveMu sync.Mutex

	hub              *hub
	subscriberBuffer int
	now              func() time.Time
	log              logger.Logger
}

// New creates an empty server.
func New(opts ...Option) *Server {
	s := &Server{
		subscriberBuffer: defaultSubscriberBuffer,
		now:              func() time.Time { return time.Now().UTC() },
		log:              logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("fakeupstream")
	s.hub = newHub(s.subscriberBuffer)
	return s
}

func (s *Server) stamp() model.Timestamp { return model.NewTimestamp(s.now()) }

func (s *Server) stampPtr() *model.Timestamp {
	t := s.stamp()
	return &t
}

// Features returns a copy of the feature collection.
func (s *Server) Features() []model.Feature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Feature{}, s.features...)
}

// Sources returns a copy of the source collection.
func (s *Server) Sources() []model.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Source{}, s.sources...)
}

// AuditReports returns a copy of the audit report collection.
func (s *Server) AuditReports() []model.AuditReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.AuditReport{}, s.reports...)
}

// Feature looks a feature up by id.
func (s *Server) Feature(id string) (model.Feature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.features, id)
	if i < 0 {
		return model.Feature{}, false
	}
	return s.features[i], true
}

// AuditReport looks a report up by id.
func (s *Server) AuditReport(id string) (model.AuditReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.reports, id)
	if i < 0 {
		return model.AuditReport{}, false
	}
	return s.reports[i], true
}

// SourcesByID returns the sources among ids, in collection order.
func (s *Server) SourcesByID(ids []string) []model.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Source{}
	for _, src := range s.sources {
		if slices.Contains(ids, src.ID) {
			out = append(out, src)
		}
	}
	return out
}

// AuditReportsBySource returns the reports that cite sourceID.
func (s *Server) AuditReportsBySource(sourceID string) []model.AuditReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.AuditReport{}
	for _, r := range s.reports {
		if slices.Contains(r.SourceIDs, sourceID) {
			out = append(out, r)
		}
	}
	return out
}

// PutFeature inserts or replaces f and broadcasts feature_update.
func (s *Server) PutFeature(f model.Feature) model.Feature {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.stamp()
	}
	s.mu.Lock()
	s.features = upsert(s.features, f)
	s.mu.Unlock()
	s.publish(StreamFeatures, "feature_update", map[string]any{
		"operation_type": "update",
		"feature_id":     f.ID,
		"feature_data":   f,
		"timestamp":      s.stamp(),
	})
	return f
}

// SetFeatureStatus changes a feature's status.
func (s *Server) SetFeatureStatus(id string, status model.FeatureStatus) (model.Feature, error) {
	f, ok := s.Feature(id)
	if !ok {
		return model.Feature{}, fmt.Errorf("feature %s: %w", id, ErrNotFound)
	}
	f.Status = status
	f.UpdatedAt = s.stampPtr()
	return s.PutFeature(f), nil
}

// CreateSource adds a source and broadcasts source_update.
func (s *Server) CreateSource(fields model.SourceFields) (model.Source, error) {
	u := strings.TrimSpace(fields.SourceURL)
	if u == "" {
		return model.Source{}, fmt.Errorf("%w: source_url is required", ErrInvalidInput)
	}
	return s.PutSource(model.Source{SourceURL: u, Tags: fields.Tags}), nil
}

// PutSource inserts or replaces src and broadcasts source_update.
func (s *Server) PutSource(src model.Source) model.Source {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = s.stamp()
	}
	s.mu.Lock()
	s.sources = upsert(s.sources, src)
	s.mu.Unlock()
	s.publish(StreamSources, "source_update", map[string]any{
		"operation_type": "update",
		"source_id":      src.ID,
		"source_data":    src,
		"timestamp":      s.stamp(),
	})
	return src
}

// AddAuditReport inserts r at the front and broadcasts audit_report_added.
func (s *Server) AddAuditReport(r model.AuditReport) model.AuditReport {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = model.ReportPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.stamp()
	}
	r.NeedsAction = r.ChangesStatus()
	s.mu.Lock()
	s.reports = upsert(s.reports, r)
	s.mu.Unlock()
	s.publishReport("audit_report_added", "insert", r.ID, &r)
	return r
}

// UpdateAuditReport replaces an existing report and broadcasts
// audit_report_updated.
func (s *Server) UpdateAuditReport(r model.AuditReport) error {
	s.mu.Lock()
	i := indexOf(s.reports, r.ID)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("audit report %s: %w", r.ID, ErrNotFound)
	}
	s.reports[i] = r
	s.mu.Unlock()
	s.publishReport("audit_report_updated", "update", r.ID, &r)
	return nil
}

// DeleteAuditReport removes a report and broadcasts audit_report_deleted.
func (s *Server) DeleteAuditReport(id string) error {
	s.mu.Lock()
	i := indexOf(s.reports, id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("audit report %s: %w", id, ErrNotFound)
	}
	s.reports = slices.Delete(s.reports, i, i+1)
	s.mu.Unlock()
	s.publishReport("audit_report_deleted", "delete", id, nil)
	return nil
}

// Verify resolves a pending report as verified and moves its feature to the
// proposed status.
func (s *Server) Verify(id string) error {
	return s.resolve(id, model.ReportVerified)
}

// Dismiss resolves a pending report as dismissed and moves its feature back
// to the original status.
func (s *Server) Dismiss(id string) error {
	return s.resolve(id, model.ReportDismissed)
}

func (s *Server) resolve(id string, to model.AuditReportStatus) error {
	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	r, ok := s.AuditReport(id)
	if !ok {
		return fmt.Errorf("audit report %s: %w", id, ErrNotFound)
	}
	if !r.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, id, r.Status)
	}
	r.Status = to
	r.UpdatedAt = s.stampPtr()
	if err := s.UpdateAuditReport(r); err != nil {
		return err
	}

	target := r.StatusChangeTo
	if to == model.ReportDismissed {
		target = r.OriginalStatus
	}
	if _, err := s.SetFeatureStatus(r.FeatureID, target); err != nil {
		s.log.Warn(context.Background(), "report references unknown feature",
			logger.String("report", id), logger.String("feature", r.FeatureID))
	}
	return nil
}

// PublishError emits an error frame on stream.
func (s *Server) PublishError(stream, message string) {
	s.publish(stream, "error", map[string]string{"message": message})
}

// PublishRaw emits raw as the data line of one frame on stream, unchecked.
func (s *Server) PublishRaw(stream string, raw []byte) {
	s.hub.publishRaw(stream, raw)
}

// DropStreams closes every open stream connection and returns how many
// were open.
func (s *Server) DropStreams() int { return s.hub.drop() }

// Subscribers returns the number of open connections on stream.
func (s *Server) Subscribers(stream string) int { return s.hub.count(stream) }

func (s *Server) publishReport(typ, op, id string, r *model.AuditReport) {
	s.publish(StreamAuditReports, typ, map[string]any{
		"operation_type":    op,
		"audit_report_id":   id,
		"audit_report_data": r,
		"timestamp":         s.stamp(),
	})
}

func (s *Server) publish(stream, typ string, data any) {
	if err := s.hub.publish(stream, typ, data); err != nil {
		s.log.Error(context.Background(), "failed to publish frame",
			logger.String("stream", stream), logger.String("type", typ), logger.Error(err))
	}
}

type keyed interface{ Key() string }

func indexOf[T keyed](items []T, id string) int {
	return slices.IndexFunc(items, func(it T) bool { return it.Key() == id })
}

// upsert replaces an item in place or inserts it at the front.
func upsert[T keyed](items []T, item T) []T {
	if i := indexOf(items, item.Key()); i >= 0 {
		items[i] = item
		return items
	}
	return slices.Insert(items, 0, item)
}
