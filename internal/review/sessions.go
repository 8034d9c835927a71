package review

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/auditdeck/internal/domain/livelist"
	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/pkg/logger"
	"github.com/okian/auditdeck/pkg/metrics"
)

// ReportSnapshot exposes the live audit report list.
type ReportSnapshot interface {
	Snapshot() livelist.State[model.AuditReport]
}

// Sessions holds any number of open review dialogs, each keyed by a random
// id. All of them follow the same audit report live list.
type Sessions struct {
	reports  ReportSnapshot
	features FeatureGetter
	sources  SourceGetter
	resolver Resolver
	toasts   *Toasts
	opts     []Option
	log      logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Dialog
}

// NewSessions creates an empty session table.
func NewSessions(reports ReportSnapshot, features FeatureGetter, sources SourceGetter, resolver Resolver, toasts *Toasts, opts ...Option) *Sessions {
	o := defaults(opts)
	return &Sessions{
		reports:  reports,
		features: features,
		sources:  sources,
		resolver: resolver,
		toasts:   toasts,
		opts:     opts,
		log:      o.log.Named("review.sessions"),
		sessions: make(map[string]*Dialog),
	}
}

// Open starts a session on the report with reportID as currently held in the
// live list.
func (s *Sessions) Open(ctx context.Context, reportID string) (string, View, error) {
	report, ok := s.reports.Snapshot().Find(reportID)
	if !ok {
		return "", View{}, fmt.Errorf("%w: %s", ErrReportNotFound, reportID)
	}
	d := NewDialog(s.features, s.sources, s.resolver, s.toasts, s.opts...)
	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = d
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.UpdateReviewSessions(n)

	s.log.Debug(ctx, "review session opened", logger.String("session", id), logger.String("report", reportID))
	return id, d.Open(ctx, report), nil
}

// Get returns the view of session id.
func (s *Sessions) Get(id string) (View, error) {
	d, err := s.dialog(id)
	if err != nil {
		return View{}, err
	}
	return d.View(), nil
}

// Verify verifies the report of session id. The session ends on success.
func (s *Sessions) Verify(ctx context.Context, id string) (View, error) {
	return s.resolve(ctx, id, (*Dialog).Verify)
}

// Dismiss dismisses the report of session id. The session ends on success.
func (s *Sessions) Dismiss(ctx context.Context, id string) (View, error) {
	return s.resolve(ctx, id, (*Dialog).Dismiss)
}

func (s *Sessions) resolve(ctx context.Context, id string, fn func(*Dialog, context.Context) error) (View, error) {
	d, err := s.dialog(id)
	if err != nil {
		return View{}, err
	}
	if err := fn(d, ctx); err != nil {
		return d.View(), err
	}
	s.Close(id)
	return d.View(), nil
}

// Close ends session id. It reports whether the session existed.
func (s *Sessions) Close(id string) bool {
	s.mu.Lock()
	d, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	if ok {
		d.Close()
		metrics.UpdateReviewSessions(n)
	}
	return ok
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Observe feeds one live-list transition to every session. Sessions whose
// report disappeared are ended.
func (s *Sessions) Observe(t livelist.Transition[model.AuditReport]) {
	s.mu.RLock()
	ended := make([]string, 0)
	for id, d := range s.sessions {
		reportID := d.ReportID()
		if reportID == "" {
			continue
		}
		switch t.Event.Kind {
		case livelist.KindDelete:
			if t.Event.ID == reportID && d.ReportDeleted(reportID) {
				ended = append(ended, id)
			}
		case livelist.KindInitial, livelist.KindUpdate, livelist.KindAdd:
			if r, ok := t.New.Find(reportID); ok {
				d.ReportUpdated(r)
			} else if d.ReportDeleted(reportID) {
				ended = append(ended, id)
			}
		}
	}
	s.mu.RUnlock()

	for _, id := range ended {
		s.log.Info(context.Background(), "review session ended, report removed", logger.String("session", id))
		s.Close(id)
	}
}

// Follow subscribes the sessions to sync. The returned function stops it.
func (s *Sessions) Follow(ls *livelist.Synchronizer[model.AuditReport]) (cancel func()) {
	return ls.Subscribe(s.Observe)
}

func (s *Sessions) dialog(id string) (*Dialog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return d, nil
}
