// Package service wires the remote client, the live feeds and the review
// components together and exposes what the HTTP API needs.
package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/okian/auditdeck/internal/adapters/remote"
	"github.com/okian/auditdeck/internal/adapters/stream"
	"github.com/okian/auditdeck/internal/domain/livelist"
	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/internal/domain/view"
	"github.com/okian/auditdeck/internal/feeds"
	"github.com/okian/auditdeck/internal/review"
	"github.com/okian/auditdeck/pkg/logger"
	"github.com/okian/auditdeck/pkg/metrics"
)

// Change describes one applied live-list event.
type Change struct {
	Collection string         `json:"collection"`
	Event      livelist.Kind  `json:"event"`
	ID         string         `json:"id,omitempty"`
	Item       any            `json:"item,omitempty"`
	Phase      livelist.Phase `json:"phase"`
	Error      string         `json:"error,omitempty"`
	Size       int            `json:"size"`
}

// Summary is the content of the overview page.
type Summary struct {
	Cards        review.Cards `json:"cards"`
	Distribution []view.Slice `json:"distribution"`
}

// Service owns every long-lived component of the dashboard.
type Service struct {
	mu sync.RWMutex

	// Configuration
	apiBaseURL    string
	httpTimeout   time.Duration
	queueSize     int
	backoff       stream.Backoff
	summarySpec   string
	toastCapacity int
	httpClient    *http.Client

	// Components
	client   *remote.Client
	streams  *stream.Client
	features *feeds.Feed[model.Feature]
	sources  *feeds.Feed[model.Source]
	reports  *feeds.Feed[model.AuditReport]
	toasts   *review.Toasts
	sessions *review.Sessions
	summary  *review.Summary

	// State
	started    bool
	stopFollow func()

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithAPIBaseURL sets the origin of the analysis API.
func WithAPIBaseURL(u string) Option {
	return func(s *Service) {
		if u != "" {
			s.apiBaseURL = u
		}
	}
}

// WithHTTPTimeout bounds one-shot remote requests.
func WithHTTPTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.httpTimeout = d
		}
	}
}

// WithQueueSize bounds each feed's frame queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithBackoff sets the stream reconnect policy.
func WithBackoff(b stream.Backoff) Option {
	return func(s *Service) { s.backoff = b }
}

// WithSummarySchedule sets the cron spec of the count refresh.
func WithSummarySchedule(spec string) Option {
	return func(s *Service) {
		if spec != "" {
			s.summarySpec = spec
		}
	}
}

// WithToastCapacity bounds the notification log.
func WithToastCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.toastCapacity = n
		}
	}
}

// WithHTTPClient replaces the transport used for requests and streams.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Components exist right away; nothing connects
// until Start.
func New(opts ...Option) *Service {
	s := &Service{
		apiBaseURL:    "http://localhost:8000",
		httpTimeout:   10 * time.Second,
		queueSize:     1_024,
		backoff:       stream.DefaultBackoff(),
		summarySpec:   "@every 30s",
		toastCapacity: 50,
		logger:        logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("service")

	// The timeout wraps the transport of the given client, so it goes last.
	remoteOpts := []remote.Option{
		remote.WithHTTPClient(s.httpClient),
		remote.WithTimeout(s.httpTimeout),
		remote.WithLogger(s.logger),
	}
	streamOpts := []stream.Option{stream.WithBackoff(s.backoff), stream.WithLogger(s.logger.Named("stream"))}
	if s.httpClient != nil {
		streamOpts = append(streamOpts, stream.WithHTTPClient(s.httpClient))
	}
	s.client = remote.New(s.apiBaseURL, remoteOpts...)
	s.streams = stream.NewClient(s.apiBaseURL, streamOpts...)

	feedOpts := []feeds.Option{feeds.WithQueueSize(s.queueSize), feeds.WithLogger(s.logger)}
	s.features = feeds.NewFeatures(feedOpts...)
	s.sources = feeds.NewSources(feedOpts...)
	s.reports = feeds.NewAuditReports(feedOpts...)

	reviewOpts := []review.Option{review.WithLogger(s.logger)}
	s.toasts = review.NewToasts(s.toastCapacity, reviewOpts...)
	s.sessions = review.NewSessions(s.reports.Synchronizer(), s.client.Features, s.client.Sources,
		s.client.AuditReports, s.toasts, reviewOpts...)
	s.summary = review.NewSummary(s.client.Features, s.client.Sources, s.reports.Synchronizer(), reviewOpts...)
	return s
}

// Start opens the three streams and schedules the summary refresh. A
// Service is started once; the feeds cannot be reopened after Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting dashboard service...", logger.String("api", s.apiBaseURL))

	s.stopFollow = s.sessions.Follow(s.reports.Synchronizer())
	s.started = true
	for _, start := range []func(context.Context, *stream.Client) error{
		s.features.Start, s.sources.Start, s.reports.Start,
	} {
		if err := start(ctx, s.streams); err != nil {
			_ = s.stopLocked(ctx)
			return err
		}
	}
	if err := s.summary.Start(ctx, s.summarySpec); err != nil {
		_ = s.stopLocked(ctx)
		return err
	}

	s.logger.Info(ctx, "dashboard service started",
		logger.Int("queueSize", s.queueSize),
		logger.Float64("reconnectMultiplier", s.backoff.Multiplier),
		logger.String("summarySchedule", s.summarySpec))
	return nil
}

// Stop gracefully shuts the service down.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping dashboard service...")
	err := s.stopLocked(ctx)
	s.logger.Info(ctx, "dashboard service stopped")
	return err
}

func (s *Service) stopLocked(ctx context.Context) error {
	errs := []error{
		s.summary.Stop(ctx),
		s.features.Stop(ctx),
		s.sources.Stop(ctx),
		s.reports.Stop(ctx),
	}
	if s.stopFollow != nil {
		s.stopFollow()
		s.stopFollow = nil
	}
	s.started = false
	return errors.Join(errs...)
}

// Remote returns the stateless API client.
func (s *Service) Remote() *remote.Client { return s.client }

// Features returns the feature live list.
func (s *Service) Features() livelist.State[model.Feature] { return s.features.Synchronizer().Snapshot() }

// Sources returns the source live list.
func (s *Service) Sources() livelist.State[model.Source] { return s.sources.Synchronizer().Snapshot() }

// AuditReports returns the audit report live list.
func (s *Service) AuditReports() livelist.State[model.AuditReport] {
	return s.reports.Synchronizer().Snapshot()
}

// Summary returns the count cards and the feature status distribution.
func (s *Service) Summary() Summary {
	return Summary{
		Cards:        s.summary.Cards(),
		Distribution: view.StatusDistribution(s.Features().Items),
	}
}

// CreateSource submits a new source and notifies the outcome.
func (s *Service) CreateSource(ctx context.Context, fields model.SourceFields) remote.CreateResult {
	res := s.client.Sources.Create(ctx, fields)
	if res.Success {
		s.toasts.Success("Source added", fields.SourceURL)
	} else {
		s.toasts.Error("Could not add source", res.Error)
	}
	return res
}

// UploadSources submits a CSV of sources and notifies the outcome.
func (s *Service) UploadSources(ctx context.Context, filename string, csv io.Reader) remote.UploadResult {
	res := s.client.Sources.UploadCSV(ctx, filename, csv)
	if res.Success {
		s.toasts.Push(review.LevelSuccess, "Sources uploaded", "")
	} else {
		s.toasts.Error("Could not upload sources", res.Error)
	}
	return res
}

// AuditReportsBySource lists the reports citing sourceID in one round trip.
func (s *Service) AuditReportsBySource(ctx context.Context, sourceID string) []model.AuditReport {
	return view.FilterAuditReports(s.client.AuditReports.ListBySource(ctx, sourceID), nil)
}

// Reviews returns the review session table.
func (s *Service) Reviews() *review.Sessions { return s.sessions }

// Toasts returns recent notifications, newest first.
func (s *Service) Toasts() []review.Toast { return s.toasts.List() }

// Subscribe calls fn for every change applied to any of the live lists.
func (s *Service) Subscribe(fn func(Change)) (cancel func()) {
	cancels := []func(){
		follow(s.features.Synchronizer(), fn),
		follow(s.sources.Synchronizer(), fn),
		follow(s.reports.Synchronizer(), fn),
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

func follow[T livelist.Keyed](ls *livelist.Synchronizer[T], fn func(Change)) func() {
	return ls.Subscribe(func(t livelist.Transition[T]) {
		c := Change{
			Collection: ls.Collection(),
			Event:      t.Event.Kind,
			ID:         t.Event.Subject(),
			Phase:      t.New.Phase(),
			Error:      t.New.Err,
			Size:       len(t.New.Items),
		}
		if t.Event.Kind == livelist.KindUpdate || t.Event.Kind == livelist.KindAdd {
			c.Item = t.Event.Item
		}
		fn(c)
	})
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":    s.started,
		"apiBaseURL": s.apiBaseURL,
		"queueSize":  s.queueSize,
		"sessions":   s.sessions.Len(),
		"toasts":     len(s.toasts.List()),
		"goroutines": runtime.NumGoroutine(),
	}
	if s.started {
		stats["feeds"] = []feeds.Stats{s.features.Stats(), s.sources.Stats(), s.reports.Stats()}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	return stats
}
