package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/auditdeck/internal/domain/view"
	"github.com/okian/auditdeck/pkg/logger"
	"github.com/okian/auditdeck/pkg/metrics"
)

// Counter returns a collection size, or 0 when it cannot be fetched.
type Counter interface {
	Count(ctx context.Context) int
}

// Cards are the numeric summary cards.
type Cards struct {
	Features      int       `json:"features"`
	Sources       int       `json:"sources"`
	PendingReview int       `json:"pending_review"`
	RefreshedAt   time.Time `json:"refreshed_at"`
}

// Summary keeps the count cards fresh on a cron schedule. The pending review
// count is read from the live list on every call instead.
type Summary struct {
	features Counter
	sources  Counter
	reports  ReportSnapshot
	now      func() time.Time
	log      logger.Logger

	mu        sync.RWMutex
	cards     Cards
	scheduler *cron.Cron
}

// NewSummary creates a summary with zero counts.
func NewSummary(features, sources Counter, reports ReportSnapshot, opts ...Option) *Summary {
	o := defaults(opts)
	return &Summary{
		features: features,
		sources:  sources,
		reports:  reports,
		now:      o.now,
		log:      o.log.Named("review.summary"),
	}
}

// Refresh fetches both counts now.
func (s *Summary) Refresh(ctx context.Context) Cards {
	var wg sync.WaitGroup
	var features, sources int
	wg.Add(2)
	go func() { defer wg.Done(); features = s.features.Count(ctx) }()
	go func() { defer wg.Done(); sources = s.sources.Count(ctx) }()
	wg.Wait()

	metrics.UpdateSummaryCount("features", features)
	metrics.UpdateSummaryCount("sources", sources)

	s.mu.Lock()
	s.cards.Features = features
	s.cards.Sources = sources
	s.cards.RefreshedAt = s.now()
	s.mu.Unlock()
	return s.Cards()
}

// Cards returns the latest counts together with the live pending count.
func (s *Summary) Cards() Cards {
	s.mu.RLock()
	c := s.cards
	s.mu.RUnlock()
	c.PendingReview = view.PendingReview(s.reports.Snapshot().Items)
	metrics.UpdateSummaryCount("pending_review", c.PendingReview)
	return c
}

// Start refreshes once and then on every tick of spec until Stop.
func (s *Summary) Start(ctx context.Context, spec string) error {
	s.mu.Lock()
	if s.scheduler != nil {
		s.mu.Unlock()
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.Refresh(ctx) }); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("invalid summary schedule %q: %w", spec, err)
	}
	s.scheduler = c
	s.mu.Unlock()

	s.Refresh(ctx)
	c.Start()
	s.log.Info(ctx, "summary refresh scheduled", logger.String("schedule", spec))
	return nil
}

// Stop cancels the schedule and waits for a running refresh.
func (s *Summary) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("summary stop: %w", ctx.Err())
	}
}
