package fakeupstream

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/pkg/logger"
)

// Simulate mutates the collections on the cron schedule spec until ctx is
// done, so connected dashboards have something to follow.
func (s *Server) Simulate(ctx context.Context, spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.Step(ctx) }); err != nil {
		return fmt.Errorf("invalid simulation schedule %q: %w", spec, err)
	}
	c.Start()
	s.log.Info(ctx, "simulation started", logger.String("schedule", spec))
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Step applies one random mutation.
func (s *Server) Step(ctx context.Context) {
	features := s.Features()
	if len(features) == 0 {
		return
	}
	switch randomInt(4) {
	case 0, 1:
		r := sampleReport("", pick(features), s.Sources(), s.stamp())
		r = s.AddAuditReport(r)
		s.log.Debug(ctx, "simulated new report", logger.String("id", r.ID))
	case 2:
		src := pick(sampleSources)
		created, err := s.CreateSource(model.SourceFields{
			SourceURL: fmt.Sprintf("%s#rev-%d", src.url, randomInt(1_000)),
			Tags:      src.tags,
		})
		if err == nil {
			s.log.Debug(ctx, "simulated new source", logger.String("id", created.ID))
		}
	default:
		f := pick(features)
		f.Tags = []string{pick(sampleTags)}
		f.UpdatedAt = s.stampPtr()
		s.PutFeature(f)
		s.log.Debug(ctx, "simulated feature update", logger.String("id", f.ID))
	}
}
