package service_test

import (
	"context"
	"testing"
	"time"

	service "github.com/okian/auditdeck/internal/app"
	"github.com/okian/auditdeck/internal/adapters/stream"
	"github.com/okian/auditdeck/internal/domain/livelist"
	"github.com/okian/auditdeck/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestService(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New(service.WithAPIBaseURL("http://127.0.0.1:1"))
		ctx := context.Background()

		Convey("Then the live lists are loading and empty", func() {
			So(svc.Features().Phase(), ShouldEqual, livelist.PhaseLoading)
			So(svc.Sources().Items, ShouldBeEmpty)
			So(svc.AuditReports().Items, ShouldNotBeNil)
		})

		Convey("Then the summary has no counts", func() {
			s := svc.Summary()
			So(s.Cards.Features, ShouldEqual, 0)
			So(s.Cards.PendingReview, ShouldEqual, 0)
			So(s.Distribution, ShouldNotBeEmpty)
		})

		Convey("Then stats report it as stopped", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["sessions"], ShouldEqual, 0)
			So(stats["feeds"], ShouldBeNil)
		})

		Convey("Then Stop is a no-op", func() {
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("Then the toast log is empty", func() {
			So(svc.Toasts(), ShouldBeEmpty)
		})
	})
}

func TestServiceRejectsBadSchedule(t *testing.T) {
	Convey("Given a service with an invalid summary schedule", t, func() {
		svc := service.New(
			service.WithAPIBaseURL("http://127.0.0.1:1"),
			service.WithSummarySchedule("every now and then"),
			service.WithBackoff(stream.Backoff{Initial: 10 * time.Millisecond, Max: 20 * time.Millisecond, Multiplier: 2}),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		Convey("When starting the service", func() {
			err := svc.Start(ctx)

			Convey("Then it fails and leaves nothing running", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "every now and then")
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}
