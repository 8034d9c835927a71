package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors are registered under the default namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.snapshotSize.WithLabelValues("features").Set(3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "auditdeck_dashboard_snapshot_size")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("sync"),
				WithHistogramBuckets([]float64{1, 2}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metric names and labels reflect the options", func() {
				manager.streamReconnects.WithLabelValues("sources").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				found := false
				for _, f := range families {
					if f.GetName() == "test_sync_stream_reconnects_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "collection")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestPackageHelpers(t *testing.T) {
	Convey("Given the package-level helpers", t, func() {
		Convey("When recording stream activity", func() {
			before := testutil.ToFloat64(globalManager.streamEventsApplied.WithLabelValues("features", "update"))
			RecordStreamEvent("features", "update")
			SetStreamConnected("features", true)
			UpdateSnapshotSize("features", 7)

			Convey("Then the collectors reflect it", func() {
				So(testutil.ToFloat64(globalManager.streamEventsApplied.WithLabelValues("features", "update")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.streamConnected.WithLabelValues("features")), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.snapshotSize.WithLabelValues("features")), ShouldEqual, 7)
			})
		})

		Convey("When recording the remaining helpers", func() {
			So(func() {
				RecordStreamError("sources", "malformed")
				RecordStreamReconnect("sources")
				SetStreamConnected("sources", false)
				RecordApplyLatency("sources", 1.5)
				UpdateQueueDepth("audit_reports", 2)
				RecordQueueEnqueue("audit_reports")
				RecordQueueDequeue("audit_reports")
				RecordQueueRejected("audit_reports", "closed")
				RecordRemoteRequest("features.list", "ok", 12)
				RecordReviewAction("verify", "ok")
				UpdateReviewSessions(1)
				UpdateSummaryCount("features", 10)
				RecordHTTPRequest("summary", "GET", "200")
				RecordHTTPRequestDuration("summary", "GET", "200", 3)
				RecordErrorByEndpoint("summary", "GET", "server_error")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)

			Convey("Then the registry gathers without error", func() {
				n, err := Gather()
				So(err, ShouldBeNil)
				So(n, ShouldBeGreaterThan, 0)
				So(GetRegistry(), ShouldNotBeNil)
			})
		})
	})
}
