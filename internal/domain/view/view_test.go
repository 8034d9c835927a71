package view_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/internal/domain/view"
	"github.com/smartystreets/goconvey/convey"
)

func at(minute int) model.Timestamp {
	return model.NewTimestamp(time.Date(2024, 5, 1, 10, minute, 0, 0, time.UTC))
}

func TestFilterFeatures(t *testing.T) {
	convey.Convey("Given some features", t, func() {
		items := []model.Feature{
			{ID: "1", Name: "Curfew login blocker", Description: "Utah minors", Tags: []string{"geo"}, Status: model.FeatureWarning},
			{ID: "2", Name: "PF toggle", Description: "California teens", Tags: []string{"Minors"}, Status: model.FeaturePass},
			{ID: "3", Name: "Story resharing", Description: "expiry", Status: model.FeatureCritical},
		}

		convey.Convey("Then an empty filter keeps everything in order", func() {
			got := view.FilterFeatures(items, "  ", nil)
			convey.So(got, convey.ShouldResemble, items)
		})

		convey.Convey("Then the query matches name, description and tags ignoring case", func() {
			convey.So(ids(view.FilterFeatures(items, "MINORS", nil)), convey.ShouldResemble, []string{"1", "2"})
			convey.So(ids(view.FilterFeatures(items, "story", nil)), convey.ShouldResemble, []string{"3"})
		})

		convey.Convey("Then statuses combine with the query", func() {
			got := view.FilterFeatures(items, "minors", []model.FeatureStatus{model.FeaturePass, model.FeatureCritical})
			convey.So(ids(got), convey.ShouldResemble, []string{"2"})
		})
	})
}

func TestFilterSources(t *testing.T) {
	convey.Convey("Given some sources", t, func() {
		items := []model.Source{
			{ID: "a", SourceURL: "https://eur-lex.europa.eu/dsa", Tags: []string{"EU"}},
			{ID: "b", SourceURL: "https://le.utah.gov/sb152", Tags: []string{"us-state", "minors"}},
			{ID: "c", SourceURL: "https://gdpr-info.eu/art-5"},
		}

		convey.Convey("Then any selected tag matches", func() {
			convey.So(ids(view.FilterSources(items, "", []string{"eu", "minors"})), convey.ShouldResemble, []string{"a", "b"})
		})

		convey.Convey("Then the query matches the URL", func() {
			convey.So(ids(view.FilterSources(items, ".eu/", nil)), convey.ShouldResemble, []string{"a", "c"})
		})

		convey.Convey("Then distinct tags are listed once", func() {
			convey.So(view.Tags(items), convey.ShouldResemble, []string{"EU", "minors", "us-state"})
		})
	})
}

func TestFilterAuditReports(t *testing.T) {
	convey.Convey("Given reports in arrival order", t, func() {
		items := []model.AuditReport{
			{ID: "old", Status: model.ReportPending, CreatedAt: at(1)},
			{ID: "new", Status: model.ReportVerified, CreatedAt: at(9)},
			{ID: "mid", Status: model.ReportPending, CreatedAt: at(5)},
		}

		convey.Convey("Then they are sorted newest first on a copy", func() {
			got := view.FilterAuditReports(items, nil)
			convey.So(ids(got), convey.ShouldResemble, []string{"new", "mid", "old"})
			convey.So(items[0].ID, convey.ShouldEqual, "old")
		})

		convey.Convey("Then the status filter applies before sorting", func() {
			got := view.FilterAuditReports(items, []model.AuditReportStatus{model.ReportPending})
			convey.So(ids(got), convey.ShouldResemble, []string{"mid", "old"})
			convey.So(view.PendingReview(items), convey.ShouldEqual, 2)
		})
	})
}

func TestStatusDistribution(t *testing.T) {
	convey.Convey("Given features with a missing status", t, func() {
		items := []model.Feature{
			{Status: model.FeaturePass}, {Status: model.FeaturePass}, {Status: model.FeatureCritical},
		}
		got := view.StatusDistribution(items)

		convey.Convey("Then every status is present in display order", func() {
			convey.So(got, convey.ShouldHaveLength, 4)
			convey.So(got[0].Status, convey.ShouldEqual, model.FeaturePending)
			convey.So(got[0].Count, convey.ShouldEqual, 0)
			convey.So(got[1].Count, convey.ShouldEqual, 2)
			convey.So(got[1].Label, convey.ShouldEqual, "Pass")
			convey.So(got[3].Count, convey.ShouldEqual, 1)
			convey.So(got[3].Color, convey.ShouldNotBeEmpty)
		})
	})
}

func TestColumns(t *testing.T) {
	convey.Convey("Given the feature table columns", t, func() {
		cols := view.NewColumns(view.FeatureColumns)

		convey.Convey("Then all columns start visible", func() {
			convey.So(cols.Visible(), convey.ShouldHaveLength, len(view.FeatureColumns))
		})

		convey.Convey("When a column is toggled twice", func() {
			first, err1 := cols.Toggle("description")
			hiddenCount := len(cols.Visible())
			second, err2 := cols.Toggle("description")

			convey.Convey("Then it hides and comes back", func() {
				convey.So(err1, convey.ShouldBeNil)
				convey.So(err2, convey.ShouldBeNil)
				convey.So(first, convey.ShouldBeFalse)
				convey.So(second, convey.ShouldBeTrue)
				convey.So(hiddenCount, convey.ShouldEqual, len(view.FeatureColumns)-1)
				convey.So(cols.IsVisible("description"), convey.ShouldBeTrue)
			})
		})

		convey.Convey("Then the name column cannot be hidden", func() {
			visible, err := cols.Toggle("name")
			convey.So(visible, convey.ShouldBeTrue)
			convey.So(errors.Is(err, view.ErrNotHideable), convey.ShouldBeTrue)
		})

		convey.Convey("Then unknown columns are rejected", func() {
			_, err := cols.Toggle("nope")
			convey.So(errors.Is(err, view.ErrUnknownColumn), convey.ShouldBeTrue)
			convey.So(cols.IsVisible("nope"), convey.ShouldBeFalse)
		})
	})
}

func ids[T interface{ Key() string }](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Key())
	}
	return out
}
