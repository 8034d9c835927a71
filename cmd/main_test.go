package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	app "github.com/okian/auditdeck/internal/app"
	"github.com/okian/auditdeck/internal/config"
	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/internal/fakeupstream"
	"github.com/okian/auditdeck/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// runCLI runs the command tree against args and returns what it printed.
func runCLI(args ...string) (string, error) {
	var buf bytes.Buffer
	cmd := newApp()
	cmd.Writer = &buf
	err := cmd.Run(context.Background(), append([]string{"auditdeck"}, args...))
	return buf.String(), err
}

func TestCLICommands(t *testing.T) {
	convey.Convey("Given a seeded upstream", t, func() {
		fake := fakeupstream.New()
		features, sources := fake.Seed(4)
		ts := httptest.NewServer(fake.Handler())
		defer ts.Close()

		convey.Convey("When counting features", func() {
			out, err := runCLI("--api", ts.URL, "features", "count")

			convey.Convey("Then the upstream count is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(strings.TrimSpace(out), convey.ShouldEqual, strconv.Itoa(features))
			})
		})

		convey.Convey("When listing sources as JSON", func() {
			out, err := runCLI("--api", ts.URL, "--json", "sources", "list")

			convey.Convey("Then every source is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				var got []model.Source
				convey.So(json.Unmarshal([]byte(out), &got), convey.ShouldBeNil)
				convey.So(got, convey.ShouldHaveLength, sources)
			})
		})

		convey.Convey("When listing features as a table", func() {
			out, err := runCLI("--api", ts.URL, "features", "list")

			convey.Convey("Then there is a header and one row per feature", func() {
				convey.So(err, convey.ShouldBeNil)
				lines := strings.Split(strings.TrimSpace(out), "\n")
				convey.So(lines[0], convey.ShouldStartWith, "ID")
				convey.So(lines, convey.ShouldHaveLength, features+1)
			})
		})

		convey.Convey("When adding a source", func() {
			out, err := runCLI("--api", ts.URL, "sources", "add", "--tag", "docs", "https://example.org/added")

			convey.Convey("Then it exists upstream", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldStartWith, "created source ")
				convey.So(fake.Sources(), convey.ShouldHaveLength, sources+1)
			})
		})

		convey.Convey("When adding a source without a URL", func() {
			_, err := runCLI("--api", ts.URL, "sources", "add")

			convey.Convey("Then the command fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When uploading a CSV file", func() {
			path := filepath.Join(t.TempDir(), "sources.csv")
			convey.So(os.WriteFile(path, []byte("source_url\nhttps://a.example\nhttps://b.example\n"), 0o600), convey.ShouldBeNil)
			out, err := runCLI("--api", ts.URL, "sources", "upload", path)

			convey.Convey("Then the created count is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "created 2 sources")
			})
		})

		convey.Convey("When verifying a pending report", func() {
			report := fake.AuditReports()[0]
			out, err := runCLI("--api", ts.URL, "reports", "verify", report.ID)

			convey.Convey("Then it is verified upstream and cannot be dismissed anymore", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "verify")
				stored, _ := fake.AuditReport(report.ID)
				convey.So(stored.Status, convey.ShouldEqual, model.ReportVerified)

				_, err := runCLI("--api", ts.URL, "reports", "dismiss", report.ID)
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When listing the reports of one source", func() {
			src := fake.Sources()[len(fake.Sources())-1]
			out, err := runCLI("--api", ts.URL, "--json", "reports", "list", "--source", src.ID)

			convey.Convey("Then only reports citing it are printed", func() {
				convey.So(err, convey.ShouldBeNil)
				var got []model.AuditReport
				convey.So(json.Unmarshal([]byte(out), &got), convey.ShouldBeNil)
				convey.So(got, convey.ShouldHaveLength, len(fake.AuditReportsBySource(src.ID)))
			})
		})

		convey.Convey("When the --api flag is not a URL", func() {
			_, err := runCLI("--api", "not a url", "features", "count")

			convey.Convey("Then config validation fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestRouter(t *testing.T) {
	convey.Convey("Given the router over a service that was not started", t, func() {
		ctx := context.Background()
		cfg := config.New()
		svc := newService(cfg, logger.Nop())
		r := newRouter(ctx, svc, logger.Nop())

		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			return w
		}

		convey.Convey("Then every surface is mounted", func() {
			convey.So(get("/").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/livez").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/healthz").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the lists report loading", func() {
			w := get("/api/features")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"phase":"loading"`)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the metrics updaters", t, func() {
		svc := app.New(app.WithAPIBaseURL("http://127.0.0.1:1"))

		convey.Convey("Then they run until the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { updateSystemMetrics() }, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}
