package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/okian/auditdeck/internal/adapters/http/api"
	"github.com/okian/auditdeck/internal/adapters/remote"
	"github.com/okian/auditdeck/internal/domain/livelist"
	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/internal/review"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing
type mockDeps struct {
	mu       sync.Mutex
	features livelist.State[model.Feature]
	sources  livelist.State[model.Source]
	reports  livelist.State[model.AuditReport]
	toasts   []review.Toast

	created      []model.SourceFields
	createResult remote.CreateResult
	uploaded     string
	uploadResult remote.UploadResult

	subs map[int]func(api.Change)
	next int
}

func newMockDeps() *mockDeps {
	at := func(d int) model.Timestamp {
		return model.NewTimestamp(time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC))
	}
	return &mockDeps{
		features: livelist.State[model.Feature]{Status: livelist.StatusReady, Items: []model.Feature{
			{ID: "f1", Name: "Login", Description: "sign in flow", Tags: []string{"auth"}, Status: model.FeaturePass, CreatedAt: at(1)},
			{ID: "f2", Name: "Checkout", Description: "payments", Status: model.FeatureCritical, CreatedAt: at(2)},
		}},
		sources: livelist.State[model.Source]{Status: livelist.StatusReady, Items: []model.Source{
			{ID: "s1", SourceURL: "https://docs.example.com", Tags: []string{"Docs"}, CreatedAt: at(1)},
			{ID: "s2", SourceURL: "https://blog.example.com", Tags: []string{"blog"}, CreatedAt: at(2)},
		}},
		reports: livelist.State[model.AuditReport]{Status: livelist.StatusReady, Failed: true, Err: "boom", Items: []model.AuditReport{
			{ID: "r1", FeatureID: "f1", Status: model.ReportVerified, CreatedAt: at(1)},
			{ID: "r2", FeatureID: "f2", Status: model.ReportPending, CreatedAt: at(3)},
			{ID: "r3", FeatureID: "f2", Status: model.ReportPending, CreatedAt: at(2)},
		}},
		toasts:       []review.Toast{{ID: "t1", Level: review.LevelInfo, Title: "hello"}},
		createResult: remote.CreateResult{Success: true, ID: "s-new"},
		uploadResult: remote.UploadResult{Success: true, Created: 2, IDs: []string{"a", "b"}},
		subs:         map[int]func(api.Change){},
	}
}

func (m *mockDeps) Features() livelist.State[model.Feature]         { return m.features }
func (m *mockDeps) Sources() livelist.State[model.Source]           { return m.sources }
func (m *mockDeps) AuditReports() livelist.State[model.AuditReport] { return m.reports }
func (m *mockDeps) Toasts() []review.Toast                          { return m.toasts }

func (m *mockDeps) Summary() api.Summary {
	return api.Summary{Cards: review.Cards{Features: 2, Sources: 2, PendingReview: 2}}
}

func (m *mockDeps) CreateSource(_ context.Context, f model.SourceFields) remote.CreateResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, f)
	return m.createResult
}

func (m *mockDeps) UploadSources(_ context.Context, filename string, csv io.Reader) remote.UploadResult {
	b, _ := io.ReadAll(csv)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploaded = filename + ":" + string(b)
	return m.uploadResult
}

func (m *mockDeps) AuditReportsBySource(_ context.Context, id string) []model.AuditReport {
	if id == "s1" {
		return m.reports.Items[:1]
	}
	return []model.AuditReport{}
}

func (m *mockDeps) Subscribe(fn func(api.Change)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *mockDeps) subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *mockDeps) publish(c api.Change) {
	m.mu.Lock()
	fns := make([]func(api.Change), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

type mockReviews struct {
	mu        sync.Mutex
	open      map[string]review.View
	verifyErr error
}

func (m *mockReviews) Open(_ context.Context, reportID string) (string, review.View, error) {
	if reportID == "missing" {
		return "", review.View{}, fmt.Errorf("%w: %s", review.ErrReportNotFound, reportID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := review.View{Open: true, Report: &model.AuditReport{ID: reportID}, FeatureLoading: true}
	m.open["sess-1"] = v
	return "sess-1", v, nil
}

func (m *mockReviews) Get(id string) (review.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.open[id]
	if !ok {
		return review.View{}, review.ErrSessionNotFound
	}
	return v, nil
}

func (m *mockReviews) Verify(_ context.Context, id string) (review.View, error) {
	v, err := m.Get(id)
	if err != nil {
		return v, err
	}
	if m.verifyErr != nil {
		return v, m.verifyErr
	}
	m.Close(id)
	return review.View{}, nil
}

func (m *mockReviews) Dismiss(ctx context.Context, id string) (review.View, error) {
	return m.Verify(ctx, id)
}

func (m *mockReviews) Close(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.open[id]
	delete(m.open, id)
	return ok
}

type mockStats struct{}

func (mockStats) GetStats() map[string]any { return map[string]any{"started": true} }

func newHandler(deps *mockDeps, reviews *mockReviews) http.Handler {
	return api.NewServer(deps, reviews, mockStats{}, nil).Handler(context.Background())
}

func do(h http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type listBody struct {
	Phase string            `json:"phase"`
	Error string            `json:"error"`
	Items []json.RawMessage `json:"items"`
}

func ids(w *httptest.ResponseRecorder) []string {
	var body struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
	out := make([]string, 0, len(body.Items))
	for _, it := range body.Items {
		out = append(out, it.ID)
	}
	return out
}

func TestListEndpoints(t *testing.T) {
	Convey("Given an API over ready live lists", t, func() {
		h := newHandler(newMockDeps(), &mockReviews{open: map[string]review.View{}})

		Convey("When listing features with a query", func() {
			w := do(h, http.MethodGet, "/api/features?q=SIGN", nil, "")

			Convey("Then only matching features are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(ids(w), ShouldResemble, []string{"f1"})
			})
		})

		Convey("When filtering features by status", func() {
			w := do(h, http.MethodGet, "/api/features?status=critical,warning", nil, "")

			Convey("Then the status filter applies", func() {
				So(ids(w), ShouldResemble, []string{"f2"})
			})
		})

		Convey("When the status is unknown", func() {
			w := do(h, http.MethodGet, "/api/features?status=bogus", nil, "")

			Convey("Then the request is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "bogus")
			})
		})

		Convey("When filtering sources by tag", func() {
			w := do(h, http.MethodGet, "/api/sources?tag=docs", nil, "")

			Convey("Then tags match without case", func() {
				So(ids(w), ShouldResemble, []string{"s1"})
			})
		})

		Convey("When listing source tags", func() {
			w := do(h, http.MethodGet, "/api/sources/tags", nil, "")

			Convey("Then they are distinct and sorted", func() {
				So(w.Body.String(), ShouldContainSubstring, `"tags":["blog","Docs"]`)
			})
		})

		Convey("When listing pending audit reports", func() {
			w := do(h, http.MethodGet, "/api/audit-reports?status=pending", nil, "")

			Convey("Then they are newest first and carry the error", func() {
				So(ids(w), ShouldResemble, []string{"r2", "r3"})
				var body listBody
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Phase, ShouldEqual, "error")
				So(body.Error, ShouldEqual, "boom")
			})
		})

		Convey("When fetching reports of one source", func() {
			w := do(h, http.MethodGet, "/api/audit-reports/source/s1", nil, "")

			Convey("Then the one-shot result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(ids(w), ShouldResemble, []string{"r1"})
			})
		})

		Convey("When fetching the summary, toasts and stats", func() {
			summary := do(h, http.MethodGet, "/api/summary", nil, "")
			toasts := do(h, http.MethodGet, "/api/toasts", nil, "")
			stats := do(h, http.MethodGet, "/api/stats", nil, "")

			Convey("Then each is served as JSON", func() {
				So(summary.Body.String(), ShouldContainSubstring, `"pending_review":2`)
				So(toasts.Body.String(), ShouldContainSubstring, `"hello"`)
				So(stats.Body.String(), ShouldContainSubstring, `"started":true`)
				So(stats.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			})
		})
	})
}

func TestSourceSubmission(t *testing.T) {
	Convey("Given an API with a working upstream", t, func() {
		deps := newMockDeps()
		h := newHandler(deps, &mockReviews{open: map[string]review.View{}})

		Convey("When creating a source", func() {
			w := do(h, http.MethodPost, "/api/sources",
				strings.NewReader(`{"source_url":" https://new.example.com ","tags":["x"]}`), "application/json")

			Convey("Then it is created with a trimmed URL", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Body.String(), ShouldContainSubstring, "s-new")
				So(deps.created[0].SourceURL, ShouldEqual, "https://new.example.com")
			})
		})

		Convey("When the URL is blank", func() {
			w := do(h, http.MethodPost, "/api/sources", strings.NewReader(`{"source_url":"  "}`), "application/json")

			Convey("Then nothing is sent upstream", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.created, ShouldBeEmpty)
			})
		})

		Convey("When the body has unknown fields", func() {
			w := do(h, http.MethodPost, "/api/sources", strings.NewReader(`{"url":"x"}`), "application/json")

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the upstream refuses", func() {
			deps.createResult = remote.CreateResult{Error: "duplicate source"}
			w := do(h, http.MethodPost, "/api/sources", strings.NewReader(`{"source_url":"https://a"}`), "application/json")

			Convey("Then the message is relayed as a gateway error", func() {
				So(w.Code, ShouldEqual, http.StatusBadGateway)
				So(w.Body.String(), ShouldContainSubstring, "duplicate source")
			})
		})

		Convey("When uploading a CSV", func() {
			body := &bytes.Buffer{}
			mw := multipart.NewWriter(body)
			part, err := mw.CreateFormFile("file", "list.csv")
			So(err, ShouldBeNil)
			_, _ = part.Write([]byte("source_url\nhttps://a\n"))
			So(mw.Close(), ShouldBeNil)

			w := do(h, http.MethodPost, "/api/sources/csv", body, mw.FormDataContentType())

			Convey("Then the file is forwarded", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.uploaded, ShouldEqual, "list.csv:source_url\nhttps://a\n")
				So(w.Body.String(), ShouldContainSubstring, `"created":2`)
			})
		})

		Convey("When the upload is not multipart", func() {
			w := do(h, http.MethodPost, "/api/sources/csv", strings.NewReader("x"), "text/plain")

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestReviewEndpoints(t *testing.T) {
	Convey("Given an API with review sessions", t, func() {
		reviews := &mockReviews{open: map[string]review.View{}}
		h := newHandler(newMockDeps(), reviews)

		Convey("When opening a review of an unknown report", func() {
			w := do(h, http.MethodPost, "/api/reviews", strings.NewReader(`{"report_id":"missing"}`), "application/json")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When opening a review without a report id", func() {
			w := do(h, http.MethodPost, "/api/reviews", strings.NewReader(`{}`), "application/json")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a review is opened", func() {
			w := do(h, http.MethodPost, "/api/reviews", strings.NewReader(`{"report_id":"r2"}`), "application/json")
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Body.String(), ShouldContainSubstring, `"session_id":"sess-1"`)

			Convey("Then it can be read back", func() {
				g := do(h, http.MethodGet, "/api/reviews/sess-1", nil, "")
				So(g.Code, ShouldEqual, http.StatusOK)
				So(g.Body.String(), ShouldContainSubstring, `"feature_loading":true`)
			})

			Convey("Then a conflicting verify is reported as such", func() {
				reviews.verifyErr = fmt.Errorf("verify: %w", remote.ErrRejected)
				v := do(h, http.MethodPost, "/api/reviews/sess-1/verify", nil, "")
				So(v.Code, ShouldEqual, http.StatusConflict)
			})

			Convey("Then an upstream failure is a gateway error", func() {
				reviews.verifyErr = fmt.Errorf("verify: %w", remote.ErrTransport)
				v := do(h, http.MethodPost, "/api/reviews/sess-1/dismiss", nil, "")
				So(v.Code, ShouldEqual, http.StatusBadGateway)
			})

			Convey("Then a successful verify ends the session", func() {
				v := do(h, http.MethodPost, "/api/reviews/sess-1/verify", nil, "")
				So(v.Code, ShouldEqual, http.StatusOK)
				g := do(h, http.MethodGet, "/api/reviews/sess-1", nil, "")
				So(g.Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("Then closing it twice reports the second as missing", func() {
				So(do(h, http.MethodDelete, "/api/reviews/sess-1", nil, "").Code, ShouldEqual, http.StatusNoContent)
				So(do(h, http.MethodDelete, "/api/reviews/sess-1", nil, "").Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestColumnEndpoints(t *testing.T) {
	Convey("Given the column endpoints", t, func() {
		h := newHandler(newMockDeps(), &mockReviews{open: map[string]review.View{}})

		Convey("When toggling a hideable column", func() {
			w := do(h, http.MethodPost, "/api/columns/features/description/toggle", nil, "")

			Convey("Then it becomes hidden", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"id":"description","title":"Description","hideable":true,"visible":false`)
			})
		})

		Convey("When toggling the name column", func() {
			w := do(h, http.MethodPost, "/api/columns/features/name/toggle", nil, "")

			Convey("Then it is refused", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the column or table is unknown", func() {
			So(do(h, http.MethodPost, "/api/columns/features/nope/toggle", nil, "").Code, ShouldEqual, http.StatusNotFound)
			So(do(h, http.MethodGet, "/api/columns/nope", nil, "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestHealthEndpoints(t *testing.T) {
	Convey("Given the health endpoints", t, func() {
		h := newHandler(newMockDeps(), &mockReviews{open: map[string]review.View{}})

		Convey("Then /livez reports ok", func() {
			w := do(h, http.MethodGet, "/livez", nil, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Then /healthz serves metrics", func() {
			do(h, http.MethodGet, "/livez", nil, "")
			w := do(h, http.MethodGet, "/healthz", nil, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "livez")
		})
	})
}

func TestNewChangeEvent(t *testing.T) {
	Convey("Given a feature update", t, func() {
		c := api.Change{Collection: "features", Event: livelist.KindUpdate, ID: "f1", Phase: livelist.PhaseReady, Size: 2}

		Convey("When it is wrapped in a CloudEvent", func() {
			ev, err := api.NewChangeEvent(c)

			Convey("Then it is a valid structured event", func() {
				So(err, ShouldBeNil)
				So(ev.Type(), ShouldEqual, "auditdeck.features.update")
				So(ev.Source(), ShouldEqual, api.EventSource)
				So(ev.Subject(), ShouldEqual, "f1")
				So(ev.DataContentType(), ShouldEqual, cloudevents.ApplicationJSON)

				var got api.Change
				So(ev.DataAs(&got), ShouldBeNil)
				So(got.Size, ShouldEqual, 2)
			})
		})
	})
}

func TestStreamEndpoint(t *testing.T) {
	Convey("Given a browser connected to the stream", t, func() {
		deps := newMockDeps()
		ts := httptest.NewServer(newHandler(deps, &mockReviews{open: map[string]review.View{}}))
		defer ts.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
		So(err, ShouldBeNil)
		resp, err := http.DefaultClient.Do(req)
		So(err, ShouldBeNil)
		defer func() { _ = resp.Body.Close() }()

		So(resp.Header.Get("Content-Type"), ShouldEqual, "text/event-stream")
		reader := bufio.NewReader(resp.Body)

		next := func() cloudevents.Event {
			for {
				line, err := reader.ReadString('\n')
				So(err, ShouldBeNil)
				if data, ok := strings.CutPrefix(line, "data: "); ok {
					var ev cloudevents.Event
					So(json.Unmarshal([]byte(strings.TrimSpace(data)), &ev), ShouldBeNil)
					return ev
				}
			}
		}

		Convey("Then it first receives one initial event per collection", func() {
			So(next().Type(), ShouldEqual, "auditdeck.features.initial")
			So(next().Type(), ShouldEqual, "auditdeck.sources.initial")
			last := next()
			So(last.Type(), ShouldEqual, "auditdeck.audit_reports.initial")

			var c api.Change
			So(last.DataAs(&c), ShouldBeNil)
			So(c.Phase, ShouldEqual, livelist.PhaseError)
			So(c.Size, ShouldEqual, 3)

			Convey("And then every applied change", func() {
				for deps.subscribers() == 0 {
					time.Sleep(5 * time.Millisecond)
				}
				deps.publish(api.Change{Collection: "audit_reports", Event: livelist.KindDelete, ID: "r1"})
				ev := next()
				So(ev.Type(), ShouldEqual, "auditdeck.audit_reports.delete")
				So(ev.Subject(), ShouldEqual, "r1")
			})
		})
	})
}
