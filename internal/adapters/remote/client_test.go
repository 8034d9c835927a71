package remote_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/auditdeck/internal/adapters/remote"
	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const featureJSON = `{"id":"f1","name":"Curfew login blocker","description":"d","status":"warning","created_at":"2024-05-01T10:20:30","updated_at":null}`

const sourceJSON = `{"id":"s1","source_url":"https://example.com/a","tags":null,"created_at":"2024-05-01T10:20:30Z","updated_at":null}`

const reportJSON = `{"id":"r1","feature_id":"f1","source_ids":["s1"],"needs_action":true,"original_status":"pass","status_change_to":"critical","reason":"r","confidence":0.9,"status":"pending","created_at":"2024-05-01T10:20:30Z","updated_at":null}`

func serve(t *testing.T, routes map[string]http.HandlerFunc) *remote.Client {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return remote.New(srv.URL)
}

func body(s string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, s)
	}
}

func status(code int, s string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
		_, _ = io.WriteString(w, s)
	}
}

func TestFeaturesList(t *testing.T) {
	t.Run("returns validated features", func(t *testing.T) {
		c := serve(t, map[string]http.HandlerFunc{
			"GET /features": body(`{"success":true,"features":[` + featureJSON + `]}`),
		})
		got := c.Features.List(t.Context())
		require.Len(t, got, 1)
		assert.Equal(t, "f1", got[0].ID)
		assert.Equal(t, model.FeatureWarning, got[0].Status)
	})

	t.Run("degrades to empty on HTTP 500", func(t *testing.T) {
		c := serve(t, map[string]http.HandlerFunc{
			"GET /features": status(http.StatusInternalServerError, `{"detail":"db down"}`),
		})
		got := c.Features.List(t.Context())
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("degrades to empty on a malformed envelope", func(t *testing.T) {
		c := serve(t, map[string]http.HandlerFunc{
			"GET /features": body(`{"success":true,"features":[{"id":"f1"}]}`),
		})
		assert.Empty(t, c.Features.List(t.Context()))
	})
}

func TestCounts(t *testing.T) {
	c := serve(t, map[string]http.HandlerFunc{
		"GET /features/count": body(`{"count": 12}`),
		"GET /sources/count":  body(`{"count": "many"}`),
	})
	assert.Equal(t, 12, c.Features.Count(t.Context()))
	assert.Equal(t, 0, c.Sources.Count(t.Context()))
}

func TestFeaturesGet(t *testing.T) {
	c := serve(t, map[string]http.HandlerFunc{
		"GET /features/f1":      body(`{"success":true,"feature":` + featureJSON + `}`),
		"GET /features/bare":    body(featureJSON),
		"GET /features/missing": status(http.StatusNotFound, `{"detail":"Feature not found"}`),
	})

	f, err := c.Features.Get(t.Context(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "Curfew login blocker", f.Name)

	f, err = c.Features.Get(t.Context(), "bare")
	require.NoError(t, err)
	assert.Equal(t, "f1", f.ID)

	_, err = c.Features.Get(t.Context(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrStatus)
	assert.Contains(t, err.Error(), "Feature not found")

	_, err = c.Features.Get(t.Context(), "")
	assert.ErrorIs(t, err, remote.ErrInvalidArg)
}

func TestSourcesGetByIDs(t *testing.T) {
	t.Run("posts the ids and returns the sources", func(t *testing.T) {
		var got map[string][]string
		c := serve(t, map[string]http.HandlerFunc{
			"POST /sources/ids": func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewDecoder(r.Body).Decode(&got)
				body(`{"success":true,"sources":[` + sourceJSON + `]}`)(w, r)
			},
		})
		sources, err := c.Sources.GetByIDs(t.Context(), []string{"x", "y"})
		require.NoError(t, err)
		require.Len(t, sources, 1)
		assert.Equal(t, []string{"x", "y"}, got["source_ids"])
	})

	t.Run("surfaces an error for an incompatible payload", func(t *testing.T) {
		c := serve(t, map[string]http.HandlerFunc{
			"POST /sources/ids": body(`{"success":true,"sources":[{"id":42}]}`),
		})
		sources, err := c.Sources.GetByIDs(t.Context(), []string{"x", "y"})
		require.Error(t, err)
		assert.ErrorIs(t, err, remote.ErrValidation)
		assert.NotEmpty(t, err.Error())
		assert.NotNil(t, sources)
		assert.Empty(t, sources)
	})

	t.Run("distinguishes an empty success", func(t *testing.T) {
		c := serve(t, map[string]http.HandlerFunc{
			"POST /sources/ids": body(`{"success":true,"sources":[]}`),
		})
		sources, err := c.Sources.GetByIDs(t.Context(), []string{"x"})
		require.NoError(t, err)
		assert.Empty(t, sources)
	})
}

func TestSourcesCreate(t *testing.T) {
	c := serve(t, map[string]http.HandlerFunc{
		"POST /sources": func(w http.ResponseWriter, r *http.Request) {
			var in model.SourceFields
			_ = json.NewDecoder(r.Body).Decode(&in)
			if strings.Contains(in.SourceURL, "broken") {
				status(http.StatusInternalServerError, `{"detail":"could not fetch url"}`)(w, r)
				return
			}
			body(`{"success":true,"source_id":"s-new"}`)(w, r)
		},
	})

	res := c.Sources.Create(t.Context(), model.SourceFields{SourceURL: "  "})
	assert.False(t, res.Success)
	assert.Equal(t, "source URL is required", res.Error)

	res = c.Sources.Create(t.Context(), model.SourceFields{SourceURL: "https://example.com/a"})
	assert.True(t, res.Success)
	assert.Equal(t, "s-new", res.ID)

	res = c.Sources.Create(t.Context(), model.SourceFields{SourceURL: "https://broken.example"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "could not fetch url")
}

func TestSourcesUploadCSV(t *testing.T) {
	c := serve(t, map[string]http.HandlerFunc{
		"POST /sources/csv": func(w http.ResponseWriter, r *http.Request) {
			f, hdr, err := r.FormFile("file")
			if err != nil {
				status(http.StatusBadRequest, `{"detail":"missing file"}`)(w, r)
				return
			}
			raw, _ := io.ReadAll(f)
			if hdr.Filename != "list.csv" || !strings.Contains(string(raw), "https://a.example") {
				status(http.StatusBadRequest, `{"detail":"unexpected upload"}`)(w, r)
				return
			}
			body(`{"success":true,"created":2,"source_ids":["s1","s2"]}`)(w, r)
		},
	})

	res := c.Sources.UploadCSV(t.Context(), "list.csv", strings.NewReader("source_url\nhttps://a.example\nhttps://b.example\n"))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, []string{"s1", "s2"}, res.IDs)
}

func TestAuditReports(t *testing.T) {
	c := serve(t, map[string]http.HandlerFunc{
		"GET /audit-report/source/{id}": func(w http.ResponseWriter, r *http.Request) {
			if r.PathValue("id") != "s 1" {
				body(`{"success":true,"audit_reports":[]}`)(w, r)
				return
			}
			body(`{"success":true,"audit_reports":[` + reportJSON + `]}`)(w, r)
		},
		"POST /audit-report/r1/verify":  body(`{"success":true,"message":"verified"}`),
		"POST /audit-report/r1/dismiss": body(`{"success":false,"message":"already resolved"}`),
	})

	reports := c.AuditReports.ListBySource(t.Context(), "s 1")
	require.Len(t, reports, 1)
	assert.InDelta(t, 0.9, reports[0].Confidence, 1e-9)

	require.NoError(t, c.AuditReports.Verify(t.Context(), "r1"))

	err := c.AuditReports.Dismiss(t.Context(), "r1")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrRejected)
	assert.Contains(t, err.Error(), "already resolved")

	err = c.AuditReports.Verify(t.Context(), "unknown")
	assert.ErrorIs(t, err, remote.ErrStatus)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := remote.New(url)
	assert.Empty(t, c.AuditReports.List(t.Context()))

	err := c.AuditReports.Verify(t.Context(), "r1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, remote.ErrTransport))
}
