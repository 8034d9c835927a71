package fakeupstream

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/pkg/logger"
)

const maxUpload = 4 << 20

// Handler returns the REST and SSE surface of the analysis API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/features", func(r chi.Router) {
		r.Get("/", s.handleListFeatures)
		r.Get("/count", s.handleCount(func() int { return len(s.Features()) }))
		r.Get("/stream", s.handleStream(StreamFeatures, func() any {
			return map[string]any{"features": s.Features()}
		}))
		r.Get("/{id}", s.handleGetFeature)
	})

	r.Route("/sources", func(r chi.Router) {
		r.Get("/", s.handleListSources)
		r.Post("/", s.handleCreateSource)
		r.Get("/count", s.handleCount(func() int { return len(s.Sources()) }))
		r.Post("/ids", s.handleSourcesByID)
		r.Post("/csv", s.handleUploadCSV)
		r.Get("/stream", s.handleStream(StreamSources, func() any {
			return map[string]any{"sources": s.Sources()}
		}))
	})

	r.Route("/audit-report", func(r chi.Router) {
		r.Get("/", s.handleListAuditReports)
		r.Get("/stream", s.handleStream(StreamAuditReports, func() any {
			return map[string]any{"audit_reports": s.AuditReports()}
		}))
		r.Get("/source/{id}", s.handleAuditReportsBySource)
		r.Post("/{id}/verify", s.handleResolve(s.Verify, "verified"))
		r.Post("/{id}/dismiss", s.handleResolve(s.Dismiss, "dismissed"))
	})

	return r
}

func (s *Server) handleListFeatures(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "features": s.Features()})
}

func (s *Server) handleGetFeature(w http.ResponseWriter, r *http.Request) {
	f, ok := s.Feature(chi.URLParam(r, "id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Feature not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "feature": f})
}

func (s *Server) handleCount(n func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"count": n()})
	}
}

func (s *Server) handleListSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sources": s.Sources()})
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var in model.SourceFields
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	src, err := s.CreateSource(in)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "source_id": src.ID})
}

func (s *Server) handleSourcesByID(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SourceIDs []string `json:"source_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sources": s.SourcesByID(in.SourceIDs)})
}

// handleUploadCSV reads a CSV whose first column, or the column headed
// source_url, holds one URL per row.
func (s *Server) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeDetail(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer func() { _ = file.Close() }()

	urls, err := readURLs(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	ids := make([]string, 0, len(urls))
	for _, u := range urls {
		src, err := s.CreateSource(model.SourceFields{SourceURL: u})
		if err != nil {
			continue
		}
		ids = append(ids, src.ID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"created":    len(ids),
		"source_ids": ids,
		"message":    fmt.Sprintf("created %d sources", len(ids)),
	})
}

func readURLs(r io.Reader) ([]string, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("csv is empty")
	}
	col := 0
	start := 0
	for i, h := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(h), "source_url") {
			col, start = i, 1
			break
		}
	}
	var urls []string
	for _, row := range rows[start:] {
		if col < len(row) && strings.TrimSpace(row[col]) != "" {
			urls = append(urls, strings.TrimSpace(row[col]))
		}
	}
	return urls, nil
}

func (s *Server) handleListAuditReports(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "audit_reports": s.AuditReports()})
}

func (s *Server) handleAuditReportsBySource(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"audit_reports": s.AuditReportsBySource(chi.URLParam(r, "id")),
	})
}

func (s *Server) handleResolve(fn func(string) error, verb string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := fn(id)
		switch {
		case errors.Is(err, ErrNotFound):
			writeDetail(w, http.StatusNotFound, "Audit report not found")
		case err != nil:
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": err.Error()})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Audit report " + verb + " successfully"})
		}
	}
}

// handleStream sends the current collection as initial_data and then every
// broadcast frame until the client leaves or the stream is dropped.
func (s *Server) handleStream(stream string, initial func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeDetail(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		sub := s.hub.subscribe(stream)
		defer s.hub.unsubscribe(stream, sub)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		raw, err := json.Marshal(map[string]any{"type": "initial_data", "data": initial()})
		if err != nil {
			s.log.Error(r.Context(), "failed to encode initial data", logger.Error(err))
			return
		}
		if err := writeFrame(w, s.hub.frameID(), raw); err != nil {
			return
		}
		flusher.Flush()

		s.log.Debug(r.Context(), "stream subscriber connected", logger.String("stream", stream))
		for {
			select {
			case <-r.Context().Done():
				return
			case f, ok := <-sub.ch:
				if !ok {
					return
				}
				if err := writeFrame(w, f.id, f.data); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeFrame(w io.Writer, id uint64, data []byte) error {
	_, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", id, data)
	return err
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail mimics the {"detail": "..."} error body of the real API.
func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

// Run serves the fake API on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: readHeaderTimeout}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.log.Info(ctx, "fake upstream listening", logger.String("addr", addr))
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.DropStreams()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
