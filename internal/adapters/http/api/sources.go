package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/auditdeck/internal/domain/model"
)

// maxUpload bounds CSV uploads.
const maxUpload = 10 << 20

// SourceHandler handles source submissions and per-source report lookups.
type SourceHandler struct {
	deps Dependencies
}

// NewSourceHandler creates a new source handler.
func NewSourceHandler(deps Dependencies) *SourceHandler {
	return &SourceHandler{deps: deps}
}

// HandleCreate handles POST /api/sources.
func (h *SourceHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.SourceFields
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	req.SourceURL = strings.TrimSpace(req.SourceURL)
	if req.SourceURL == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("source_url is required"))
		return
	}
	res := h.deps.CreateSource(r.Context(), req)
	if !res.Success {
		writeError(w, http.StatusBadGateway, "upstream_error", errors.New(res.Error))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleUpload handles POST /api/sources/csv with multipart field "file".
func (h *SourceHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("expected a multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing file field"))
		return
	}
	defer func() { _ = file.Close() }()

	res := h.deps.UploadSources(r.Context(), header.Filename, file)
	if !res.Success {
		writeError(w, http.StatusBadGateway, "upstream_error", errors.New(res.Error))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleReportsBySource handles GET /api/audit-reports/source/{id}.
func (h *SourceHandler) HandleReportsBySource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing source id"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source_id": id,
		"items":     h.deps.AuditReportsBySource(r.Context(), id),
	})
}
