package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/auditdeck/internal/domain/livelist"
	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/internal/domain/view"
)

// listResponse is the JSON shape of one filtered live list.
type listResponse[T any] struct {
	Phase livelist.Phase `json:"phase"`
	Error string         `json:"error,omitempty"`
	Items []T            `json:"items"`
}

func newListResponse[T livelist.Keyed](s livelist.State[T], items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Phase: s.Phase(), Error: s.Err, Items: items}
}

// ListHandler serves the live list snapshots and what is derived from them.
type ListHandler struct {
	deps Dependencies
}

// NewListHandler creates a new list handler.
func NewListHandler(deps Dependencies) *ListHandler {
	return &ListHandler{deps: deps}
}

// HandleFeatures handles GET /api/features?q=&status=.
func (h *ListHandler) HandleFeatures(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseStatuses(r, func(s string) (model.FeatureStatus, bool) {
		st := model.FeatureStatus(s)
		return st, st.Valid()
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	s := h.deps.Features()
	writeJSON(w, http.StatusOK, newListResponse(s, view.FilterFeatures(s.Items, r.URL.Query().Get("q"), statuses)))
}

// HandleSources handles GET /api/sources?q=&tag=.
func (h *ListHandler) HandleSources(w http.ResponseWriter, r *http.Request) {
	s := h.deps.Sources()
	tags := splitValues(r.URL.Query()["tag"])
	writeJSON(w, http.StatusOK, newListResponse(s, view.FilterSources(s.Items, r.URL.Query().Get("q"), tags)))
}

// HandleSourceTags handles GET /api/sources/tags.
func (h *ListHandler) HandleSourceTags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"tags": view.Tags(h.deps.Sources().Items)})
}

// HandleAuditReports handles GET /api/audit-reports?status=.
func (h *ListHandler) HandleAuditReports(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseStatuses(r, func(s string) (model.AuditReportStatus, bool) {
		st := model.AuditReportStatus(s)
		return st, st.Valid()
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	s := h.deps.AuditReports()
	writeJSON(w, http.StatusOK, newListResponse(s, view.FilterAuditReports(s.Items, statuses)))
}

// HandleSummary handles GET /api/summary.
func (h *ListHandler) HandleSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Summary())
}

// HandleToasts handles GET /api/toasts.
func (h *ListHandler) HandleToasts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Toasts())
}

// parseStatuses reads repeated or comma separated status values.
func parseStatuses[S ~string](r *http.Request, parse func(string) (S, bool)) ([]S, error) {
	values := splitValues(r.URL.Query()["status"])
	out := make([]S, 0, len(values))
	for _, v := range values {
		st, ok := parse(strings.ToLower(v))
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrBadRequest, v)
		}
		out = append(out, st)
	}
	return out, nil
}

func splitValues(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
