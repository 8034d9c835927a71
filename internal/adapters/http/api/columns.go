package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/auditdeck/internal/domain/view"
)

type columnState struct {
	view.Column
	Visible bool `json:"visible"`
}

// ColumnsHandler keeps the column visibility of each table.
type ColumnsHandler struct {
	tables map[string]*view.Columns
}

// NewColumnsHandler creates a handler with every column visible.
func NewColumnsHandler() *ColumnsHandler {
	return &ColumnsHandler{tables: map[string]*view.Columns{
		"features":      view.NewColumns(view.FeatureColumns),
		"sources":       view.NewColumns(view.SourceColumns),
		"audit-reports": view.NewColumns(view.AuditReportColumns),
	}}
}

// HandleList handles GET /api/columns/{table}.
func (h *ColumnsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	cols, all, err := h.table(chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	writeJSON(w, http.StatusOK, states(cols, all))
}

// HandleToggle handles POST /api/columns/{table}/{column}/toggle.
func (h *ColumnsHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	cols, all, err := h.table(chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	if _, err := cols.Toggle(chi.URLParam(r, "column")); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, view.ErrUnknownColumn) {
			status = http.StatusNotFound
		}
		writeError(w, status, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusOK, states(cols, all))
}

func (h *ColumnsHandler) table(name string) (*view.Columns, []view.Column, error) {
	cols, ok := h.tables[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	switch name {
	case "features":
		return cols, view.FeatureColumns, nil
	case "sources":
		return cols, view.SourceColumns, nil
	}
	return cols, view.AuditReportColumns, nil
}

func states(cols *view.Columns, all []view.Column) []columnState {
	out := make([]columnState, 0, len(all))
	for _, c := range all {
		out = append(out, columnState{Column: c, Visible: cols.IsVisible(c.ID)})
	}
	return out
}
