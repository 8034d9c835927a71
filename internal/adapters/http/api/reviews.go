package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/auditdeck/internal/review"
)

type openReviewRequest struct {
	ReportID string `json:"report_id"`
}

type reviewResponse struct {
	SessionID string      `json:"session_id"`
	View      review.View `json:"view"`
}

// ReviewHandler exposes review sessions.
type ReviewHandler struct {
	reviews Reviews
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(reviews Reviews) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// HandleOpen handles POST /api/reviews.
func (h *ReviewHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	var req openReviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.ReportID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("report_id is required"))
		return
	}
	id, v, err := h.reviews.Open(r.Context(), req.ReportID)
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reviewResponse{SessionID: id, View: v})
}

// HandleGet handles GET /api/reviews/{sid}.
func (h *ReviewHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	v, err := h.reviews.Get(sid)
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewResponse{SessionID: sid, View: v})
}

// HandleVerify handles POST /api/reviews/{sid}/verify.
func (h *ReviewHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	v, err := h.reviews.Verify(r.Context(), sid)
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewResponse{SessionID: sid, View: v})
}

// HandleDismiss handles POST /api/reviews/{sid}/dismiss.
func (h *ReviewHandler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	v, err := h.reviews.Dismiss(r.Context(), sid)
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewResponse{SessionID: sid, View: v})
}

// HandleClose handles DELETE /api/reviews/{sid}.
func (h *ReviewHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if !h.reviews.Close(chi.URLParam(r, "sid")) {
		writeError(w, http.StatusNotFound, "not_found", review.ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
