// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	service "github.com/okian/auditdeck/internal/app"
	"github.com/okian/auditdeck/internal/adapters/remote"
	"github.com/okian/auditdeck/internal/domain/livelist"
	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/internal/review"
	"github.com/okian/auditdeck/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Live list snapshots.
	Features() livelist.State[model.Feature]
	Sources() livelist.State[model.Source]
	AuditReports() livelist.State[model.AuditReport]

	Summary() Summary
	Toasts() []review.Toast

	// One-shot upstream operations.
	CreateSource(ctx context.Context, fields model.SourceFields) remote.CreateResult
	UploadSources(ctx context.Context, filename string, csv io.Reader) remote.UploadResult
	AuditReportsBySource(ctx context.Context, sourceID string) []model.AuditReport

	// Subscribe registers fn for every applied live-list change.
	Subscribe(fn func(Change)) (cancel func())
}

// Reviews is the review session table.
type Reviews interface {
	Open(ctx context.Context, reportID string) (string, review.View, error)
	Get(id string) (review.View, error)
	Verify(ctx context.Context, id string) (review.View, error)
	Dismiss(ctx context.Context, id string) (review.View, error)
	Close(id string) bool
}

// Summary mirrors the overview page content.
type Summary = service.Summary

// Change mirrors one applied live-list event.
type Change = service.Change

// Server wires HTTP routes for the dashboard API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	listHandler    *ListHandler
	sourceHandler  *SourceHandler
	reviewHandler  *ReviewHandler
	columnsHandler *ColumnsHandler
	streamHandler  *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, reviews Reviews, statsProvider StatsProvider, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("api")
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		listHandler:    NewListHandler(deps),
		sourceHandler:  NewSourceHandler(deps),
		reviewHandler:  NewReviewHandler(reviews),
		columnsHandler: NewColumnsHandler(),
		streamHandler:  NewStreamHandler(deps, log),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/livez", MetricsMiddleware(s.healthHandler.HandleLive, "livez"))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Recoverer)

		r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
		r.Get("/summary", MetricsMiddleware(s.listHandler.HandleSummary, "summary"))
		r.Get("/toasts", MetricsMiddleware(s.listHandler.HandleToasts, "toasts"))
		r.Get("/stream", MetricsMiddleware(s.streamHandler.HandleStream, "stream"))

		r.Get("/features", MetricsMiddleware(s.listHandler.HandleFeatures, "features"))

		r.Get("/sources", MetricsMiddleware(s.listHandler.HandleSources, "sources"))
		r.Get("/sources/tags", MetricsMiddleware(s.listHandler.HandleSourceTags, "sources_tags"))
		r.Post("/sources", MetricsMiddleware(s.sourceHandler.HandleCreate, "sources_create"))
		r.Post("/sources/csv", MetricsMiddleware(s.sourceHandler.HandleUpload, "sources_csv"))

		r.Get("/audit-reports", MetricsMiddleware(s.listHandler.HandleAuditReports, "audit_reports"))
		r.Get("/audit-reports/source/{id}", MetricsMiddleware(s.sourceHandler.HandleReportsBySource, "audit_reports_by_source"))

		r.Post("/reviews", MetricsMiddleware(s.reviewHandler.HandleOpen, "reviews_open"))
		r.Get("/reviews/{sid}", MetricsMiddleware(s.reviewHandler.HandleGet, "reviews_get"))
		r.Post("/reviews/{sid}/verify", MetricsMiddleware(s.reviewHandler.HandleVerify, "reviews_verify"))
		r.Post("/reviews/{sid}/dismiss", MetricsMiddleware(s.reviewHandler.HandleDismiss, "reviews_dismiss"))
		r.Delete("/reviews/{sid}", MetricsMiddleware(s.reviewHandler.HandleClose, "reviews_close"))

		r.Get("/columns/{table}", MetricsMiddleware(s.columnsHandler.HandleList, "columns"))
		r.Post("/columns/{table}/{column}/toggle", MetricsMiddleware(s.columnsHandler.HandleToggle, "columns_toggle"))
	})
}

// Handler returns a router with every API route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeReviewError maps review and upstream failures to a status code.
func writeReviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, review.ErrSessionNotFound), errors.Is(err, review.ErrReportNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, review.ErrBusy), errors.Is(err, review.ErrNotOpen),
		errors.Is(err, review.ErrAlreadyResolved), errors.Is(err, remote.ErrRejected):
		writeError(w, http.StatusConflict, "conflict", err)
	default:
		writeError(w, http.StatusBadGateway, "upstream_error", err)
	}
}

// decodeBody reads a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

