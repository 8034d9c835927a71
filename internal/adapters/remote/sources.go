package remote

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/internal/domain/schema"
	"github.com/okian/auditdeck/pkg/logger"
)

// Sources reads and creates sources.
type Sources struct{ c *Client }

type sourcesEnvelope struct {
	Success bool           `json:"success"`
	Sources []model.Source `json:"sources"`
}

type createEnvelope struct {
	Success  bool   `json:"success"`
	SourceID string `json:"source_id"`
	Message  string `json:"message"`
}

type uploadEnvelope struct {
	Success   bool     `json:"success"`
	Created   int      `json:"created"`
	SourceIDs []string `json:"source_ids"`
	Message   string   `json:"message"`
}

// CreateResult is the outcome of Create. Error is set when Success is false.
type CreateResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UploadResult is the outcome of UploadCSV.
type UploadResult struct {
	Success bool     `json:"success"`
	Created int      `json:"created"`
	IDs     []string `json:"ids,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// List returns every source, or an empty list if the call fails.
func (s *Sources) List(ctx context.Context) []model.Source {
	env, err := call[sourcesEnvelope](ctx, s.c, request{op: "sources.list", method: http.MethodGet, path: "/sources"}, schema.SourcesResponse)
	if err != nil {
		s.c.log.Warn(ctx, "listing sources failed", logger.Error(err))
		return []model.Source{}
	}
	return nonNil(env.Sources)
}

// Count returns the number of sources, or 0 if the call fails.
func (s *Sources) Count(ctx context.Context) int {
	env, err := call[countEnvelope](ctx, s.c, request{op: "sources.count", method: http.MethodGet, path: "/sources/count"}, schema.Count)
	if err != nil {
		s.c.log.Warn(ctx, "counting sources failed", logger.Error(err))
		return 0
	}
	return env.Count
}

// GetByIDs fetches the given sources in one round trip. On failure it
// returns an empty list together with the error, so callers can tell a
// failure from an empty result.
func (s *Sources) GetByIDs(ctx context.Context, ids []string) ([]model.Source, error) {
	const op = "sources.get_by_ids"
	if len(ids) == 0 {
		return []model.Source{}, nil
	}
	r, err := jsonRequest(op, http.MethodPost, "/sources/ids", map[string][]string{"source_ids": ids})
	if err != nil {
		return []model.Source{}, err
	}
	env, err := call[sourcesEnvelope](ctx, s.c, r, schema.SourcesResponse)
	if err != nil {
		s.c.log.Warn(ctx, "fetching sources by id failed", logger.Strings("ids", ids), logger.Error(err))
		return []model.Source{}, err
	}
	return nonNil(env.Sources), nil
}

// Create submits a new source. Failures are reported in the result.
func (s *Sources) Create(ctx context.Context, fields model.SourceFields) CreateResult {
	const op = "sources.create"
	fields.SourceURL = strings.TrimSpace(fields.SourceURL)
	if fields.SourceURL == "" {
		return CreateResult{Error: "source URL is required"}
	}
	r, err := jsonRequest(op, http.MethodPost, "/sources", fields)
	if err != nil {
		return CreateResult{Error: err.Error()}
	}
	env, err := call[createEnvelope](ctx, s.c, r, schema.CreateResult)
	if err != nil {
		s.c.log.Warn(ctx, "creating source failed", logger.String("url", fields.SourceURL), logger.Error(err))
		return CreateResult{Error: err.Error()}
	}
	if !env.Success {
		return CreateResult{Error: messageOr(env.Message, "failed to create source")}
	}
	return CreateResult{Success: true, ID: env.SourceID}
}

// UploadCSV sends a CSV of sources as multipart field "file".
func (s *Sources) UploadCSV(ctx context.Context, filename string, csv io.Reader) UploadResult {
	const op = "sources.upload_csv"
	if filename == "" {
		filename = "sources.csv"
	}
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	if err == nil {
		_, err = io.Copy(part, csv)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return UploadResult{Error: failure(op, ErrInvalidArg, err).Error()}
	}

	r := request{op: op, method: http.MethodPost, path: "/sources/csv", body: body, contentType: mw.FormDataContentType()}
	env, err := call[uploadEnvelope](ctx, s.c, r, schema.UploadResult)
	if err != nil {
		s.c.log.Warn(ctx, "uploading sources failed", logger.String("file", filename), logger.Error(err))
		return UploadResult{Error: err.Error()}
	}
	if !env.Success {
		return UploadResult{Error: messageOr(env.Message, "failed to upload sources")}
	}
	return UploadResult{Success: true, Created: env.Created, IDs: env.SourceIDs}
}

func messageOr(msg, fallback string) string {
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}
