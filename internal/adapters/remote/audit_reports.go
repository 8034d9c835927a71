package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/internal/domain/schema"
	"github.com/okian/auditdeck/pkg/logger"
)

// AuditReports reads audit reports and resolves them.
type AuditReports struct{ c *Client }

type auditReportsEnvelope struct {
	Success      bool                `json:"success"`
	AuditReports []model.AuditReport `json:"audit_reports"`
}

type actionEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// List returns every audit report, or an empty list if the call fails.
func (a *AuditReports) List(ctx context.Context) []model.AuditReport {
	return a.list(ctx, request{op: "audit_reports.list", method: http.MethodGet, path: "/audit-report"})
}

// ListBySource returns the reports citing sourceID, or an empty list if the
// call fails.
func (a *AuditReports) ListBySource(ctx context.Context, sourceID string) []model.AuditReport {
	return a.list(ctx, request{
		op:     "audit_reports.list_by_source",
		method: http.MethodGet,
		path:   "/audit-report/source/" + url.PathEscape(sourceID),
	})
}

func (a *AuditReports) list(ctx context.Context, r request) []model.AuditReport {
	env, err := call[auditReportsEnvelope](ctx, a.c, r, schema.AuditReportsResponse)
	if err != nil {
		a.c.log.Warn(ctx, "listing audit reports failed", logger.String("op", r.op), logger.Error(err))
		return []model.AuditReport{}
	}
	return nonNil(env.AuditReports)
}

// Verify accepts the report's proposed status change.
func (a *AuditReports) Verify(ctx context.Context, id string) error {
	return a.action(ctx, "audit_reports.verify", id, "verify")
}

// Dismiss rejects the report's proposed status change.
func (a *AuditReports) Dismiss(ctx context.Context, id string) error {
	return a.action(ctx, "audit_reports.dismiss", id, "dismiss")
}

func (a *AuditReports) action(ctx context.Context, op, id, verb string) error {
	if id == "" {
		return failure(op, ErrInvalidArg, "audit report id is required")
	}
	r := request{op: op, method: http.MethodPost, path: "/audit-report/" + url.PathEscape(id) + "/" + verb}
	env, err := call[actionEnvelope](ctx, a.c, r, schema.ActionResult)
	if err == nil && !env.Success {
		err = failure(op, ErrRejected, messageOr(env.Message, "failed to "+verb+" audit report"))
	}
	if err != nil {
		a.c.log.Warn(ctx, "audit report action failed", logger.String("op", op), logger.String("id", id), logger.Error(err))
		return err
	}
	a.c.log.Info(ctx, "audit report resolved", logger.String("op", op), logger.String("id", id))
	return nil
}
