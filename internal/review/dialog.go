// Package review drives the human side of the dashboard: the review dialog
// for one audit report, concurrent review sessions, notifications and the
// summary cards.
package review

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/pkg/logger"
	"github.com/okian/auditdeck/pkg/metrics"
)

// FeatureGetter fetches one feature on demand.
type FeatureGetter interface {
	Get(ctx context.Context, id string) (model.Feature, error)
}

// SourceGetter fetches the sources a report cites.
type SourceGetter interface {
	GetByIDs(ctx context.Context, ids []string) ([]model.Source, error)
}

// Resolver verifies or dismisses a report upstream.
type Resolver interface {
	Verify(ctx context.Context, id string) error
	Dismiss(ctx context.Context, id string) error
}

// Action is a review decision.
type Action string

const (
	ActionVerify  Action = "verify"
	ActionDismiss Action = "dismiss"
)

func (a Action) target() model.AuditReportStatus {
	if a == ActionVerify {
		return model.ReportVerified
	}
	return model.ReportDismissed
}

func (a Action) past() string {
	if a == ActionVerify {
		return "verified"
	}
	return "dismissed"
}

// View is what the dialog shows. Fetch errors are shown in place of the
// missing data.
type View struct {
	Open           bool               `json:"open"`
	Report         *model.AuditReport `json:"report,omitempty"`
	Feature        *model.Feature     `json:"feature,omitempty"`
	FeatureError   string             `json:"feature_error,omitempty"`
	FeatureLoading bool               `json:"feature_loading"`
	Sources        []model.Source     `json:"sources"`
	SourcesError   string             `json:"sources_error,omitempty"`
	SourcesLoading bool               `json:"sources_loading"`
	Busy           bool               `json:"busy"`
}

// Dialog is the review dialog for a single audit report. Related data is
// fetched when the dialog opens, never ahead of time. Completions that
// arrive after the dialog closed or moved on to another report are dropped.
type Dialog struct {
	features FeatureGetter
	sources  SourceGetter
	resolver Resolver
	toasts   *Toasts
	log      logger.Logger

	mu   sync.Mutex
	gen  uint64
	view View
}

// NewDialog creates a closed dialog.
func NewDialog(features FeatureGetter, sources SourceGetter, resolver Resolver, toasts *Toasts, opts ...Option) *Dialog {
	o := defaults(opts)
	return &Dialog{
		features: features,
		sources:  sources,
		resolver: resolver,
		toasts:   toasts,
		log:      o.log.Named("review"),
		view:     View{Sources: []model.Source{}},
	}
}

// Open selects report and fetches its feature and sources concurrently. It
// returns once both fetches settled or ctx is done.
func (d *Dialog) Open(ctx context.Context, report model.AuditReport) View {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.view = View{
		Open:           true,
		Report:         &report,
		FeatureLoading: true,
		Sources:        []model.Source{},
		SourcesLoading: len(report.SourceIDs) > 0,
	}
	d.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f, err := d.features.Get(ctx, report.FeatureID)
		d.settle(gen, func(v *View) {
			v.FeatureLoading = false
			if err != nil {
				v.FeatureError = err.Error()
				return
			}
			v.Feature = &f
		})
	}()
	go func() {
		defer wg.Done()
		if len(report.SourceIDs) == 0 {
			return
		}
		sources, err := d.sources.GetByIDs(ctx, report.SourceIDs)
		d.settle(gen, func(v *View) {
			v.SourcesLoading = false
			if err != nil {
				v.SourcesError = err.Error()
				return
			}
			v.Sources = sources
		})
	}()
	wg.Wait()
	return d.View()
}

// settle applies a fetch completion unless the dialog moved on.
func (d *Dialog) settle(gen uint64, apply func(*View)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		d.log.Debug(context.Background(), "dropping stale fetch result")
		return
	}
	apply(&d.view)
}

// View returns a copy of the current dialog state.
func (d *Dialog) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.copyView()
}

func (d *Dialog) copyView() View {
	v := d.view
	if v.Report != nil {
		r := *v.Report
		v.Report = &r
	}
	if v.Feature != nil {
		f := *v.Feature
		v.Feature = &f
	}
	v.Sources = append([]model.Source{}, v.Sources...)
	return v
}

// IsOpen reports whether a report is selected.
func (d *Dialog) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view.Open
}

// ReportID returns the selected report id, or "" when closed.
func (d *Dialog) ReportID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.view.Report == nil {
		return ""
	}
	return d.view.Report.ID
}

// Close clears the selection and abandons in-flight fetches.
func (d *Dialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
}

func (d *Dialog) closeLocked() {
	d.gen++
	d.view = View{Sources: []model.Source{}}
}

// ReportUpdated refreshes the selected report in place when r is it.
func (d *Dialog) ReportUpdated(r model.AuditReport) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.view.Open || d.view.Report == nil || d.view.Report.ID != r.ID {
		return false
	}
	d.view.Report = &r
	return true
}

// ReportDeleted closes the dialog when id is the selected report.
func (d *Dialog) ReportDeleted(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.view.Open || d.view.Report == nil || d.view.Report.ID != id {
		return false
	}
	d.closeLocked()
	return true
}

// Verify accepts the proposed status change.
func (d *Dialog) Verify(ctx context.Context) error { return d.resolve(ctx, ActionVerify) }

// Dismiss rejects the proposed status change.
func (d *Dialog) Dismiss(ctx context.Context) error { return d.resolve(ctx, ActionDismiss) }

// resolve runs one action. Success toasts and closes the dialog; failure
// toasts and leaves it open. Nothing is retried.
func (d *Dialog) resolve(ctx context.Context, a Action) error {
	d.mu.Lock()
	if !d.view.Open || d.view.Report == nil {
		d.mu.Unlock()
		return ErrNotOpen
	}
	if d.view.Busy {
		d.mu.Unlock()
		return ErrBusy
	}
	report := *d.view.Report
	if !report.Status.CanTransition(a.target()) {
		d.mu.Unlock()
		err := fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, report.ID, report.Status)
		d.toasts.Error("Could not "+string(a)+" audit report", err.Error())
		metrics.RecordReviewAction(string(a), "rejected")
		return err
	}
	d.view.Busy = true
	gen := d.gen
	d.mu.Unlock()

	var err error
	if a == ActionVerify {
		err = d.resolver.Verify(ctx, report.ID)
	} else {
		err = d.resolver.Dismiss(ctx, report.ID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		if gen == d.gen {
			d.view.Busy = false
		}
		d.toasts.Error("Could not "+string(a)+" audit report", err.Error())
		metrics.RecordReviewAction(string(a), "error")
		d.log.Warn(ctx, "review action failed",
			logger.String("action", string(a)), logger.String("report", report.ID), logger.Error(err))
		return err
	}
	d.toasts.Success("Audit report "+a.past(), "The proposed status change was "+a.past()+".")
	metrics.RecordReviewAction(string(a), "ok")
	d.log.Info(ctx, "audit report reviewed", logger.String("action", string(a)), logger.String("report", report.ID))
	if gen == d.gen {
		d.closeLocked()
	}
	return nil
}
