// Package model contains the entities mirrored from the remote analysis API.
package model

// FeatureStatus is the health state the analysis agent assigns to a feature.
type FeatureStatus string

const (
	FeaturePending  FeatureStatus = "pending"
	FeaturePass     FeatureStatus = "pass"
	FeatureWarning  FeatureStatus = "warning"
	FeatureCritical FeatureStatus = "critical"
)

// FeatureStatuses lists every feature status in display order.
var FeatureStatuses = []FeatureStatus{FeaturePending, FeaturePass, FeatureWarning, FeatureCritical}

// Valid reports whether s is a known feature status.
func (s FeatureStatus) Valid() bool {
	switch s {
	case FeaturePending, FeaturePass, FeatureWarning, FeatureCritical:
		return true
	}
	return false
}

// AuditReportStatus is the review state of an audit report.
type AuditReportStatus string

const (
	ReportPending   AuditReportStatus = "pending"
	ReportVerified  AuditReportStatus = "verified"
	ReportDismissed AuditReportStatus = "dismissed"
)

// AuditReportStatuses lists every review status in display order.
var AuditReportStatuses = []AuditReportStatus{ReportPending, ReportVerified, ReportDismissed}

// Valid reports whether s is a known review status.
func (s AuditReportStatus) Valid() bool {
	switch s {
	case ReportPending, ReportVerified, ReportDismissed:
		return true
	}
	return false
}

// Terminal reports whether the review has been resolved.
func (s AuditReportStatus) Terminal() bool {
	return s == ReportVerified || s == ReportDismissed
}

// CanTransition reports whether a report in status s may move to status to.
// Only pending reports can be resolved and resolved reports stay resolved.
func (s AuditReportStatus) CanTransition(to AuditReportStatus) bool {
	return s == ReportPending && to.Terminal()
}
