// Package view derives what the dashboard tables and charts show from a
// live-list snapshot. Every function is pure and leaves its input untouched.
package view

import (
	"cmp"
	"slices"
	"strings"

	"github.com/okian/auditdeck/internal/domain/model"
)

// FilterFeatures keeps features whose name, description or tags contain
// query, ignoring case, and whose status is among statuses. An empty query
// or status list does not filter.
func FilterFeatures(items []model.Feature, query string, statuses []model.FeatureStatus) []model.Feature {
	q := normalizeQuery(query)
	out := make([]model.Feature, 0, len(items))
	for _, f := range items {
		if len(statuses) > 0 && !slices.Contains(statuses, f.Status) {
			continue
		}
		if q != "" && !containsAny(q, append([]string{f.Name, f.Description}, f.Tags...)...) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FilterSources keeps sources whose URL or tags contain query and that carry
// at least one of tags.
func FilterSources(items []model.Source, query string, tags []string) []model.Source {
	q := normalizeQuery(query)
	out := make([]model.Source, 0, len(items))
	for _, s := range items {
		if len(tags) > 0 && !slices.ContainsFunc(tags, s.HasTag) {
			continue
		}
		if q != "" && !containsAny(q, append([]string{s.SourceURL}, s.Tags...)...) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// FilterAuditReports keeps reports whose status is among statuses and sorts
// them newest first. Reports created at the same instant keep their order.
func FilterAuditReports(items []model.AuditReport, statuses []model.AuditReportStatus) []model.AuditReport {
	out := make([]model.AuditReport, 0, len(items))
	for _, r := range items {
		if len(statuses) == 0 || slices.Contains(statuses, r.Status) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b model.AuditReport) int {
		return b.CreatedAt.Compare(a.CreatedAt.Time)
	})
	return out
}

// PendingReview counts reports that still wait for a decision.
func PendingReview(items []model.AuditReport) int {
	n := 0
	for _, r := range items {
		if r.Status == model.ReportPending {
			n++
		}
	}
	return n
}

// Tags returns the distinct tags of sources, sorted case-insensitively.
func Tags(items []model.Source) []string {
	seen := make(map[string]string)
	for _, s := range items {
		for _, t := range s.Tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if _, ok := seen[strings.ToLower(t)]; !ok {
				seen[strings.ToLower(t)] = t
			}
		}
	}
	out := make([]string, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b string) int {
		return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return out
}

func normalizeQuery(q string) string { return strings.ToLower(strings.TrimSpace(q)) }

func containsAny(q string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
