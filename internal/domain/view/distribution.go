package view

import "github.com/okian/auditdeck/internal/domain/model"

// Slice is one status segment of the distribution chart.
type Slice struct {
	Status model.FeatureStatus `json:"status"`
	Label  string              `json:"label"`
	Color  string              `json:"color"`
	Count  int                 `json:"count"`
}

var statusStyle = map[model.FeatureStatus]struct{ label, color string }{
	model.FeaturePending:  {"Pending", "oklch(0.646 0.222 41.116)"},
	model.FeaturePass:     {"Pass", "oklch(0.6 0.118 184.704)"},
	model.FeatureWarning:  {"Warning", "oklch(0.398 0.07 227.392)"},
	model.FeatureCritical: {"Critical", "oklch(0.828 0.189 84.429)"},
}

// StatusDistribution counts features per status. The result always has one
// slice per status, in display order, including empty ones.
func StatusDistribution(items []model.Feature) []Slice {
	counts := make(map[model.FeatureStatus]int, len(model.FeatureStatuses))
	for _, f := range items {
		counts[f.Status]++
	}
	out := make([]Slice, 0, len(model.FeatureStatuses))
	for _, st := range model.FeatureStatuses {
		style := statusStyle[st]
		out = append(out, Slice{Status: st, Label: style.label, Color: style.color, Count: counts[st]})
	}
	return out
}

// StatusLabel returns the display label of a feature status.
func StatusLabel(s model.FeatureStatus) string {
	if style, ok := statusStyle[s]; ok {
		return style.label
	}
	return string(s)
}
