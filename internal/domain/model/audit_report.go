package model

import (
	"encoding/json"
	"math"
)

// AuditReport proposes moving a feature from OriginalStatus to StatusChangeTo
// based on evidence in SourceIDs.
type AuditReport struct {
	ID             string            `json:"id"`
	FeatureID      string            `json:"feature_id"`
	SourceIDs      []string          `json:"source_ids"`
	OriginalStatus FeatureStatus     `json:"original_status"`
	StatusChangeTo FeatureStatus     `json:"status_change_to"`
	Reason         string            `json:"reason"`
	Confidence     float64           `json:"confidence"`
	NeedsAction    bool              `json:"needs_action"`
	Status         AuditReportStatus `json:"status"`
	CreatedAt      Timestamp         `json:"created_at"`
	UpdatedAt      *Timestamp        `json:"updated_at"`
}

// Key returns the report identity.
func (r AuditReport) Key() string { return r.ID }

// ChangesStatus reports whether the report proposes a different status.
func (r AuditReport) ChangesStatus() bool { return r.StatusChangeTo != r.OriginalStatus }

// ConfidencePercent returns the confidence as a whole percentage.
func (r AuditReport) ConfidencePercent() int {
	return int(math.Round(r.Confidence * 100))
}

// UnmarshalJSON decodes the report and normalizes its confidence.
func (r *AuditReport) UnmarshalJSON(b []byte) error {
	type plain AuditReport
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	p.Confidence = NormalizeConfidence(p.Confidence)
	*r = AuditReport(p)
	return nil
}

// NormalizeConfidence maps a confidence to a fraction of 1. Values above 1
// are read as percentages; the result is clamped to [0,1].
func NormalizeConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	if c > 1 {
		c /= 100
	}
	return math.Max(0, math.Min(1, c))
}
