package model

import "strings"

// Feature is a monitored capability derived by the analysis agent. The
// dashboard only ever mirrors it.
type Feature struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Tags        []string      `json:"tags,omitempty"`
	Status      FeatureStatus `json:"status"`
	CreatedAt   Timestamp     `json:"created_at"`
	UpdatedAt   *Timestamp    `json:"updated_at"`
}

// Key returns the feature identity.
func (f Feature) Key() string { return f.ID }

// HasTag reports whether tag is among the feature tags, ignoring case.
func (f Feature) HasTag(tag string) bool { return containsFold(f.Tags, tag) }

func containsFold(tags []string, tag string) bool {
	tag = strings.TrimSpace(tag)
	for _, t := range tags {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}
