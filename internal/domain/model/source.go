package model

// Source is a piece of content the analysis agent reads. SourceURL is opaque
// to the dashboard.
type Source struct {
	ID        string     `json:"id"`
	SourceURL string     `json:"source_url"`
	Tags      []string   `json:"tags"`
	CreatedAt Timestamp  `json:"created_at"`
	UpdatedAt *Timestamp `json:"updated_at"`
}

// Key returns the source identity.
func (s Source) Key() string { return s.ID }

// HasTag reports whether tag is among the source tags, ignoring case.
func (s Source) HasTag(tag string) bool { return containsFold(s.Tags, tag) }

// SourceFields are the user-supplied fields of a new source.
type SourceFields struct {
	SourceURL string   `json:"source_url"`
	Tags      []string `json:"tags,omitempty"`
}
