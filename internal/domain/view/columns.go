package view

import (
	"fmt"
	"slices"
	"sync"
)

// Column is one table column.
type Column struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Hideable bool   `json:"hideable"`
}

// Column sets of the three tables.
var (
	FeatureColumns = []Column{
		{ID: "id", Title: "ID", Hideable: true},
		{ID: "name", Title: "Name"},
		{ID: "description", Title: "Description", Hideable: true},
		{ID: "tags", Title: "Tags", Hideable: true},
		{ID: "created_at", Title: "Created", Hideable: true},
		{ID: "updated_at", Title: "Updated", Hideable: true},
		{ID: "status", Title: "Status", Hideable: true},
	}
	SourceColumns = []Column{
		{ID: "source_url", Title: "Source"},
		{ID: "tags", Title: "Tags", Hideable: true},
		{ID: "created_at", Title: "Created", Hideable: true},
		{ID: "updated_at", Title: "Updated", Hideable: true},
		{ID: "audit_reports", Title: "Audit reports", Hideable: true},
	}
	AuditReportColumns = []Column{
		{ID: "feature_id", Title: "Feature"},
		{ID: "original_status", Title: "From", Hideable: true},
		{ID: "status_change_to", Title: "To", Hideable: true},
		{ID: "confidence", Title: "Confidence", Hideable: true},
		{ID: "reason", Title: "Reason", Hideable: true},
		{ID: "status", Title: "Status", Hideable: true},
		{ID: "created_at", Title: "Created", Hideable: true},
	}
)

// Columns tracks which columns of one table are visible. All columns start
// visible. It is safe for concurrent use.
type Columns struct {
	mu     sync.RWMutex
	all    []Column
	hidden map[string]bool
}

// NewColumns creates a visibility set over all.
func NewColumns(all []Column) *Columns {
	return &Columns{all: slices.Clone(all), hidden: make(map[string]bool)}
}

// Toggle flips the visibility of id and returns the new visibility.
func (c *Columns) Toggle(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, err := c.lookup(id)
	if err != nil {
		return false, err
	}
	if !col.Hideable {
		return true, fmt.Errorf("%w: %s", ErrNotHideable, id)
	}
	c.hidden[id] = !c.hidden[id]
	return !c.hidden[id], nil
}

// IsVisible reports whether id is shown. Unknown columns are not.
func (c *Columns) IsVisible(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, err := c.lookup(id); err != nil {
		return false
	}
	return !c.hidden[id]
}

// Visible returns the shown columns in table order.
func (c *Columns) Visible() []Column {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Column, 0, len(c.all))
	for _, col := range c.all {
		if !c.hidden[col.ID] {
			out = append(out, col)
		}
	}
	return out
}

func (c *Columns) lookup(id string) (Column, error) {
	i := slices.IndexFunc(c.all, func(col Column) bool { return col.ID == id })
	if i < 0 {
		return Column{}, fmt.Errorf("%w: %s", ErrUnknownColumn, id)
	}
	return c.all[i], nil
}
