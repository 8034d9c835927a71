package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// TimestampPattern accepts YYYY-MM-DDTHH:MM:SS with up to six fractional
// digits and an optional Z or ±HH:MM zone.
const TimestampPattern = `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d{1,6})?(?:Z|[+-]\d{2}:\d{2})?$`

var timestampPattern = regexp.MustCompile(TimestampPattern)

// TimestampLayout is the encoding layout. Precision stops at microseconds so
// encoded values always match TimestampPattern.
const TimestampLayout = "2006-01-02T15:04:05.999999Z07:00"

const (
	layoutZoned = "2006-01-02T15:04:05Z07:00"
	layoutLocal = "2006-01-02T15:04:05"
)

// Timestamp is a point in time exchanged with the remote API. Strings without
// a zone are read as UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp { return Timestamp{Time: t} }

// ParseTimestamp parses the remote API's ISO-8601 form.
func ParseTimestamp(s string) (Timestamp, error) {
	if !timestampPattern.MatchString(s) {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	layout := layoutLocal
	if hasZone(s) {
		layout = layoutZoned
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: %w", ErrInvalidTimestamp, err)
	}
	return Timestamp{Time: t}, nil
}

func hasZone(s string) bool {
	if s[len(s)-1] == 'Z' {
		return true
	}
	// ±HH:MM suffix; the date part also contains '-' so look at the tail only.
	if len(s) >= 6 {
		c := s[len(s)-6]
		return (c == '+' || c == '-') && s[len(s)-3] == ':'
	}
	return false
}

// MarshalJSON encodes the timestamp with TimestampLayout.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(TimestampLayout))
}

// UnmarshalJSON accepts the ISO-8601 string form.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTimestamp, err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) String() string {
	return t.Time.Format(TimestampLayout)
}
