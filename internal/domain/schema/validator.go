// Package schema gates decoded JSON against the embedded payload schemas
// before it is re-typed into domain entities.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const baseURL = "https://auditdeck.dev/schemas/"

//go:embed schemas/*.json
var schemaFS embed.FS

// Validator holds the compiled schemas. It is safe for concurrent use.
type Validator struct {
	schemas map[Shape]*jsonschema.Schema
}

// New compiles every embedded schema.
func New() (*Validator, error) {
	c := jsonschema.NewCompiler()

	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	for _, e := range entries {
		raw, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", e.Name(), err)
		}
		if err := c.AddResource(baseURL+e.Name(), doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", e.Name(), err)
		}
	}

	v := &Validator{schemas: make(map[Shape]*jsonschema.Schema, len(allShapes))}
	for _, s := range allShapes {
		compiled, err := c.Compile(s.url())
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", s, err)
		}
		v.schemas[s] = compiled
	}
	return v, nil
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
)

// Default returns a process-wide validator. The embedded schemas are fixed
// at build time, so a compile failure is a programming error.
func Default() *Validator {
	defaultOnce.Do(func() {
		v, err := New()
		if err != nil {
			panic(err)
		}
		defaultValidator = v
	})
	return defaultValidator
}

// Validate checks value against shape. value is a decoded JSON value; native
// timestamps inside it are accepted.
func (v *Validator) Validate(shape Shape, value any) error {
	_, err := v.validate(shape, value)
	return err
}

func (v *Validator) validate(shape Shape, value any) (any, error) {
	sch, ok := v.schemas[shape]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownShape, shape)
	}
	normalized, err := normalize(value)
	if err != nil {
		return nil, &ValidationError{Shape: shape, Message: err.Error()}
	}
	if err := sch.Validate(normalized); err != nil {
		return nil, toValidationError(shape, err)
	}
	return normalized, nil
}

// Decode validates value against shape and re-types it as T.
func Decode[T any](v *Validator, shape Shape, value any) (T, error) {
	var out T
	normalized, err := v.validate(shape, value)
	if err != nil {
		return out, err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return out, &ValidationError{Shape: shape, Message: err.Error()}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &ValidationError{Shape: shape, Message: err.Error()}
	}
	return out, nil
}

// DecodeBytes parses raw JSON and decodes it as T.
func DecodeBytes[T any](v *Validator, shape Shape, raw []byte) (T, error) {
	value, err := Parse(raw)
	if err != nil {
		var zero T
		return zero, &ValidationError{Shape: shape, Message: err.Error()}
	}
	return Decode[T](v, shape, value)
}

// Parse decodes raw JSON into an untyped value. Numbers keep full precision.
func Parse(raw []byte) (any, error) {
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return value, nil
}

func toValidationError(shape Shape, err error) *ValidationError {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &ValidationError{Shape: shape, Message: err.Error()}
	}
	leaf := deepest(ve)
	return &ValidationError{
		Shape:   shape,
		Path:    strings.Join(leaf.InstanceLocation, "."),
		Message: lastLine(err.Error()),
	}
}

// deepest follows the first cause chain to the most specific failure.
func deepest(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	best := ve
	for _, c := range ve.Causes {
		if d := deepest(c); len(d.InstanceLocation) > len(best.InstanceLocation) {
			best = d
		}
	}
	return best
}

// lastLine strips the "at '<location>':" prefix from the innermost line of a
// multi-line validation report.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	line := strings.TrimSpace(lines[len(lines)-1])
	line = strings.TrimPrefix(line, "- ")
	if strings.HasPrefix(line, "at '") {
		if i := strings.Index(line, "': "); i >= 0 {
			line = line[i+3:]
		}
	}
	return line
}

// normalize rewrites native timestamps to their wire form and turns typed Go
// values into plain JSON values.
func normalize(value any) (any, error) {
	switch x := value.(type) {
	case nil, string, bool, float64, float32, int, int32, int64, json.Number:
		return x, nil
	case time.Time:
		return x.Format(model.TimestampLayout), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return x.Format(model.TimestampLayout), nil
	case model.Timestamp:
		return x.String(), nil
	case *model.Timestamp:
		if x == nil {
			return nil, nil
		}
		return x.String(), nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, v := range x {
			n, err := normalize(v)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, v := range x {
			n, err := normalize(v)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("not a JSON value: %w", err)
		}
		return Parse(raw)
	}
}
