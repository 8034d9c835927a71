package remote

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/internal/domain/schema"
	"github.com/okian/auditdeck/pkg/logger"
)

// Features reads the feature collection. Features are read-only here.
type Features struct{ c *Client }

type featuresEnvelope struct {
	Success  bool            `json:"success"`
	Features []model.Feature `json:"features"`
}

type featureEnvelope struct {
	Success bool          `json:"success"`
	Feature model.Feature `json:"feature"`
}

type countEnvelope struct {
	Count int `json:"count"`
}

// List returns every feature, or an empty list if the call fails.
func (f *Features) List(ctx context.Context) []model.Feature {
	env, err := call[featuresEnvelope](ctx, f.c, request{op: "features.list", method: http.MethodGet, path: "/features"}, schema.FeaturesResponse)
	if err != nil {
		f.c.log.Warn(ctx, "listing features failed", logger.Error(err))
		return []model.Feature{}
	}
	return nonNil(env.Features)
}

// Count returns the number of features, or 0 if the call fails.
func (f *Features) Count(ctx context.Context) int {
	env, err := call[countEnvelope](ctx, f.c, request{op: "features.count", method: http.MethodGet, path: "/features/count"}, schema.Count)
	if err != nil {
		f.c.log.Warn(ctx, "counting features failed", logger.Error(err))
		return 0
	}
	return env.Count
}

// Get fetches one feature. The body may be {feature} or a bare feature.
func (f *Features) Get(ctx context.Context, id string) (model.Feature, error) {
	r := request{op: "features.get", method: http.MethodGet, path: "/features/" + url.PathEscape(id)}
	if id == "" {
		return model.Feature{}, failure(r.op, ErrInvalidArg, "feature id is required")
	}
	start := time.Now()
	value, err := f.c.do(ctx, r)
	var feature model.Feature
	if err == nil {
		feature, err = decodeFeature(f.c.validator, value)
		if err != nil {
			err = failure(r.op, ErrValidation, err)
		}
	}
	record(r.op, start, err)
	if err != nil {
		f.c.log.Warn(ctx, "fetching feature failed", logger.String("id", id), logger.Error(err))
		return model.Feature{}, err
	}
	return feature, nil
}

func decodeFeature(v *schema.Validator, value any) (model.Feature, error) {
	if m, ok := value.(map[string]any); ok {
		if _, wrapped := m["feature"]; wrapped {
			env, err := schema.Decode[featureEnvelope](v, schema.FeatureResponse, value)
			return env.Feature, err
		}
	}
	return schema.Decode[model.Feature](v, schema.Feature, value)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
