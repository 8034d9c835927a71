package feeds

import (
	"fmt"

	"github.com/okian/auditdeck/internal/domain/livelist"
	"github.com/okian/auditdeck/internal/domain/model"
	"github.com/okian/auditdeck/internal/domain/schema"
)

// Wire event types, carried in the "type" field of every stream frame.
const (
	TypeInitialData = "initial_data"
	TypeError       = "error"

	TypeFeatureUpdate = "feature_update"
	TypeSourceUpdate  = "source_update"

	TypeAuditReportAdded   = "audit_report_added"
	TypeAuditReportUpdated = "audit_report_updated"
	TypeAuditReportChanged = "audit_report_changed"
	TypeAuditReportDeleted = "audit_report_deleted"
)

// Envelope is the outer shape of a stream frame.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Decoder maps one envelope to a live-list event. ok is false when the frame
// carries nothing to apply, such as an unknown type.
type Decoder[T livelist.Keyed] func(v *schema.Validator, env Envelope) (e livelist.Event[T], ok bool, err error)

type errorPayload struct {
	Message string `json:"message"`
}

type featuresInitial struct {
	Features []model.Feature `json:"features"`
}

type featureUpdate struct {
	FeatureID string        `json:"feature_id"`
	Feature   model.Feature `json:"feature_data"`
}

type sourcesInitial struct {
	Sources []model.Source `json:"sources"`
}

type sourceUpdate struct {
	SourceID string       `json:"source_id"`
	Source   model.Source `json:"source_data"`
}

type auditReportsInitial struct {
	AuditReports []model.AuditReport `json:"audit_reports"`
}

type auditReportChange struct {
	AuditReportID string             `json:"audit_report_id"`
	AuditReport   *model.AuditReport `json:"audit_report_data"`
}

// FeatureEvents decodes the features stream.
func FeatureEvents(v *schema.Validator, env Envelope) (livelist.Event[model.Feature], bool, error) {
	switch env.Type {
	case TypeInitialData:
		p, err := schema.Decode[featuresInitial](v, schema.FeaturesInitial, env.Data)
		if err != nil {
			return livelist.Event[model.Feature]{}, false, err
		}
		return livelist.InitialEvent(p.Features), true, nil
	case TypeFeatureUpdate:
		p, err := schema.Decode[featureUpdate](v, schema.FeatureUpdate, env.Data)
		if err != nil {
			return livelist.Event[model.Feature]{}, false, err
		}
		if err := sameID(p.FeatureID, p.Feature.ID); err != nil {
			return livelist.Event[model.Feature]{}, false, err
		}
		return livelist.UpdateEvent(p.Feature), true, nil
	case TypeError:
		return decodeError[model.Feature](v, env)
	}
	return livelist.Event[model.Feature]{}, false, nil
}

// SourceEvents decodes the sources stream.
func SourceEvents(v *schema.Validator, env Envelope) (livelist.Event[model.Source], bool, error) {
	switch env.Type {
	case TypeInitialData:
		p, err := schema.Decode[sourcesInitial](v, schema.SourcesInitial, env.Data)
		if err != nil {
			return livelist.Event[model.Source]{}, false, err
		}
		return livelist.InitialEvent(p.Sources), true, nil
	case TypeSourceUpdate:
		p, err := schema.Decode[sourceUpdate](v, schema.SourceUpdate, env.Data)
		if err != nil {
			return livelist.Event[model.Source]{}, false, err
		}
		if err := sameID(p.SourceID, p.Source.ID); err != nil {
			return livelist.Event[model.Source]{}, false, err
		}
		return livelist.UpdateEvent(p.Source), true, nil
	case TypeError:
		return decodeError[model.Source](v, env)
	}
	return livelist.Event[model.Source]{}, false, nil
}

// AuditReportEvents decodes the audit report stream. Added, updated and
// changed frames whose data is null are ignored.
func AuditReportEvents(v *schema.Validator, env Envelope) (livelist.Event[model.AuditReport], bool, error) {
	var zero livelist.Event[model.AuditReport]
	switch env.Type {
	case TypeInitialData:
		p, err := schema.Decode[auditReportsInitial](v, schema.AuditReportsInitial, env.Data)
		if err != nil {
			return zero, false, err
		}
		return livelist.InitialEvent(p.AuditReports), true, nil
	case TypeAuditReportAdded, TypeAuditReportUpdated, TypeAuditReportChanged:
		p, err := schema.Decode[auditReportChange](v, schema.AuditReportChange, env.Data)
		if err != nil {
			return zero, false, err
		}
		if p.AuditReport == nil {
			return zero, false, nil
		}
		if err := sameID(p.AuditReportID, p.AuditReport.ID); err != nil {
			return zero, false, err
		}
		if env.Type == TypeAuditReportAdded {
			return livelist.AddEvent(*p.AuditReport), true, nil
		}
		return livelist.UpdateEvent(*p.AuditReport), true, nil
	case TypeAuditReportDeleted:
		p, err := schema.Decode[auditReportChange](v, schema.AuditReportChange, env.Data)
		if err != nil {
			return zero, false, err
		}
		return livelist.DeleteEvent[model.AuditReport](p.AuditReportID), true, nil
	case TypeError:
		return decodeError[model.AuditReport](v, env)
	}
	return zero, false, nil
}

func decodeError[T livelist.Keyed](v *schema.Validator, env Envelope) (livelist.Event[T], bool, error) {
	p, err := schema.Decode[errorPayload](v, schema.StreamError, env.Data)
	if err != nil {
		return livelist.Event[T]{}, false, err
	}
	return livelist.ErrorEvent[T](p.Message), true, nil
}

func sameID(envelopeID, entityID string) error {
	if envelopeID != entityID {
		return fmt.Errorf("%w: %q vs %q", ErrIDMismatch, envelopeID, entityID)
	}
	return nil
}
