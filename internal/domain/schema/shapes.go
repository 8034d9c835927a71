package schema

// Shape names a declared payload shape. Each shape is one embedded schema
// document.
type Shape string

const (
	Feature     Shape = "feature"
	Source      Shape = "source"
	AuditReport Shape = "audit_report"

	FeaturesResponse     Shape = "features_response"
	SourcesResponse      Shape = "sources_response"
	AuditReportsResponse Shape = "audit_reports_response"
	FeatureResponse      Shape = "feature_response"

	Count        Shape = "count"
	CreateResult Shape = "create_result"
	ActionResult Shape = "action_result"
	UploadResult Shape = "upload_result"

	StreamFrame         Shape = "stream_frame"
	StreamError         Shape = "stream_error"
	FeaturesInitial     Shape = "features_initial"
	SourcesInitial      Shape = "sources_initial"
	AuditReportsInitial Shape = "audit_reports_initial"
	FeatureUpdate       Shape = "feature_update"
	SourceUpdate        Shape = "source_update"
	AuditReportChange   Shape = "audit_report_change"
)

var allShapes = []Shape{
	Feature, Source, AuditReport,
	FeaturesResponse, SourcesResponse, AuditReportsResponse, FeatureResponse,
	Count, CreateResult, ActionResult, UploadResult,
	StreamFrame, StreamError,
	FeaturesInitial, SourcesInitial, AuditReportsInitial,
	FeatureUpdate, SourceUpdate, AuditReportChange,
}

func (s Shape) url() string { return baseURL + string(s) + ".json" }
