package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the catalog job ID
	FieldJobID = "job_id"

	// FieldJobKind is catalog-finder or catalog-scanner
	FieldJobKind = "job_kind"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldUnit is the keyword or category a step is paging
	FieldUnit = "unit"

	// FieldPage is the 1-based page within the unit
	FieldPage = "page"

	// FieldSupplierID is the supplier product identifier
	FieldSupplierID = "supplier_id"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldSize is a response size in bytes
	FieldSize = "size"
)
