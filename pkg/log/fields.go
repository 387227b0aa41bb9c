package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Session (matches internal/session cookie handling)
	FieldSessionID = "session_id"

	// Service
	FieldService = "service"

	// Upstream calls
	FieldUpstream     = "upstream"
	FieldUpstreamHost = "upstream_host"

	// Domain
	FieldStore    = "store"
	FieldCacheKey = "cache_key"
	FieldTarget   = "target"
)
