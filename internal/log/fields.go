package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorKind     = "error_kind"
	FieldOperation     = "operation"
	FieldOwnerID       = "owner_id"
	FieldItemType      = "item_type"
	FieldRecordID      = "record_id"
	FieldStorageKey    = "storage_key"
	FieldPeriod        = "period"
	FieldConsistency   = "consistency_gap"
	FieldEventType     = "event_type"
	FieldSpreadsheetID = "spreadsheet_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentUpload    = "upload"
	ComponentStorage   = "storage"
	ComponentBlob      = "blob"
	ComponentIdentity  = "identity"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpDelete    = "delete"
	OpList      = "list"
	OpSupersede = "supersede"
	OpPublish   = "publish"
	OpExport    = "export"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// Consistency gaps left behind by a failed two-phase operation.
const (
	GapOrphanedBlob      = "orphaned_blob"
	GapDanglingMetadata  = "dangling_metadata"
	GapSupersedeLeftover = "supersede_leftover"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field, skipping nil errors
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUpload adds the identifying fields of an upload
func (f LogFields) WithUpload(ownerID, itemType, recordID, storageKey string) LogFields {
	f[FieldOwnerID] = ownerID
	f[FieldItemType] = itemType
	if recordID != "" {
		f[FieldRecordID] = recordID
	}
	if storageKey != "" {
		f[FieldStorageKey] = storageKey
	}
	return f
}

// With sets an arbitrary field, skipping empty strings
func (f LogFields) With(key string, value any) LogFields {
	if s, ok := value.(string); ok && s == "" {
		return f
	}
	f[key] = value
	return f
}

// WithConsistencyGap marks a log line as describing store divergence
func (f LogFields) WithConsistencyGap(gap string) LogFields {
	f[FieldConsistency] = gap
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
