package log

// Common field names for structured logging.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldMonthKey    = "month_key"
	FieldTemplateID  = "template_id"
	FieldTxID        = "transaction_id"
	FieldDate        = "date"
	FieldAmount      = "amount"
	FieldDirection   = "direction"
	FieldKind        = "schedule_kind"
	FieldOccurrences = "occurrences"
	FieldInserted    = "inserted"
	FieldSkipped     = "skipped"
	FieldExportRef   = "export_ref"
)

// Components defines standard component names.
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentLedger       = "ledger"
	ComponentMaterializer = "materializer"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentExport       = "export"
	ComponentTemplate     = "template"
)

// Operations defines standard operation names.
const (
	OpCreate      = "create"
	OpRead        = "read"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpList        = "list"
	OpMaterialize = "materialize"
	OpForecast    = "forecast"
	OpMerge       = "merge"
	OpSync        = "sync"
	OpCloseMonth  = "close_month"
	OpValidate    = "validate"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)
