package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldUserID     = "user_id"
	FieldTxnID      = "transaction_id"
	FieldCategoryID = "category_id"
	FieldGoalID     = "goal_id"
	FieldFilterID   = "filter_id"
	FieldAmount     = "amount"
	FieldFrequency  = "frequency"
	FieldMonthKey   = "month"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentStorage     = "storage"
	ComponentBackend     = "backend"
	ComponentRecurrence  = "recurrence"
	ComponentTransaction = "transaction"
	ComponentCategory    = "category"
	ComponentGoal        = "goal"
	ComponentMemories    = "memories"
	ComponentFilters     = "filters"
	ComponentCache       = "cache"
	ComponentAuth        = "auth"
	ComponentAMQP        = "amqp"
	ComponentNotify      = "notify"
)
