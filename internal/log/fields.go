package log

// Attribute keys shared by every component so log queries stay uniform.
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
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldSessionID     = "session_id"
	FieldRevision      = "revision"
	FieldInvoiceID     = "invoice_id"
	FieldInvoiceNumber = "invoice_number"
	FieldItemCount     = "item_count"
	FieldTotal         = "total"
	FieldVariant       = "variant"
)

// Component names.
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentInvoice  = "invoice"
	ComponentEditor   = "editor"
	ComponentRender   = "render"
	ComponentSuggest  = "suggest"
	ComponentProfile  = "profile"
	ComponentWorker   = "worker"
	ComponentCache    = "cache"
	ComponentSecurity = "security"
	ComponentTrace    = "trace"
	ComponentBackend  = "backend"
)

// Operation names.
const (
	OpCreate  = "create"
	OpRead    = "read"
	OpUpdate  = "update"
	OpList    = "list"
	OpRender  = "render"
	OpSuggest = "suggest"
)

// LogFields collects attributes before they are handed to slog.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	if ip != "" {
		f[FieldClientIP] = ip
	}
	return f
}

// WithError records err.Error(); a nil error adds nothing.
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

// WithInvoice describes an invoice by number, size and total. The variant
// is omitted when empty.
func (f LogFields) WithInvoice(number string, items int, total float64, variant string) LogFields {
	f[FieldInvoiceNumber] = number
	f[FieldItemCount] = items
	f[FieldTotal] = total
	if variant != "" {
		f[FieldVariant] = variant
	}
	return f
}

// WithHTTPRequest records method and path, plus query and user agent when
// present.
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice flattens the fields into slog key/value pairs.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
