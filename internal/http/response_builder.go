package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Client-side events raised through HX-Trigger. app.js listens for
// show-notification; the others let pages refresh dependent fragments.
const (
	EventInvoiceSaved   = "invoice:saved"
	EventInvoicePaid    = "invoice:paid"
	EventPreviewRefresh = "preview:refresh"
	EventNotification   = "show-notification"
)

// NotificationType selects the toast style in app.js.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// Toast durations in milliseconds.
const (
	shortToast = 3000
	longToast  = 5000
)

// HTMXResponseBuilder assembles a fragment response: status, htmx control
// headers, HX-Trigger events and an HTML body.
type HTMXResponseBuilder struct {
	status   int
	header   http.Header
	triggers map[string]any
	body     string
}

// NewHTMXResponse starts a 200 response.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		status:   http.StatusOK,
		header:   make(http.Header),
		triggers: make(map[string]any),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

// Trigger raises event on the client with data as its detail. A second call
// for the same event replaces the first.
func (b *HTMXResponseBuilder) Trigger(event string, data any) *HTMXResponseBuilder {
	b.triggers[event] = data
	return b
}

func (b *HTMXResponseBuilder) TriggerInvoiceSaved(id int64, number string) *HTMXResponseBuilder {
	return b.Trigger(EventInvoiceSaved, map[string]any{"id": id, "number": number})
}

func (b *HTMXResponseBuilder) TriggerInvoicePaid(id int64) *HTMXResponseBuilder {
	return b.Trigger(EventInvoicePaid, map[string]int64{"id": id})
}

// TriggerPreviewRefresh carries the draft revision the preview was rendered
// at.
func (b *HTMXResponseBuilder) TriggerPreviewRefresh(revision uint64) *HTMXResponseBuilder {
	return b.Trigger(EventPreviewRefresh, map[string]uint64{"revision": revision})
}

// TriggerNotification shows a toast for durationMs milliseconds.
func (b *HTMXResponseBuilder) TriggerNotification(kind NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger(EventNotification, map[string]any{
		"type":     string(kind),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, shortToast)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, longToast)
}

// TriggerWarningNotification is for failures the user can recover from,
// such as an unavailable suggestion service.
func (b *HTMXResponseBuilder) TriggerWarningNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationWarning, message, longToast)
}

// NoSwap leaves the htmx target untouched. Triggers still fire.
func (b *HTMXResponseBuilder) NoSwap() *HTMXResponseBuilder {
	return b.Header("HX-Reswap", "none")
}

// Redirect makes htmx navigate the whole page to url.
func (b *HTMXResponseBuilder) Redirect(url string) *HTMXResponseBuilder {
	return b.Header("HX-Redirect", url)
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.header.Set(name, value)
	return b
}

func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	b.body = html
	return b
}

// Write sends headers, status and body. Triggers that fail to encode are
// dropped rather than failing the response.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range b.header {
		h[name] = values
	}
	if len(b.triggers) > 0 {
		if encoded, err := json.Marshal(b.triggers); err == nil {
			h.Set("HX-Trigger", string(encoded))
		}
	}
	w.WriteHeader(b.status)
	if b.body != "" {
		_, _ = w.Write([]byte(b.body))
	}
}

// ErrorResponse renders message, escaped, as an error fragment.
func ErrorResponse(status int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(status).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError is swapped by app.js, so validation messages
// reach the page.
func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// TooManyRequestsError also raises a toast, since htmx does not swap 429
// bodies.
func TooManyRequestsError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, message).TriggerErrorNotification(message)
}
