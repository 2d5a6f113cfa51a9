package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"invoicepilot/internal/core"
)

// ItemUpdate is the edited content of one invoice row.
type ItemUpdate struct {
	Description string
	Quantity    float64
	UnitPrice   float64
}

// ParseFormState reads the invoice header fields. Dates that do not parse
// are left zero, which the document model replaces with today.
func ParseFormState(p *RequestBodyParser) core.FormState {
	issue, _ := core.ParseDate(p.Get("issueDate"))
	due, _ := core.ParseDate(p.Get("dueDate"))
	return core.FormState{
		InvoiceNumber: p.Get("invoiceNumber"),
		IssueDate:     issue,
		DueDate:       due,
		Client: core.Client{
			Name:    p.Get("clientName"),
			Email:   p.Get("clientEmail"),
			Address: normalizeNewlines(p.Get("clientAddress")),
		},
		Notes: normalizeNewlines(p.Get("notes")),
	}
}

// ParseItemUpdate reads one item row. Malformed numbers count as zero.
func ParseItemUpdate(p *RequestBodyParser) ItemUpdate {
	return ItemUpdate{
		Description: p.Get("description"),
		Quantity:    core.CoerceNumber(p.Get("quantity")),
		UnitPrice:   core.CoerceNumber(p.Get("unitPrice")),
	}
}

// TemplateChoice is a layout change. The layout selector and the colour
// controls post separately, so either field may be absent; an absent field
// leaves the current value alone.
type TemplateChoice struct {
	Variant    core.Variant
	Accent     string
	HasVariant bool
	HasAccent  bool
}

// ParseTemplateChoice reads the layout selector and accent colour. Unknown
// values fall back to the defaults.
func ParseTemplateChoice(p *RequestBodyParser) TemplateChoice {
	c := TemplateChoice{HasVariant: p.Has("template"), HasAccent: p.Has("accent")}
	if c.HasVariant {
		c.Variant = core.ParseVariant(p.Get("template"))
	}
	if c.HasAccent {
		c.Accent = core.NormalizeAccent(p.Get("accent"))
	}
	return c
}

// ParseProfile reads the business profile form.
func ParseProfile(p *RequestBodyParser) core.BusinessProfile {
	return core.BusinessProfile{
		Name:    p.Get("name"),
		Email:   p.Get("email"),
		Phone:   p.Get("phone"),
		Address: normalizeNewlines(p.Get("address")),
		Website: p.Get("website"),
		TaxID:   p.Get("taxId"),
	}
}

// ParseInvoiceID reads the {id} path segment.
func ParseInvoiceID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid invoice id %q", r.PathValue("id"))
	}
	return id, nil
}

const maxBodyBytes = 1 << 20

// RequestBodyParser reads an htmx request body, either form-encoded or a
// JSON object, into one set of string fields.
type RequestBodyParser struct {
	body   []byte
	fields url.Values
	err    error
	done   bool
}

// NewRequestBodyParser buffers at most 1 MiB of the request body.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse decodes the buffered body. It is safe to call more than once.
func (p *RequestBodyParser) Parse() error {
	if p.done {
		return p.err
	}
	p.done = true
	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	switch {
	case len(trimmed) == 0:
		p.fields = url.Values{}
	case trimmed[0] == '{':
		p.fields, p.err = jsonFields(trimmed)
	default:
		p.fields, p.err = url.ParseQuery(string(trimmed))
	}
	return p.err
}

// Get returns the trimmed field value with control characters removed.
func (p *RequestBodyParser) Get(key string) string {
	return sanitizeInput(p.fields.Get(key))
}

// Has reports whether the body carried key at all, even empty.
func (p *RequestBodyParser) Has(key string) bool {
	_, ok := p.fields[key]
	return ok
}

// jsonFields flattens a JSON object's scalar members into form values.
func jsonFields(body []byte) (url.Values, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	fields := make(url.Values, len(obj))
	for k, v := range obj {
		switch v := v.(type) {
		case string:
			fields.Set(k, v)
		case float64:
			fields.Set(k, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			fields.Set(k, strconv.FormatBool(v))
		}
	}
	return fields, nil
}

// ParseBodyOrFail parses the body or returns a 400 response to send instead.
func ParseBodyOrFail(r *http.Request) (*RequestBodyParser, *HTMXResponseBuilder) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, BadRequestError("Invalid request format")
	}
	return p, nil
}
