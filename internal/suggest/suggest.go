// Package suggest talks to the hosted generative-text service that turns a
// free-text transaction description into invoice fields.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"invoicepilot/internal/core"
)

var (
	ErrDisabled          = errors.New("suggestion service not configured")
	ErrEmptyDescription  = errors.New("empty transaction description")
	ErrNoSuggestedItems  = errors.New("suggestion has no items")
	ErrInvalidSuggestion = errors.New("invalid suggestion")
)

// Item is one suggested line.
type Item struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

// Suggestion is the payload returned for a transaction description. Dates
// are YYYY-MM-DD strings. Client name and email are never included.
type Suggestion struct {
	InvoiceNumber   string  `json:"invoiceNumber"`
	IssueDate       string  `json:"issueDate"`
	DueDate         string  `json:"dueDate"`
	BillingAddress  string  `json:"billingAddress"`
	ShippingAddress string  `json:"shippingAddress,omitempty"`
	Items           []Item  `json:"items"`
	TotalAmount     float64 `json:"totalAmount"`
}

// TemplateSuggestion is the answer of the template selection flow.
type TemplateSuggestion struct {
	TemplateSuggestion string `json:"templateSuggestion"`
	Reasoning          string `json:"reasoning"`
}

// DetailsRequest asks for invoice fields. BusinessProfile is the issuer as
// a JSON string.
type DetailsRequest struct {
	TransactionDescription string `json:"transactionDescription"`
	BusinessProfile        string `json:"businessProfile,omitempty"`
}

// TemplateRequest asks which layout suits a business.
type TemplateRequest struct {
	BusinessType   string `json:"businessType"`
	InvoiceDetails string `json:"invoiceDetails"`
}

// Suggester is implemented by the HTTP client and by test fakes.
type Suggester interface {
	SuggestDetails(ctx context.Context, req DetailsRequest) (Suggestion, error)
	SuggestTemplate(ctx context.Context, req TemplateRequest) (TemplateSuggestion, error)
}

// Validate checks that the suggestion can replace the form in one piece.
func (s Suggestion) Validate() error {
	if _, _, err := s.Dates(); err != nil {
		return err
	}
	if len(s.Items) == 0 {
		return ErrNoSuggestedItems
	}
	for i, it := range s.Items {
		if it.Quantity < 0 || it.UnitPrice < 0 {
			return fmt.Errorf("%w: item %d has a negative amount", ErrInvalidSuggestion, i+1)
		}
	}
	return nil
}

// Dates parses the issue and due dates.
func (s Suggestion) Dates() (issue, due core.Date, err error) {
	issue, err = core.ParseDate(s.IssueDate)
	if err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: issue date %q", ErrInvalidSuggestion, s.IssueDate)
	}
	due, err = core.ParseDate(s.DueDate)
	if err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: due date %q", ErrInvalidSuggestion, s.DueDate)
	}
	return issue, due, nil
}

// Variant maps the free-text template answer onto a layout by the first
// layout name it mentions, e.g. "The Creative template suits an agency"
// -> Creative. Unrecognised answers yield the default layout.
func (t TemplateSuggestion) Variant() core.Variant {
	text := strings.ToLower(t.TemplateSuggestion)
	best, at := core.DefaultVariant, -1
	for _, v := range core.Variants() {
		if i := strings.Index(text, string(v)); i >= 0 && (at < 0 || i < at) {
			best, at = v, i
		}
	}
	return best
}

// Describe summarises an invoice for the template selection flow.
func Describe(inv core.Invoice) string {
	var b strings.Builder
	for i, it := range inv.Items {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s x%s at %s", it.Description, core.FormatQuantity(it.Quantity), core.FormatAmount(it.UnitPrice))
	}
	fmt.Fprintf(&b, ". Total %s.", core.FormatAmount(inv.Total))
	return b.String()
}
