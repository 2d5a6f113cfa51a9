package core

import (
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the wire and form format for calendar dates.
const DateLayout = "2006-01-02"

// MaxItemDescription caps an item description, in characters.
const MaxItemDescription = 200

type (
	Date struct {
		time.Time
	}

	InvoiceItem struct {
		ID          string  `json:"id"`
		Description string  `json:"description"`
		Quantity    float64 `json:"quantity"`
		UnitPrice   float64 `json:"unitPrice"`
	}

	Client struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Address string `json:"address"`
	}

	Invoice struct {
		InvoiceNumber string        `json:"invoiceNumber"`
		IssueDate     Date          `json:"issueDate"`
		DueDate       Date          `json:"dueDate"`
		Client        Client        `json:"client"`
		Items         []InvoiceItem `json:"items"`
		Notes         string        `json:"notes,omitempty"`
		Subtotal      float64       `json:"subtotal"`
		Tax           float64       `json:"tax"`
		Total         float64       `json:"total"`
	}

	// BusinessProfile is the issuer identity printed on every invoice.
	BusinessProfile struct {
		Name    string `json:"name" yaml:"name"`
		Email   string `json:"email" yaml:"email"`
		Phone   string `json:"phone" yaml:"phone"`
		Address string `json:"address" yaml:"address"`
		Website string `json:"website" yaml:"website"`
		TaxID   string `json:"taxId" yaml:"tax_id"`
	}

	// Document is the renderable unit: issuer plus invoice.
	Document struct {
		Business BusinessProfile `json:"business"`
		Invoice  Invoice         `json:"invoice"`
	}
)

var (
	ErrInvalidNumber          = errors.New("invalid number")
	ErrInvalidDate            = errors.New("invalid date")
	ErrEmptyInvoiceNumber     = errors.New("empty invoice number")
	ErrEmptyClientName        = errors.New("empty client name")
	ErrInvalidClientEmail     = errors.New("invalid client email")
	ErrEmptyClientAddress     = errors.New("empty client address")
	ErrNoItems                = errors.New("invoice has no items")
	ErrEmptyItemDescription   = errors.New("empty item description")
	ErrItemDescriptionTooLong = errors.New("item description too long")
	ErrEmptyBusinessName      = errors.New("empty business name")
	ErrInvalidBusinessEmail   = errors.New("invalid business email")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String returns the YYYY-MM-DD form, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON accepts YYYY-MM-DD, RFC 3339 timestamps and "".
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// LineTotal is quantity × unit price; it is derived, never stored.
func (i InvoiceItem) LineTotal() float64 {
	return nonNegative(i.Quantity) * nonNegative(i.UnitPrice)
}

// DueBeforeIssue reports a due date earlier than the issue date. Such
// invoices are still rendered as entered.
func (inv Invoice) DueBeforeIssue() bool {
	if inv.IssueDate.IsZero() || inv.DueDate.IsZero() {
		return false
	}
	return inv.DueDate.Before(inv.IssueDate.Time)
}

// Totals returns the derived money fields.
func (inv Invoice) Totals() Totals {
	return Totals{Subtotal: inv.Subtotal, Tax: inv.Tax, Total: inv.Total}
}

// ValidateForSubmit checks that an invoice is complete enough to be saved.
// The live preview never calls it.
func (inv Invoice) ValidateForSubmit() error {
	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		return ErrEmptyInvoiceNumber
	}
	if strings.TrimSpace(inv.Client.Name) == "" {
		return ErrEmptyClientName
	}
	if !validEmail(inv.Client.Email) {
		return ErrInvalidClientEmail
	}
	if strings.TrimSpace(inv.Client.Address) == "" {
		return ErrEmptyClientAddress
	}
	if len(inv.Items) == 0 {
		return ErrNoItems
	}
	for _, it := range inv.Items {
		if strings.TrimSpace(it.Description) == "" {
			return ErrEmptyItemDescription
		}
		if utf8.RuneCountInString(it.Description) > MaxItemDescription {
			return ErrItemDescriptionTooLong
		}
	}
	return nil
}

func (p BusinessProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyBusinessName
	}
	if !validEmail(p.Email) {
		return ErrInvalidBusinessEmail
	}
	return nil
}

func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
