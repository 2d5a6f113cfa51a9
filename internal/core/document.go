package core

import (
	"fmt"
	"time"
)

// DefaultDueDays is the payment term of a fresh invoice.
const DefaultDueDays = 30

// FormState is the editable header of an invoice as typed by the user.
// Zero dates mean "not chosen yet".
type FormState struct {
	InvoiceNumber string
	IssueDate     Date
	DueDate       Date
	Client        Client
	Notes         string
}

// Assemble builds an Invoice from form fields and the item list. It never
// fails: unset dates default to now, and totals are recomputed from items.
// The returned invoice owns a copy of items.
func Assemble(form FormState, items []InvoiceItem, rate float64, now func() time.Time) Invoice {
	if now == nil {
		now = time.Now
	}
	issue, due := form.IssueDate, form.DueDate
	if issue.IsZero() || due.IsZero() {
		today := DateOf(now())
		if issue.IsZero() {
			issue = today
		}
		if due.IsZero() {
			due = today
		}
	}
	copied := make([]InvoiceItem, len(items))
	copy(copied, items)
	totals := ComputeTotals(copied, rate)
	return Invoice{
		InvoiceNumber: form.InvoiceNumber,
		IssueDate:     issue,
		DueDate:       due,
		Client:        form.Client,
		Items:         copied,
		Notes:         form.Notes,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
	}
}

// Recompute refreshes the derived totals of doc in place. It is used for
// documents that arrive from outside (files, the archive) where the stored
// totals cannot be trusted.
func (d *Document) Recompute(rate float64) {
	t := ComputeTotals(d.Invoice.Items, rate)
	d.Invoice.Subtotal, d.Invoice.Tax, d.Invoice.Total = t.Subtotal, t.Tax, t.Total
}

// InvoiceNumber formats the default number INV-yyyyMMdd-NNN.
func InvoiceNumber(day time.Time, seq int) string {
	return fmt.Sprintf("INV-%s-%03d", day.Format("20060102"), seq)
}

// DefaultForm is the header of a brand new invoice.
func DefaultForm(today time.Time, seq int) FormState {
	issue := DateOf(today)
	return FormState{
		InvoiceNumber: InvoiceNumber(today, seq),
		IssueDate:     issue,
		DueDate:       Date{Time: issue.AddDate(0, 0, DefaultDueDays)},
		Client: Client{
			Name:    "Acme Corp",
			Email:   "contact@acme.com",
			Address: "123 Innovation Drive\nTech City, KA 560001",
		},
		Notes: DefaultNotes,
	}
}

// DefaultNotes is the closing line of a brand new invoice.
const DefaultNotes = "Thank you for your business. We appreciate your partnership."

// SuggestedNotes replaces the notes when a suggestion is applied.
const SuggestedNotes = "Thank you for your business!"

// SampleItems are the rows a new invoice starts with. ids are assigned by
// the caller.
func SampleItems() []InvoiceItem {
	return []InvoiceItem{
		{Description: "Synergy Platform Development", Quantity: 20, UnitPrice: 6500},
		{Description: "Quantum AI Integration", Quantity: 1, UnitPrice: 95000},
	}
}

// DefaultBusiness is the issuer identity used until a profile is saved.
func DefaultBusiness() BusinessProfile {
	return BusinessProfile{
		Name:    "InvoicePilot Co.",
		Email:   "hello@invoicepilot.co",
		Phone:   "+91 98765 43210",
		Address: "456 Pilot Avenue\nCloud City, Sky 98765",
		Website: "https://invoicepilot.ai",
		TaxID:   "TAX-PILOT-9876",
	}
}
