// Package archive defines the ports for storing submitted invoices and
// mirroring them to an external ledger.
package archive

import (
	"context"
	"errors"
	"time"

	"invoicepilot/internal/core"
)

var ErrNotFound = errors.New("invoice not found")

// Status of an archived invoice as shown on the dashboard.
type Status string

const (
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
	StatusOverdue Status = "Overdue"
)

// Record is a saved invoice together with the layout it was saved with.
type Record struct {
	ID       int64
	Document core.Document
	Variant  core.Variant
	Accent   string
	SavedAt  time.Time
	PaidAt   *time.Time
	SyncedAt *time.Time
}

// Status derives the payment status relative to today.
func (r Record) Status(today time.Time) Status {
	if r.PaidAt != nil {
		return StatusPaid
	}
	if due := r.Document.Invoice.DueDate; !due.IsZero() && due.Before(core.DateOf(today).Time) {
		return StatusOverdue
	}
	return StatusPending
}

// Clone returns a deep copy: the item slice and the timestamps are not
// shared with r.
func (r Record) Clone() Record {
	r.Document.Invoice.Items = append([]core.InvoiceItem(nil), r.Document.Invoice.Items...)
	if r.PaidAt != nil {
		t := *r.PaidAt
		r.PaidAt = &t
	}
	if r.SyncedAt != nil {
		t := *r.SyncedAt
		r.SyncedAt = &t
	}
	return r
}

// Ports for outbound adapters.
type (
	InvoiceWriter interface {
		Save(ctx context.Context, doc core.Document, variant core.Variant, accent string) (Record, error)
	}

	InvoiceReader interface {
		Get(ctx context.Context, id int64) (Record, error)
	}

	// InvoiceLister returns the most recently saved invoices first.
	InvoiceLister interface {
		ListRecent(ctx context.Context, limit int) ([]Record, error)
	}

	PaymentMarker interface {
		MarkPaid(ctx context.Context, id int64, at time.Time) error
	}

	// Archive is the full storage surface used by the web layer.
	Archive interface {
		InvoiceWriter
		InvoiceReader
		InvoiceLister
		PaymentMarker
	}

	// LedgerWriter appends one row per invoice to an external ledger.
	LedgerWriter interface {
		AppendInvoice(ctx context.Context, r Record) (rowRef string, err error)
	}
)
