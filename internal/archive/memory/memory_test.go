package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"invoicepilot/internal/archive"
	"invoicepilot/internal/core"
)

func validDoc(number string) core.Document {
	form := core.FormState{
		InvoiceNumber: number,
		IssueDate:     core.NewDate(2025, 1, 1),
		DueDate:       core.NewDate(2025, 1, 31),
		Client:        core.Client{Name: "Acme", Email: "a@acme.com", Address: "1 Road"},
	}
	items := []core.InvoiceItem{{ID: "1", Description: "Work", Quantity: 2, UnitPrice: 50}}
	return core.Document{Business: core.DefaultBusiness(), Invoice: core.Assemble(form, items, core.DefaultTaxRate, nil)}
}

func TestStore_SaveGetList(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.Save(ctx, validDoc("INV-1"), core.Classic, "#3B82F6")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first.ID != 1 || first.Variant != core.Classic || first.Accent != "#3b82f6" {
		t.Fatalf("unexpected record %+v", first)
	}
	if _, err := s.Save(ctx, validDoc("INV-2"), "bogus", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, 1)
	if err != nil || got.Document.Invoice.InvoiceNumber != "INV-1" {
		t.Fatalf("Get: %+v %v", got, err)
	}

	list, err := s.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(list) != 2 || list[0].Document.Invoice.InvoiceNumber != "INV-2" || list[1].Variant != core.Classic {
		t.Fatalf("unexpected order %+v", list)
	}
	if list[0].Variant != core.Modern {
		t.Fatalf("unknown variant not normalised")
	}
	if limited, _ := s.ListRecent(ctx, 1); len(limited) != 1 {
		t.Fatalf("limit ignored")
	}
}

func TestStore_SaveRejectsIncompleteInvoice(t *testing.T) {
	s := New()
	doc := validDoc("INV-1")
	doc.Invoice.Items = nil
	if _, err := s.Save(context.Background(), doc, core.Modern, ""); !errors.Is(err, core.ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
}

func TestStore_RecordsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	doc := validDoc("INV-1")
	if _, err := s.Save(ctx, doc, core.Modern, ""); err != nil {
		t.Fatal(err)
	}
	doc.Invoice.Items[0].Description = "changed"
	got, _ := s.Get(ctx, 1)
	got.Document.Invoice.Items[0].Quantity = 99
	again, _ := s.Get(ctx, 1)
	if again.Document.Invoice.Items[0].Description != "Work" || again.Document.Invoice.Items[0].Quantity != 2 {
		t.Fatalf("stored record shares memory with callers")
	}
}

func TestStore_MarkPaidAndStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.Save(ctx, validDoc("INV-1"), core.Modern, ""); err != nil {
		t.Fatal(err)
	}
	rec, _ := s.Get(ctx, 1)
	if got := rec.Status(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)); got != archive.StatusPending {
		t.Fatalf("expected pending, got %s", got)
	}
	if got := rec.Status(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)); got != archive.StatusOverdue {
		t.Fatalf("expected overdue, got %s", got)
	}

	if err := s.MarkPaid(ctx, 1, time.Now()); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	rec, _ = s.Get(ctx, 1)
	if rec.Status(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) != archive.StatusPaid {
		t.Fatalf("expected paid")
	}
	if err := s.MarkPaid(ctx, 42, time.Now()); !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLedger(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	ref, err := l.AppendInvoice(ctx, archive.Record{ID: 7})
	if err != nil || ref != "mem:1" {
		t.Fatalf("AppendInvoice: %q %v", ref, err)
	}
	boom := errors.New("quota exceeded")
	l.FailWith(boom)
	if _, err := l.AppendInvoice(ctx, archive.Record{ID: 8}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if rows := l.Rows(); len(rows) != 1 || rows[0].ID != 7 {
		t.Fatalf("unexpected rows %+v", rows)
	}
}
