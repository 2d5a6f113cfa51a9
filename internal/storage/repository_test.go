package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"invoicepilot/internal/archive"
	"invoicepilot/internal/core"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "invoices.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func sampleDocument(number string) core.Document {
	form := core.FormState{
		InvoiceNumber: number,
		IssueDate:     core.NewDate(2025, 1, 2),
		DueDate:       core.NewDate(2025, 2, 1),
		Client:        core.Client{Name: "Acme Corp", Email: "contact@acme.com", Address: "123 Innovation Drive\nTech City"},
		Notes:         "Thanks",
	}
	items := []core.InvoiceItem{
		{ID: "a", Description: "Synergy Platform Development", Quantity: 20, UnitPrice: 6500},
		{ID: "b", Description: "Quantum AI Integration", Quantity: 1, UnitPrice: 95000},
	}
	return core.Document{Business: core.DefaultBusiness(), Invoice: core.Assemble(form, items, core.DefaultTaxRate, nil)}
}

func TestSQLiteRepository_SaveAndGet(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.Save(ctx, sampleDocument("INV-20250102-123"), core.Creative, "#8B5CF6")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == 0 || saved.Variant != core.Creative || saved.Accent != "#8b5cf6" {
		t.Fatalf("unexpected saved record %+v", saved)
	}

	got, err := repo.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	inv := got.Document.Invoice
	if inv.InvoiceNumber != "INV-20250102-123" || inv.IssueDate.String() != "2025-01-02" || inv.DueDate.String() != "2025-02-01" {
		t.Fatalf("header mismatch %+v", inv)
	}
	if inv.Client.Address != "123 Innovation Drive\nTech City" || inv.Notes != "Thanks" {
		t.Fatalf("client/notes mismatch %+v", inv)
	}
	if len(inv.Items) != 2 || inv.Items[0].ID != "a" || inv.Items[1].Description != "Quantum AI Integration" {
		t.Fatalf("items mismatch %+v", inv.Items)
	}
	if inv.Subtotal != 225000 || inv.Tax != 40500 || inv.Total != 265500 {
		t.Fatalf("totals mismatch %+v", inv.Totals())
	}
	if got.Document.Business != core.DefaultBusiness() {
		t.Fatalf("business mismatch %+v", got.Document.Business)
	}
	if got.SavedAt.IsZero() || got.PaidAt != nil || got.SyncedAt != nil {
		t.Fatalf("unexpected timestamps %+v", got)
	}
}

func TestSQLiteRepository_GetMissing(t *testing.T) {
	repo, _ := newTestRepo(t)
	if _, err := repo.Get(context.Background(), 404); !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteRepository_SaveRejectsIncomplete(t *testing.T) {
	repo, _ := newTestRepo(t)
	doc := sampleDocument("INV-1")
	doc.Invoice.Client.Email = "nope"
	if _, err := repo.Save(context.Background(), doc, core.Modern, ""); !errors.Is(err, core.ErrInvalidClientEmail) {
		t.Fatalf("expected ErrInvalidClientEmail, got %v", err)
	}
}

func TestSQLiteRepository_ListRecent(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, n := range []string{"INV-1", "INV-2", "INV-3"} {
		at := base.Add(time.Duration(i) * time.Minute)
		repo.now = func() time.Time { return at }
		if _, err := repo.Save(ctx, sampleDocument(n), core.Modern, ""); err != nil {
			t.Fatalf("Save %s: %v", n, err)
		}
	}

	list, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(list) != 2 || list[0].Document.Invoice.InvoiceNumber != "INV-3" || list[1].Document.Invoice.InvoiceNumber != "INV-2" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if len(list[0].Document.Invoice.Items) != 2 {
		t.Fatalf("items not loaded for listed invoices")
	}
}

func TestSQLiteRepository_MarkPaid(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	saved, err := repo.Save(ctx, sampleDocument("INV-1"), core.Modern, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkPaid(ctx, saved.ID, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	got, _ := repo.Get(ctx, saved.ID)
	if got.PaidAt == nil || got.Status(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)) != archive.StatusPaid {
		t.Fatalf("invoice not paid: %+v", got)
	}
	if err := repo.MarkPaid(ctx, 999, time.Now()); !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteRepository_SyncLifecycle(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	var ids []int64
	for _, n := range []string{"INV-1", "INV-2"} {
		rec, err := repo.Save(ctx, sampleDocument(n), core.Modern, "")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.ID)
	}

	pending, err := repo.GetPendingSync(ctx, 10)
	if err != nil || len(pending) != 2 || pending[0] != ids[0] {
		t.Fatalf("GetPendingSync: %v %v", pending, err)
	}

	if err := repo.MarkSynced(ctx, ids[0], "Invoices!A2:I2"); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	if err := repo.MarkSyncError(ctx, ids[1]); err != nil {
		t.Fatalf("MarkSyncError: %v", err)
	}

	pending, _ = repo.GetPendingSync(ctx, 10)
	if len(pending) != 1 || pending[0] != ids[1] {
		t.Fatalf("expected only the failed invoice to be pending, got %v", pending)
	}
	got, _ := repo.Get(ctx, ids[0])
	if got.SyncedAt == nil {
		t.Fatalf("synced_at not set")
	}
}

func TestSchemaVersion(t *testing.T) {
	_, path := newTestRepo(t)
	version, dirty, err := SchemaVersion(path)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 2 || dirty {
		t.Fatalf("expected clean version 2, got %d dirty=%v", version, dirty)
	}
}
