package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"invoicepilot/internal/archive"
	"invoicepilot/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var _ archive.Archive = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Save implements archive.InvoiceWriter. The invoice row and its items are
// written in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, doc core.Document, variant core.Variant, accent string) (archive.Record, error) {
	inv := doc.Invoice
	if err := inv.ValidateForSubmit(); err != nil {
		return archive.Record{}, err
	}
	business, err := json.Marshal(doc.Business)
	if err != nil {
		return archive.Record{}, fmt.Errorf("encode business profile: %w", err)
	}
	variant = core.ParseVariant(string(variant))
	accent = core.NormalizeAccent(accent)
	savedAt := r.now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return archive.Record{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	id, err := q.CreateInvoice(ctx, CreateInvoiceParams{
		InvoiceNumber: inv.InvoiceNumber,
		IssueDate:     inv.IssueDate.String(),
		DueDate:       inv.DueDate.String(),
		ClientName:    inv.Client.Name,
		ClientEmail:   inv.Client.Email,
		ClientAddress: inv.Client.Address,
		Notes:         inv.Notes,
		Subtotal:      inv.Subtotal,
		Tax:           inv.Tax,
		Total:         inv.Total,
		Variant:       string(variant),
		Accent:        accent,
		BusinessJSON:  string(business),
		CreatedAt:     savedAt,
	})
	if err != nil {
		return archive.Record{}, fmt.Errorf("create invoice: %w", err)
	}

	for pos, it := range inv.Items {
		if err := q.CreateInvoiceItem(ctx, CreateInvoiceItemParams{
			InvoiceID:   id,
			Position:    int64(pos),
			ItemID:      it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}); err != nil {
			return archive.Record{}, fmt.Errorf("create invoice item %d: %w", pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return archive.Record{}, fmt.Errorf("commit invoice: %w", err)
	}

	slog.InfoContext(ctx, "Invoice saved to SQLite",
		"id", id,
		"invoice_number", inv.InvoiceNumber,
		"items", len(inv.Items),
		"total", inv.Total)

	doc.Invoice.Items = append([]core.InvoiceItem(nil), inv.Items...)
	return archive.Record{ID: id, Document: doc, Variant: variant, Accent: accent, SavedAt: savedAt}, nil
}

// Get implements archive.InvoiceReader
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (archive.Record, error) {
	row, err := r.queries.GetInvoice(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return archive.Record{}, fmt.Errorf("%w: %d", archive.ErrNotFound, id)
	}
	if err != nil {
		return archive.Record{}, fmt.Errorf("get invoice %d: %w", id, err)
	}
	return r.toRecord(ctx, row)
}

// ListRecent implements archive.InvoiceLister
func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]archive.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.queries.ListRecentInvoices(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent invoices: %w", err)
	}
	out := make([]archive.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := r.toRecord(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// MarkPaid implements archive.PaymentMarker
func (r *SQLiteRepository) MarkPaid(ctx context.Context, id int64, at time.Time) error {
	n, err := r.queries.MarkInvoicePaid(ctx, id, at.UTC())
	if err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", archive.ErrNotFound, id)
	}
	return nil
}

// GetPendingSync returns ids of invoices not yet mirrored to the ledger,
// oldest first. Invoices whose last attempt failed are included.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]int64, error) {
	ids, err := r.queries.GetPendingSyncInvoices(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync invoices: %w", err)
	}
	return ids, nil
}

// MarkSynced marks an invoice as successfully mirrored
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64, ledgerRef string) error {
	if err := r.queries.MarkInvoiceSynced(ctx, id, ledgerRef, r.now().UTC()); err != nil {
		return fmt.Errorf("mark invoice synced: %w", err)
	}

	slog.InfoContext(ctx, "Invoice marked as synced", "id", id, "ledger_ref", ledgerRef)
	return nil
}

// MarkSyncError marks an invoice as having sync errors
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.queries.MarkInvoiceSyncError(ctx, id); err != nil {
		return fmt.Errorf("mark invoice sync error: %w", err)
	}

	slog.WarnContext(ctx, "Invoice marked with sync error", "id", id)
	return nil
}

func (r *SQLiteRepository) toRecord(ctx context.Context, row Invoice) (archive.Record, error) {
	items, err := r.queries.ListInvoiceItems(ctx, row.ID)
	if err != nil {
		return archive.Record{}, fmt.Errorf("list items of invoice %d: %w", row.ID, err)
	}

	var business core.BusinessProfile
	if err := json.Unmarshal([]byte(row.BusinessJSON), &business); err != nil {
		return archive.Record{}, fmt.Errorf("decode business profile of invoice %d: %w", row.ID, err)
	}
	issue, err := core.ParseDate(row.IssueDate)
	if err != nil {
		return archive.Record{}, fmt.Errorf("invoice %d issue date %q: %w", row.ID, row.IssueDate, err)
	}
	due, err := core.ParseDate(row.DueDate)
	if err != nil {
		return archive.Record{}, fmt.Errorf("invoice %d due date %q: %w", row.ID, row.DueDate, err)
	}

	inv := core.Invoice{
		InvoiceNumber: row.InvoiceNumber,
		IssueDate:     issue,
		DueDate:       due,
		Client:        core.Client{Name: row.ClientName, Email: row.ClientEmail, Address: row.ClientAddress},
		Items:         make([]core.InvoiceItem, 0, len(items)),
		Notes:         row.Notes,
		Subtotal:      row.Subtotal,
		Tax:           row.Tax,
		Total:         row.Total,
	}
	for _, it := range items {
		inv.Items = append(inv.Items, core.InvoiceItem{
			ID:          it.ItemID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	rec := archive.Record{
		ID:       row.ID,
		Document: core.Document{Business: business, Invoice: inv},
		Variant:  core.ParseVariant(row.Variant),
		Accent:   core.NormalizeAccent(row.Accent),
		SavedAt:  row.CreatedAt.UTC(),
	}
	if row.PaidAt.Valid {
		t := row.PaidAt.Time.UTC()
		rec.PaidAt = &t
	}
	if row.SyncedAt.Valid {
		t := row.SyncedAt.Time.UTC()
		rec.SyncedAt = &t
	}
	return rec, nil
}
