package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"invoicepilot/internal/amqp"
	"invoicepilot/internal/archive"
)

// SyncStore is the storage surface the worker needs; the SQLite repository
// implements it.
type SyncStore interface {
	archive.InvoiceReader
	GetPendingSync(ctx context.Context, limit int) ([]int64, error)
	MarkSynced(ctx context.Context, id int64, ledgerRef string) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncWorker copies archived invoices to the ledger.
type SyncWorker struct {
	store     SyncStore
	ledger    archive.LedgerWriter
	batchSize int
}

func NewSyncWorker(store SyncStore, ledger archive.LedgerWriter, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		ledger:    ledger,
		batchSize: batchSize,
	}
}

// HandleInvoiceSaved processes one invoice.saved message. A missing invoice
// is acknowledged rather than retried forever.
func (w *SyncWorker) HandleInvoiceSaved(ctx context.Context, msg *amqp.InvoiceSavedMessage) error {
	slog.InfoContext(ctx, "Processing invoice saved message",
		"id", msg.ID,
		"number", msg.Number)

	err := w.syncInvoice(ctx, msg.ID)
	if errors.Is(err, archive.ErrNotFound) {
		slog.WarnContext(ctx, "Invoice from message not found, dropping", "id", msg.ID)
		return nil
	}
	return err
}

// ProcessPending syncs invoices that were never synced or failed before.
// It backs up lost AMQP messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	_, _, err := w.processPending(ctx, w.batchSize)
	return err
}

// StartupSyncCheck runs a larger pending pass when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (synced, failed int, err error) {
	ids, err := w.store.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending invoices: %w", err)
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending invoices", "count", len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return synced, failed, err
		}
		if err := w.syncInvoice(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to sync invoice", "id", id, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *SyncWorker) syncInvoice(ctx context.Context, id int64) error {
	rec, err := w.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get invoice %d: %w", id, err)
	}
	if rec.SyncedAt != nil {
		slog.DebugContext(ctx, "Invoice already synced", "id", id)
		return nil
	}

	ref, err := w.ledger.AppendInvoice(ctx, rec)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	// The row exists now; a failed mark only causes a deduplicated retry.
	if err := w.store.MarkSynced(ctx, id, ref); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Synced invoice to ledger",
		"id", id,
		"number", rec.Document.Invoice.InvoiceNumber,
		"ledger_ref", ref)
	return nil
}
