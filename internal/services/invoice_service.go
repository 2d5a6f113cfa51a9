package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"invoicepilot/internal/archive"
	"invoicepilot/internal/cache"
	"invoicepilot/internal/core"
)

// Publisher announces saved invoices to the ledger worker.
type Publisher interface {
	PublishInvoiceSaved(ctx context.Context, id int64, number string) error
}

const (
	recordCacheSize = 256
	recordCacheTTL  = 10 * time.Minute
)

// InvoiceService orchestrates invoice archiving across storage and AMQP.
// Reads of single invoices are served from an LRU cache.
type InvoiceService struct {
	archive   archive.Archive
	publisher Publisher
	records   *cache.LRUCache[archive.Record]
}

var _ archive.Archive = (*InvoiceService)(nil)

// NewInvoiceService wires an archive with an optional publisher.
func NewInvoiceService(a archive.Archive, publisher Publisher) *InvoiceService {
	return &InvoiceService{
		archive:   a,
		publisher: publisher,
		records:   cache.NewLRUCache[archive.Record](recordCacheSize, recordCacheTTL),
	}
}

// Records exposes the read cache so it can be registered for cleanup.
func (s *InvoiceService) Records() *cache.LRUCache[archive.Record] {
	return s.records
}

// Save archives the document and publishes a sync message. A publish
// failure is logged; the invoice is already saved locally.
func (s *InvoiceService) Save(ctx context.Context, doc core.Document, variant core.Variant, accent string) (archive.Record, error) {
	rec, err := s.archive.Save(ctx, doc, variant, accent)
	if err != nil {
		return archive.Record{}, fmt.Errorf("save invoice: %w", err)
	}
	if err := s.publish(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "Failed to publish invoice saved message",
			"id", rec.ID,
			"number", rec.Document.Invoice.InvoiceNumber,
			"error", err)
	}
	return rec, nil
}

func (s *InvoiceService) publish(ctx context.Context, rec archive.Record) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping sync message", "id", rec.ID)
		return nil
	}
	return s.publisher.PublishInvoiceSaved(ctx, rec.ID, rec.Document.Invoice.InvoiceNumber)
}

// Get serves synced invoices from the cache. Unsynced ones are always read
// through, since the ledger worker updates them from another process.
// Callers get their own copy either way.
func (s *InvoiceService) Get(ctx context.Context, id int64) (archive.Record, error) {
	if rec, ok := s.records.Get(cacheKey(id)); ok {
		return rec.Clone(), nil
	}
	rec, err := s.archive.Get(ctx, id)
	if err != nil {
		return archive.Record{}, err
	}
	if rec.SyncedAt != nil {
		s.records.Set(cacheKey(id), rec.Clone())
	}
	return rec, nil
}

func (s *InvoiceService) ListRecent(ctx context.Context, limit int) ([]archive.Record, error) {
	return s.archive.ListRecent(ctx, limit)
}

// MarkPaid records the payment and drops the cached copy.
func (s *InvoiceService) MarkPaid(ctx context.Context, id int64, at time.Time) error {
	if err := s.archive.MarkPaid(ctx, id, at); err != nil {
		return err
	}
	s.records.Delete(cacheKey(id))
	return nil
}

// Close closes the archive and publisher when they hold resources.
func (s *InvoiceService) Close() error {
	var errs []error

	if c, ok := s.archive.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close invoice service: %w", err)
	}
	return nil
}

func cacheKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
