package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"invoicepilot/internal/amqp"
	"invoicepilot/internal/archive"
	"invoicepilot/internal/archive/memory"
	"invoicepilot/internal/core"
)

type fakeStore struct {
	mu       sync.Mutex
	records  map[int64]archive.Record
	errored  map[int64]bool
	refs     map[int64]string
	pendErr  error
	markErrs int
}

func newFakeStore(ids ...int64) *fakeStore {
	s := &fakeStore{records: map[int64]archive.Record{}, errored: map[int64]bool{}, refs: map[int64]string{}}
	for _, id := range ids {
		inv := core.Invoice{InvoiceNumber: fmt.Sprintf("INV-%d", id)}
		s.records[id] = archive.Record{ID: id, Document: core.Document{Invoice: inv}, Variant: core.Modern}
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id int64) (archive.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return archive.Record{}, archive.ErrNotFound
	}
	return r, nil
}

func (s *fakeStore) GetPendingSync(_ context.Context, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendErr != nil {
		return nil, s.pendErr
	}
	var ids []int64
	for id, r := range s.records {
		if r.SyncedAt == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *fakeStore) MarkSynced(_ context.Context, id int64, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records[id]
	now := time.Now()
	r.SyncedAt = &now
	s.records[id] = r
	s.refs[id] = ref
	delete(s.errored, id)
	return nil
}

func (s *fakeStore) MarkSyncError(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errored[id] = true
	s.markErrs++
	return nil
}

func TestSyncWorker_HandleInvoiceSaved(t *testing.T) {
	store := newFakeStore(1)
	ledger := memory.NewLedger()
	w := NewSyncWorker(store, ledger, 10)

	if err := w.HandleInvoiceSaved(context.Background(), amqp.NewInvoiceSavedMessage(1, "INV-1")); err != nil {
		t.Fatalf("HandleInvoiceSaved: %v", err)
	}
	rows := ledger.Rows()
	if len(rows) != 1 || rows[0].Document.Invoice.InvoiceNumber != "INV-1" {
		t.Fatalf("unexpected ledger rows %+v", rows)
	}
	if store.refs[1] != "mem:1" {
		t.Errorf("ledger ref = %q, want mem:1", store.refs[1])
	}

	// Redelivery of an already synced invoice writes nothing.
	if err := w.HandleInvoiceSaved(context.Background(), amqp.NewInvoiceSavedMessage(1, "INV-1")); err != nil {
		t.Fatal(err)
	}
	if len(ledger.Rows()) != 1 {
		t.Error("synced invoice appended twice")
	}
}

func TestSyncWorker_HandleInvoiceSavedMissingInvoice(t *testing.T) {
	w := NewSyncWorker(newFakeStore(), memory.NewLedger(), 10)
	if err := w.HandleInvoiceSaved(context.Background(), amqp.NewInvoiceSavedMessage(99, "INV-99")); err != nil {
		t.Errorf("missing invoice should be acknowledged, got %v", err)
	}
}

func TestSyncWorker_LedgerFailureMarksError(t *testing.T) {
	store := newFakeStore(1)
	ledger := memory.NewLedger()
	ledger.FailWith(errors.New("quota exceeded"))
	w := NewSyncWorker(store, ledger, 10)

	if err := w.HandleInvoiceSaved(context.Background(), amqp.NewInvoiceSavedMessage(1, "INV-1")); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	if !store.errored[1] {
		t.Error("invoice should be marked with a sync error")
	}

	ledger.FailWith(nil)
	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.errored[1] || len(ledger.Rows()) != 1 {
		t.Error("pending pass should retry the failed invoice")
	}
}

func TestSyncWorker_ProcessPendingRespectsBatchSize(t *testing.T) {
	store := newFakeStore(1, 2, 3)
	ledger := memory.NewLedger()
	w := NewSyncWorker(store, ledger, 2)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ledger.Rows()) != 2 {
		t.Fatalf("expected 2 rows after one batch, got %d", len(ledger.Rows()))
	}
	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ledger.Rows()) != 3 {
		t.Fatalf("expected 3 rows after two batches, got %d", len(ledger.Rows()))
	}
}

func TestSyncWorker_StartupSyncCheck(t *testing.T) {
	store := newFakeStore(1, 2, 3)
	ledger := memory.NewLedger()
	w := NewSyncWorker(store, ledger, 1)

	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ledger.Rows()) != 3 {
		t.Errorf("startup check should use a larger batch, got %d rows", len(ledger.Rows()))
	}

	store.pendErr = errors.New("db locked")
	if err := w.StartupSyncCheck(context.Background()); err == nil {
		t.Error("expected error when pending lookup fails")
	}
}
