// Package memory keeps archived invoices in process memory. It backs the
// default "memory" data backend and the tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"invoicepilot/internal/archive"
	"invoicepilot/internal/core"
)

type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	records []archive.Record
}

var _ archive.Archive = (*Store)(nil)

func New() *Store {
	return &Store{now: time.Now}
}

// Save stores a copy of doc and assigns the next id.
func (s *Store) Save(_ context.Context, doc core.Document, variant core.Variant, accent string) (archive.Record, error) {
	if err := doc.Invoice.ValidateForSubmit(); err != nil {
		return archive.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := archive.Record{
		ID:       int64(len(s.records) + 1),
		Document: cloneDocument(doc),
		Variant:  core.ParseVariant(string(variant)),
		Accent:   core.NormalizeAccent(accent),
		SavedAt:  s.now().UTC(),
	}
	s.records = append(s.records, rec)
	return rec.Clone(), nil
}

func (s *Store) Get(_ context.Context, id int64) (archive.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.indexLocked(id)
	if err != nil {
		return archive.Record{}, err
	}
	return s.records[i].Clone(), nil
}

func (s *Store) ListRecent(_ context.Context, limit int) ([]archive.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]archive.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkPaid(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.indexLocked(id)
	if err != nil {
		return err
	}
	paid := at.UTC()
	s.records[i].PaidAt = &paid
	return nil
}

func (s *Store) indexLocked(id int64) (int, error) {
	if id < 1 || id > int64(len(s.records)) {
		return 0, fmt.Errorf("%w: %d", archive.ErrNotFound, id)
	}
	return int(id - 1), nil
}

// Ledger records appended rows; it stands in for the spreadsheet.
type Ledger struct {
	mu   sync.Mutex
	rows []archive.Record
	fail error
}

var _ archive.LedgerWriter = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{}
}

// FailWith makes subsequent appends return err; nil restores success.
func (l *Ledger) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = err
}

func (l *Ledger) AppendInvoice(_ context.Context, r archive.Record) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return "", l.fail
	}
	l.rows = append(l.rows, r.Clone())
	return fmt.Sprintf("mem:%d", len(l.rows)), nil
}

// Rows returns the appended records in order.
func (l *Ledger) Rows() []archive.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]archive.Record, len(l.rows))
	copy(out, l.rows)
	return out
}

func cloneDocument(d core.Document) core.Document {
	d.Invoice.Items = append([]core.InvoiceItem(nil), d.Invoice.Items...)
	return d
}
