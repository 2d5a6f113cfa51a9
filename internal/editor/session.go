// Package editor owns the state of one invoice being edited: the header
// fields, the ordered item list and the chosen layout. Every change
// recomputes the document and notifies subscribers.
package editor

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"invoicepilot/internal/core"
	"invoicepilot/internal/suggest"
)

var (
	ErrItemNotFound    = errors.New("item not found")
	ErrStaleSuggestion = errors.New("suggestion is stale: the invoice changed while it was generated")
)

// State of a session.
type State int

const (
	Uninitialized State = iota
	Populated
)

func (s State) String() string {
	if s == Populated {
		return "populated"
	}
	return "uninitialized"
}

// Update is published after every change.
type Update struct {
	Document core.Document
	Variant  core.Variant
	Accent   string
	Revision uint64
}

// Listener receives updates synchronously, outside the session lock.
type Listener func(Update)

// ClientDefaults fill the client name and email when a suggestion is
// applied to a form whose fields are blank.
type ClientDefaults struct {
	Name  string
	Email string
}

// Session is safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	state     State
	form      core.FormState
	items     []core.InvoiceItem
	variant   core.Variant
	accent    string
	rev       uint64
	listeners map[int]Listener
	nextID    int

	now      func() time.Time
	newID    func() string
	seq      func() int
	rate     float64
	business func() core.BusinessProfile
}

type Option func(*Session)

// WithClock injects the clock used for default dates.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDGenerator replaces the uuid item id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) { s.newID = gen }
}

// WithSequence replaces the random suffix of default invoice numbers.
func WithSequence(seq func() int) Option {
	return func(s *Session) { s.seq = seq }
}

func WithTaxRate(rate float64) Option {
	return func(s *Session) { s.rate = rate }
}

// WithBusiness sets the source of the issuer identity. It is read on every
// snapshot so profile edits show up in open sessions.
func WithBusiness(source func() core.BusinessProfile) Option {
	return func(s *Session) { s.business = source }
}

// WithAccent sets the starting accent color.
func WithAccent(accent string) Option {
	return func(s *Session) { s.accent = core.NormalizeAccent(accent) }
}

// New returns an uninitialized session. The first operation loads the
// default invoice.
func New(opts ...Option) *Session {
	s := &Session{
		now:       time.Now,
		newID:     uuid.NewString,
		seq:       func() int { return 100 + rand.IntN(900) },
		rate:      core.DefaultTaxRate,
		business:  core.DefaultBusiness,
		variant:   core.DefaultVariant,
		accent:    core.DefaultAccent,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports whether defaults have been loaded.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LoadDefaults resets the session to a fresh sample invoice.
func (s *Session) LoadDefaults() {
	s.mutate(true, func() error {
		s.loadDefaultsLocked()
		return nil
	})
}

// Load replaces the whole session state, e.g. to reopen an archived invoice.
func (s *Session) Load(inv core.Invoice, variant core.Variant, accent string) {
	s.mutate(true, func() error {
		s.state = Populated
		s.form = core.FormState{
			InvoiceNumber: inv.InvoiceNumber,
			IssueDate:     inv.IssueDate,
			DueDate:       inv.DueDate,
			Client:        inv.Client,
			Notes:         inv.Notes,
		}
		s.items = make([]core.InvoiceItem, len(inv.Items))
		copy(s.items, inv.Items)
		for i := range s.items {
			if s.items[i].ID == "" {
				s.items[i].ID = s.newID()
			}
		}
		s.variant = core.ParseVariant(string(variant))
		s.accent = core.NormalizeAccent(accent)
		return nil
	})
}

// AddItem appends an empty row with quantity 1 and returns it.
func (s *Session) AddItem() core.InvoiceItem {
	var added core.InvoiceItem
	s.mutate(true, func() error {
		added = core.InvoiceItem{ID: s.newID(), Quantity: 1}
		s.items = append(s.items, added)
		return nil
	})
	return added
}

// RemoveItem deletes the row with id. Removing the last row is allowed.
func (s *Session) RemoveItem(id string) error {
	return s.mutate(true, func() error {
		i := s.indexLocked(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		s.items = append(s.items[:i:i], s.items[i+1:]...)
		return nil
	})
}

// UpdateItem edits a row in place, keeping its position.
func (s *Session) UpdateItem(id, description string, quantity, unitPrice float64) error {
	return s.mutate(true, func() error {
		i := s.indexLocked(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		s.items[i].Description = description
		s.items[i].Quantity = quantity
		s.items[i].UnitPrice = unitPrice
		return nil
	})
}

// SetForm replaces the header fields.
func (s *Session) SetForm(form core.FormState) {
	s.mutate(true, func() error {
		s.form = form
		return nil
	})
}

// SetVariant changes the layout. Unknown variants select the default one.
func (s *Session) SetVariant(v core.Variant) {
	s.mutate(false, func() error {
		s.variant = core.ParseVariant(string(v))
		return nil
	})
}

// SetAccent changes the accent color. Invalid colors select the default.
func (s *Session) SetAccent(accent string) {
	s.mutate(false, func() error {
		s.accent = core.NormalizeAccent(accent)
		return nil
	})
}

// ApplySuggestion overwrites number, dates, client address, items and notes
// with a suggestion requested at revision rev. It fails with
// ErrStaleSuggestion if the invoice was edited since, and leaves the state
// untouched on any error. Client name and email keep their current values,
// or take defaults when blank.
func (s *Session) ApplySuggestion(rev uint64, sug suggest.Suggestion, defaults ClientDefaults) error {
	if err := sug.Validate(); err != nil {
		return err
	}
	issue, due, err := sug.Dates()
	if err != nil {
		return err
	}
	return s.mutate(true, func() error {
		if s.rev != rev {
			return ErrStaleSuggestion
		}
		items := make([]core.InvoiceItem, 0, len(sug.Items))
		for _, it := range sug.Items {
			items = append(items, core.InvoiceItem{
				ID:          s.newID(),
				Description: it.Description,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
			})
		}
		form := s.form
		if n := strings.TrimSpace(sug.InvoiceNumber); n != "" {
			form.InvoiceNumber = n
		}
		form.IssueDate, form.DueDate = issue, due
		form.Client.Address = sug.BillingAddress
		if strings.TrimSpace(form.Client.Name) == "" {
			form.Client.Name = defaults.Name
		}
		if strings.TrimSpace(form.Client.Email) == "" {
			form.Client.Email = defaults.Email
		}
		form.Notes = core.SuggestedNotes
		s.form, s.items = form, items
		return nil
	})
}

// Revision increases on every change to the invoice content. Layout
// changes do not count.
func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev
}

// Variant returns the selected layout.
func (s *Session) Variant() core.Variant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.variant
}

// Accent returns the selected accent color.
func (s *Session) Accent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accent
}

// Form returns the header fields.
func (s *Session) Form() core.FormState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked()
	return s.form
}

// Items returns a copy of the item list.
func (s *Session) Items() []core.InvoiceItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked()
	out := make([]core.InvoiceItem, len(s.items))
	copy(out, s.items)
	return out
}

// Snapshot assembles the current document.
func (s *Session) Snapshot() core.Document {
	return s.Current().Document
}

// Current returns the document together with layout and revision.
func (s *Session) Current() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked()
	return s.updateLocked()
}

// Subscribe registers l and returns a function that removes it.
func (s *Session) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// mutate runs fn under the lock, bumps the revision if content changed and
// publishes the new document. No listener is called when fn fails.
func (s *Session) mutate(content bool, fn func() error) error {
	s.mu.Lock()
	s.ensureLocked()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	if content {
		s.rev++
	}
	u := s.updateLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(u)
	}
	return nil
}

func (s *Session) ensureLocked() {
	if s.state == Uninitialized {
		s.loadDefaultsLocked()
	}
}

func (s *Session) loadDefaultsLocked() {
	s.state = Populated
	s.form = core.DefaultForm(s.now(), s.seq())
	s.items = core.SampleItems()
	for i := range s.items {
		s.items[i].ID = s.newID()
	}
}

func (s *Session) updateLocked() Update {
	inv := core.Assemble(s.form, s.items, s.rate, s.now)
	return Update{
		Document: core.Document{Business: s.business(), Invoice: inv},
		Variant:  s.variant,
		Accent:   s.accent,
		Revision: s.rev,
	}
}

func (s *Session) indexLocked(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
