package http

import (
	"html/template"
	"strconv"
	"strings"

	"invoicepilot/internal/archive"
	"invoicepilot/internal/core"
	"invoicepilot/internal/editor"
	"invoicepilot/internal/render"
)

// pageData is embedded by every full page view.
type pageData struct {
	Title  string
	Active string
}

type errorView struct {
	pageData
	Status  int
	Message string
}

type variantOption struct {
	Value    string
	Label    string
	Selected bool
}

type itemRow struct {
	ID          string
	Description string
	Quantity    string
	UnitPrice   string
	Amount      string
	OOB         bool
}

type previewView struct {
	HTML     template.HTML
	Warnings []string
	Revision uint64
	Subtotal string
	Tax      string
	Total    string
	OOB      bool
}

// layoutControlsView feeds the layout selector, colour picker and swatches.
// Picker is the accent as #rrggbb, or empty when the accent has no such
// form (named or rgb() colours).
type layoutControlsView struct {
	Variants []variantOption
	Accent   string
	Picker   string
	Swatches []string
	OOB      bool
}

type editorView struct {
	pageData
	InvoiceNumber  string
	IssueDate      string
	DueDate        string
	ClientName     string
	ClientEmail    string
	ClientAddress  string
	Notes          string
	Items          []itemRow
	Layout         layoutControlsView
	SuggestEnabled bool
	Preview        previewView
}

type invoiceRow struct {
	ID        int64
	Number    string
	Client    string
	IssueDate string
	DueDate   string
	Total     string
	Status    string
	SavedAt   string
	Synced    bool
	Paid      bool
}

type dashboardView struct {
	pageData
	Rows        []invoiceRow
	Outstanding string
	Overdue     int
	Error       string
}

type invoiceView struct {
	pageData
	Row    invoiceRow
	Layout render.Layout
}

type profileView struct {
	pageData
	Profile core.BusinessProfile
	Saved   bool
	Error   string
}

type saveStatusView struct {
	ID     int64
	Number string
}

func (s *Server) itemRows(items []core.InvoiceItem) []itemRow {
	rows := make([]itemRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, s.itemRow(it))
	}
	return rows
}

func (s *Server) itemRow(it core.InvoiceItem) itemRow {
	return itemRow{
		ID:          it.ID,
		Description: it.Description,
		Quantity:    core.FormatQuantity(it.Quantity),
		UnitPrice:   core.FormatQuantity(it.UnitPrice),
		Amount:      s.money(it.LineTotal()),
	}
}

func (s *Server) previewView(u editor.Update) previewView {
	inv := u.Document.Invoice
	layout := s.renderer.Render(u.Document, u.Variant, u.Accent)
	var warnings []string
	if inv.DueBeforeIssue() {
		warnings = append(warnings, "The due date is before the issue date.")
	}
	if len(inv.Items) == 0 {
		warnings = append(warnings, "Add at least one item before saving.")
	}
	return previewView{
		HTML:     layout.HTML,
		Warnings: warnings,
		Revision: u.Revision,
		Subtotal: s.money(inv.Subtotal),
		Tax:      s.money(inv.Tax),
		Total:    s.money(inv.Total),
	}
}

func (s *Server) layoutControls(u editor.Update) layoutControlsView {
	variants := make([]variantOption, 0, len(core.Variants()))
	for _, v := range core.Variants() {
		variants = append(variants, variantOption{Value: string(v), Label: v.Label(), Selected: v == u.Variant})
	}
	return layoutControlsView{
		Variants: variants,
		Accent:   u.Accent,
		Picker:   pickerColor(u.Accent),
		Swatches: core.AccentSwatches,
	}
}

// pickerColor expands a hex accent to the #rrggbb form a colour input
// accepts. Alpha is dropped.
func pickerColor(accent string) string {
	if !strings.HasPrefix(accent, "#") {
		return ""
	}
	hex := accent[1:]
	switch len(hex) {
	case 3, 4:
		return "#" + string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6, 8:
		return "#" + hex[:6]
	}
	return ""
}

func (s *Server) editorView(u editor.Update) editorView {
	inv := u.Document.Invoice
	return editorView{
		pageData:       pageData{Title: "Edit invoice " + inv.InvoiceNumber, Active: "editor"},
		InvoiceNumber:  inv.InvoiceNumber,
		IssueDate:      inv.IssueDate.String(),
		DueDate:        inv.DueDate.String(),
		ClientName:     inv.Client.Name,
		ClientEmail:    inv.Client.Email,
		ClientAddress:  inv.Client.Address,
		Notes:          inv.Notes,
		Items:          s.itemRows(inv.Items),
		Layout:         s.layoutControls(u),
		SuggestEnabled: s.suggestionsEnabled(),
		Preview:        s.previewView(u),
	}
}

func (s *Server) invoiceRow(rec archive.Record) invoiceRow {
	inv := rec.Document.Invoice
	return invoiceRow{
		ID:        rec.ID,
		Number:    inv.InvoiceNumber,
		Client:    inv.Client.Name,
		IssueDate: inv.IssueDate.String(),
		DueDate:   inv.DueDate.String(),
		Total:     s.money(inv.Total),
		Status:    string(rec.Status(s.now())),
		SavedAt:   formatTimestamp(rec.SavedAt),
		Synced:    rec.SyncedAt != nil,
		Paid:      rec.PaidAt != nil,
	}
}

func invoicePath(id int64) string {
	return "/invoices/" + strconv.FormatInt(id, 10)
}
