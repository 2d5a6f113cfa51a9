package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"invoicepilot/internal/archive"
	"invoicepilot/internal/core"
	"invoicepilot/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.startedAt).Round(time.Second).String(),
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.ready == nil {
		checks["archive"] = "ok"
	} else if err := s.ready(ctx); err != nil {
		checks["archive"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["archive"] = "ok"
	}

	checks["suggestions"] = map[string]bool{"enabled": s.suggestionsEnabled()}
	checks["sessions"] = map[string]int{"active": s.sessions.Size()}

	ready := map[string]interface{}{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(ready)
}

// handleDashboard lists the most recent archived invoices.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	view := dashboardView{pageData: pageData{Title: "Invoices", Active: "dashboard"}}

	records, err := s.archive.ListRecent(r.Context(), recentInvoices)
	if err != nil {
		s.requests.LogError(r.Context(), "Listing invoices failed", err, log.ComponentInvoice, log.OpList, nil)
		view.Error = "Could not load recent invoices."
	}

	var outstanding float64
	for _, rec := range records {
		row := s.invoiceRow(rec)
		view.Rows = append(view.Rows, row)
		switch archive.Status(row.Status) {
		case archive.StatusOverdue:
			view.Overdue++
			outstanding += rec.Document.Invoice.Total
		case archive.StatusPending:
			outstanding += rec.Document.Invoice.Total
		}
	}
	view.Outstanding = s.money(outstanding)

	s.renderPage(w, r, http.StatusOK, "dashboard", view)
}

// handleViewInvoice shows an archived invoice with the layout it was saved with.
func (s *Server) handleViewInvoice(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.renderPage(w, r, http.StatusOK, "invoice", invoiceView{
		pageData: pageData{Title: "Invoice " + rec.Document.Invoice.InvoiceNumber, Active: "dashboard"},
		Row:      s.invoiceRow(rec),
		Layout:   s.renderer.Render(rec.Document, rec.Variant, rec.Accent),
	})
}

// handleInvoiceStylesheet serves the CSS shared by all invoice layouts.
func (s *Server) handleInvoiceStylesheet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", staticMaxAge))
	_, _ = w.Write([]byte(s.renderer.Stylesheet()))
}

func (s *Server) handlePrintInvoice(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writePrintable(w, r, rec.Document, rec.Variant, rec.Accent)
}

// handleMarkPaid records a payment and returns the refreshed dashboard row.
func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := ParseInvoiceID(r)
	if err != nil {
		BadRequestError("Invalid invoice id").Write(w)
		return
	}
	ctx := r.Context()
	if err := s.archive.MarkPaid(ctx, id, s.now()); err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			NotFoundError("Invoice not found").TriggerErrorNotification("Invoice not found.").Write(w)
			return
		}
		s.requests.LogError(ctx, "Marking invoice paid failed", err, log.ComponentInvoice, log.OpUpdate, nil)
		InternalServerError("Could not update the invoice").Write(w)
		return
	}
	if !isHTMX(r) {
		http.Redirect(w, r, invoicePath(id), http.StatusSeeOther)
		return
	}

	rec, err := s.archive.Get(ctx, id)
	if err != nil {
		s.requests.LogError(ctx, "Reloading paid invoice failed", err, log.ComponentInvoice, log.OpRead, nil)
		InternalServerError("Could not reload the invoice").Write(w)
		return
	}
	html, err := s.execute("invoice-row", s.invoiceRow(rec))
	if err != nil {
		s.templateFailed(w, r, err)
		return
	}
	NewHTMXResponse().
		TriggerInvoicePaid(id).
		TriggerSuccessNotification("Invoice " + rec.Document.Invoice.InvoiceNumber + " marked as paid.").
		BodyHTML(html).
		Write(w)
}

// handleReopen loads an archived invoice into the draft editor.
func (s *Server) handleReopen(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.draft(w, r).Load(rec.Document.Invoice, rec.Variant, rec.Accent)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/draft").Write(w)
		return
	}
	http.Redirect(w, r, "/draft", http.StatusSeeOther)
}

// lookup resolves the {id} path segment, writing the error page itself when
// the invoice cannot be loaded.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (archive.Record, bool) {
	id, err := ParseInvoiceID(r)
	if err != nil {
		s.renderError(w, r, http.StatusNotFound, "Invoice not found.")
		return archive.Record{}, false
	}
	rec, err := s.archive.Get(r.Context(), id)
	switch {
	case errors.Is(err, archive.ErrNotFound):
		s.renderError(w, r, http.StatusNotFound, "Invoice not found.")
		return archive.Record{}, false
	case err != nil:
		s.requests.LogError(r.Context(), "Loading invoice failed", err, log.ComponentInvoice, log.OpRead, nil)
		s.renderError(w, r, http.StatusInternalServerError, "Could not load the invoice.")
		return archive.Record{}, false
	}
	return rec, true
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "profile", profileView{
		pageData: pageData{Title: "Business profile", Active: "profile"},
		Profile:  s.profile.Get(),
	})
}

// handleUpdateProfile validates and persists the issuer identity. Open
// drafts pick it up on their next render.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	submitted := ParseProfile(p)
	view := profileView{pageData: pageData{Title: "Business profile", Active: "profile"}, Profile: submitted}

	err := s.profile.Update(submitted)
	switch {
	case errors.Is(err, core.ErrEmptyBusinessName), errors.Is(err, core.ErrInvalidBusinessEmail):
		view.Error = validationMessage(err)
		s.writeProfile(w, r, http.StatusUnprocessableEntity, view,
			NewHTMXResponse().TriggerErrorNotification(view.Error))
		return
	case err != nil:
		s.requests.LogError(r.Context(), "Saving profile failed", err, log.ComponentProfile, log.OpUpdate, nil)
		InternalServerError("Could not save the profile").
			TriggerErrorNotification("Could not save the profile.").
			Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Business profile updated", "business", submitted.Name)
	view.Saved = true
	s.writeProfile(w, r, http.StatusOK, view, NewHTMXResponse().TriggerSuccessNotification("Profile saved."))
}

// writeProfile answers htmx with the form fragment and plain form posts
// with the full page.
func (s *Server) writeProfile(w http.ResponseWriter, r *http.Request, status int, view profileView, b *HTMXResponseBuilder) {
	if !isHTMX(r) {
		s.renderPage(w, r, status, "profile", view)
		return
	}
	html, err := s.execute("profile-form", view)
	if err != nil {
		s.templateFailed(w, r, err)
		return
	}
	b.Status(status).BodyHTML(html).Write(w)
}
