package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"invoicepilot/internal/core"
	"invoicepilot/internal/editor"
	"invoicepilot/internal/log"
	"invoicepilot/internal/suggest"
)

// handleNewInvoice starts a fresh draft from the sample invoice.
func (s *Server) handleNewInvoice(w http.ResponseWriter, r *http.Request) {
	sess := s.draft(w, r)
	sess.LoadDefaults()
	s.renderPage(w, r, http.StatusOK, "editor", s.editorView(sess.Current()))
}

// handleEditor shows the current draft without resetting it.
func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	sess := s.draft(w, r)
	s.renderPage(w, r, http.StatusOK, "editor", s.editorView(sess.Current()))
}

// handleDraftFields replaces the header fields and returns the preview.
func (s *Server) handleDraftFields(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	sess := s.draft(w, r)
	sess.SetForm(ParseFormState(p))
	s.writePreview(w, r, sess, "")
}

// handleAddItem appends an empty row and returns the item table, with the
// preview swapped out of band.
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	sess := s.draft(w, r)
	sess.AddItem()
	s.writeItems(w, r, sess)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	id := r.PathValue("id")
	upd := ParseItemUpdate(p)
	sess := s.draft(w, r)
	if err := sess.UpdateItem(id, upd.Description, upd.Quantity, upd.UnitPrice); err != nil {
		s.itemMissing(w, r, id, err)
		return
	}

	var amount string
	for _, it := range sess.Items() {
		if it.ID == id {
			row := s.itemRow(it)
			row.OOB = true
			html, err := s.execute("item-amount", row)
			if err == nil {
				amount = html
			}
			break
		}
	}
	s.writePreview(w, r, sess, amount)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess := s.draft(w, r)
	if err := sess.RemoveItem(id); err != nil {
		s.itemMissing(w, r, id, err)
		return
	}
	s.writeItems(w, r, sess)
}

func (s *Server) itemMissing(w http.ResponseWriter, r *http.Request, id string, err error) {
	if !errors.Is(err, editor.ErrItemNotFound) {
		InternalServerError("Could not update the item").Write(w)
		return
	}
	log.FromContext(r.Context()).WarnContext(r.Context(), "Item not found in draft", "item_id", id)
	NotFoundError("This item no longer exists. Reload the editor.").
		TriggerErrorNotification("This item no longer exists. Reload the editor.").
		Write(w)
}

// handleTemplate switches layout and accent color.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	choice := ParseTemplateChoice(p)
	sess := s.draft(w, r)
	if choice.HasVariant {
		sess.SetVariant(choice.Variant)
	}
	if choice.HasAccent {
		sess.SetAccent(choice.Accent)
	}

	// The colour picker is re-rendered so it shows the accent in effect
	// after a swatch click.
	cv := s.layoutControls(sess.Current())
	cv.OOB = true
	controls, err := s.execute("layout-controls", cv)
	if err != nil {
		s.templateFailed(w, r, err)
		return
	}
	s.writePreview(w, r, sess, controls)
}

// handleSuggest fills the draft from a free-text transaction description.
// Failures leave the draft untouched and only raise a notification.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	description := p.Get("description")
	if description == "" {
		NewHTMXResponse().NoSwap().
			TriggerWarningNotification("Describe the transaction first.").
			Write(w)
		return
	}

	sess := s.draft(w, r)
	rev := sess.Revision()
	business, err := json.Marshal(s.profile.Get())
	if err != nil {
		InternalServerError("Could not prepare the request").Write(w)
		return
	}

	ctx := r.Context()
	logger := log.FromContext(ctx)
	sug, err := s.suggester.SuggestDetails(ctx, suggest.DetailsRequest{
		TransactionDescription: description,
		BusinessProfile:        string(business),
	})
	if err != nil {
		s.suggestFailed(w, r, err)
		return
	}

	switch err := sess.ApplySuggestion(rev, sug, s.clientDefaults()); {
	case errors.Is(err, editor.ErrStaleSuggestion):
		logger.InfoContext(ctx, "Discarded stale suggestion", log.FieldRevision, rev)
		NewHTMXResponse().NoSwap().
			TriggerWarningNotification("The invoice changed while suggestions were generated, so they were discarded.").
			Write(w)
		return
	case err != nil:
		logger.WarnContext(ctx, "Rejected invalid suggestion", log.FieldOperation, log.OpSuggest, log.FieldError, err)
		NewHTMXResponse().NoSwap().
			TriggerErrorNotification("The suggestion was incomplete and was not applied.").
			Write(w)
		return
	}

	u := sess.Current()
	logger.InfoContext(ctx, "Applied suggestion",
		log.FieldOperation, log.OpSuggest,
		log.FieldInvoiceNumber, u.Document.Invoice.InvoiceNumber,
		log.FieldItemCount, len(u.Document.Invoice.Items))
	s.writeWorkspace(w, r, u, NewHTMXResponse().
		TriggerSuccessNotification("Invoice details filled in from your description."))
}

// handleSuggestTemplate asks which layout suits the business and applies it.
func (s *Server) handleSuggestTemplate(w http.ResponseWriter, r *http.Request) {
	p, fail := ParseBodyOrFail(r)
	if fail != nil {
		fail.Write(w)
		return
	}
	businessType := p.Get("businessType")
	if businessType == "" {
		NewHTMXResponse().NoSwap().
			TriggerWarningNotification("Tell us what kind of business this is first.").
			Write(w)
		return
	}

	sess := s.draft(w, r)
	ts, err := s.suggester.SuggestTemplate(r.Context(), suggest.TemplateRequest{
		BusinessType:   businessType,
		InvoiceDetails: suggest.Describe(sess.Snapshot().Invoice),
	})
	if err != nil {
		s.suggestFailed(w, r, err)
		return
	}
	variant := ts.Variant()
	sess.SetVariant(variant)

	message := "Suggested the " + variant.Label() + " template."
	if reason := strings.TrimSpace(ts.Reasoning); reason != "" {
		message += " " + reason
	}
	s.writeWorkspace(w, r, sess.Current(), NewHTMXResponse().
		TriggerNotification(NotificationInfo, message, 8000))
}

func (s *Server) suggestFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, suggest.ErrDisabled) {
		NewHTMXResponse().NoSwap().
			TriggerWarningNotification("Suggestions are not configured on this server.").
			Write(w)
		return
	}
	s.requests.LogError(r.Context(), "Suggestion request failed", err, log.ComponentSuggest, log.OpSuggest, nil)
	NewHTMXResponse().NoSwap().
		TriggerErrorNotification("Could not generate suggestions. Please try again.").
		Write(w)
}

// handleSave validates the draft and stores it in the archive.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess := s.draft(w, r)
	u := sess.Current()
	inv := u.Document.Invoice
	if err := inv.ValidateForSubmit(); err != nil {
		msg := validationMessage(err)
		UnprocessableEntityError(msg).TriggerErrorNotification(msg).Write(w)
		return
	}

	ctx := r.Context()
	rec, err := s.archive.Save(ctx, u.Document, u.Variant, u.Accent)
	if err != nil {
		s.requests.LogError(ctx, "Invoice save failed", err, log.ComponentInvoice, log.OpCreate,
			log.NewFields().WithInvoice(inv.InvoiceNumber, len(inv.Items), inv.Total, string(u.Variant)))
		InternalServerError("Could not save the invoice").
			TriggerErrorNotification("Could not save the invoice. Please try again.").
			Write(w)
		return
	}
	s.requests.LogInvoiceSaved(ctx, rec.ID, inv.InvoiceNumber, len(inv.Items), inv.Total, string(rec.Variant))

	html, err := s.execute("save-status", saveStatusView{ID: rec.ID, Number: inv.InvoiceNumber})
	if err != nil {
		InternalServerError("Saved, but the confirmation could not be shown").Write(w)
		return
	}
	NewHTMXResponse().
		TriggerInvoiceSaved(rec.ID, inv.InvoiceNumber).
		TriggerSuccessNotification("Invoice " + inv.InvoiceNumber + " saved.").
		BodyHTML(html).
		Write(w)
}

// handlePrintDraft returns the draft as a standalone printable page.
func (s *Server) handlePrintDraft(w http.ResponseWriter, r *http.Request) {
	u := s.draft(w, r).Current()
	s.writePrintable(w, r, u.Document, u.Variant, u.Accent)
}

func (s *Server) writePrintable(w http.ResponseWriter, r *http.Request, doc core.Document, variant core.Variant, accent string) {
	layout := s.renderer.Render(doc, variant, accent)
	page, err := s.renderer.Page(layout, "Invoice "+doc.Invoice.InvoiceNumber)
	if err != nil {
		s.requests.LogError(r.Context(), "Printable page failed", err, log.ComponentRender, log.OpRender, nil)
		InternalServerError("Could not render the invoice").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(string(page)).Write(w)
}

// writePreview renders the preview panel, appending extra out-of-band
// fragments.
func (s *Server) writePreview(w http.ResponseWriter, r *http.Request, sess *editor.Session, extra string) {
	u := sess.Current()
	html, err := s.execute("preview", s.previewView(u))
	if err != nil {
		s.templateFailed(w, r, err)
		return
	}
	NewHTMXResponse().
		TriggerPreviewRefresh(u.Revision).
		BodyHTML(html + extra).
		Write(w)
}

// writeItems renders the item table and swaps the preview out of band.
func (s *Server) writeItems(w http.ResponseWriter, r *http.Request, sess *editor.Session) {
	u := sess.Current()
	items, err := s.execute("items", s.itemRows(u.Document.Invoice.Items))
	if err != nil {
		s.templateFailed(w, r, err)
		return
	}
	pv := s.previewView(u)
	pv.OOB = true
	preview, err := s.execute("preview", pv)
	if err != nil {
		s.templateFailed(w, r, err)
		return
	}
	NewHTMXResponse().
		TriggerPreviewRefresh(u.Revision).
		BodyHTML(items + preview).
		Write(w)
}

// writeWorkspace re-renders the whole editor form and preview.
func (s *Server) writeWorkspace(w http.ResponseWriter, r *http.Request, u editor.Update, b *HTMXResponseBuilder) {
	html, err := s.execute("workspace", s.editorView(u))
	if err != nil {
		s.templateFailed(w, r, err)
		return
	}
	b.TriggerPreviewRefresh(u.Revision).BodyHTML(html).Write(w)
}

func (s *Server) templateFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.requests.LogError(r.Context(), "Template execution failed", err, log.ComponentHTTP, log.OpRender, nil)
	InternalServerError("Something went wrong while rendering the editor").Write(w)
}
