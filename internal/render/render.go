// Package render turns an invoice document into a self-contained HTML region
// using one of the fixed layout variants.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"invoicepilot/internal/core"
	"invoicepilot/internal/log"
)

//go:embed templates/*.html templates/*.css
var templatesFS embed.FS

// RegionID is the DOM id of the rendered region; the print page and the
// HTMX swaps target it.
const RegionID = "invoice-preview-area"

// Layout is the output of a render pass.
type Layout struct {
	Variant core.Variant
	Accent  string
	HTML    template.HTML
}

// Options configures a Renderer.
type Options struct {
	// Currency is prefixed to every amount, e.g. "₹".
	Currency string
	Logger   *log.Logger
}

// Renderer holds the parsed layouts. It has no mutable state and is safe
// for concurrent use.
type Renderer struct {
	tmpl     *template.Template
	css      string
	currency string
	logger   *log.Logger
}

type view struct {
	Business core.BusinessProfile
	Invoice  core.Invoice
	Variant  core.Variant
	Accent   template.CSS
	RegionID string
}

// New parses the embedded layouts.
func New(opts Options) (*Renderer, error) {
	r := &Renderer{currency: opts.Currency, logger: opts.Logger}
	if r.logger == nil {
		r.logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentRender)
	}
	tmpl, err := template.New("invoice").Funcs(r.funcs()).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse invoice templates: %w", err)
	}
	css, err := templatesFS.ReadFile("templates/invoice.css")
	if err != nil {
		return nil, fmt.Errorf("read invoice stylesheet: %w", err)
	}
	r.tmpl = tmpl
	r.css = string(css)
	return r, nil
}

// Stylesheet returns the CSS every layout depends on.
func (r *Renderer) Stylesheet() string {
	return r.css
}

// Render lays out doc with variant and accent. Unknown variants fall back to
// Modern and invalid colors to the default accent. doc is never modified.
func (r *Renderer) Render(doc core.Document, variant core.Variant, accent string) Layout {
	name := templateName(variant)
	v := view{
		Business: doc.Business,
		Invoice:  doc.Invoice,
		Variant:  core.ParseVariant(name),
		Accent:   template.CSS(core.NormalizeAccent(accent)),
		RegionID: RegionID,
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, v); err != nil {
		r.logger.Error("Failed to render invoice",
			log.FieldOperation, log.OpRender,
			log.FieldVariant, name,
			log.FieldInvoiceNumber, doc.Invoice.InvoiceNumber,
			log.FieldError, err)
		return Layout{Variant: v.Variant, Accent: string(v.Accent), HTML: r.fallback(doc)}
	}
	return Layout{Variant: v.Variant, Accent: string(v.Accent), HTML: template.HTML(buf.String())}
}

// Page wraps a layout in a standalone printable HTML document.
func (r *Renderer) Page(l Layout, title string) ([]byte, error) {
	var buf bytes.Buffer
	err := r.tmpl.ExecuteTemplate(&buf, "page", struct {
		Title  string
		CSS    template.CSS
		Layout Layout
	}{Title: title, CSS: template.CSS(r.css), Layout: l})
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return buf.Bytes(), nil
}

func templateName(v core.Variant) string {
	switch v {
	case core.Modern:
		return "modern"
	case core.Classic:
		return "classic"
	case core.Creative:
		return "creative"
	default:
		return "modern"
	}
}

func (r *Renderer) fallback(doc core.Document) template.HTML {
	inv := doc.Invoice
	return template.HTML(fmt.Sprintf(`<div id="%s" class="invoice invoice--fallback"><p>%s</p><p>Total %s</p></div>`,
		RegionID,
		template.HTMLEscapeString(inv.InvoiceNumber),
		template.HTMLEscapeString(r.money(inv.Total))))
}

func (r *Renderer) money(v float64) string {
	return r.currency + core.FormatAmount(v)
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"money":       r.money,
		"qty":         core.FormatQuantity,
		"ordinalDate": ordinalDate,
		"shortDate":   func(d core.Date) string { return d.Format("01/02/2006") },
		"longDate":    func(d core.Date) string { return d.Format("January 2, 2006") },
		"lines":       lines,
		"joinLines":   func(s, sep string) string { return strings.Join(lines(s), sep) },
	}
}

// ordinalDate formats "January 2nd, 2006".
func ordinalDate(d core.Date) string {
	return fmt.Sprintf("%s %d%s, %d", d.Month().String(), d.Day(), ordinalSuffix(d.Day()), d.Year())
}

func ordinalSuffix(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

// lines splits a multi-line address, dropping blank lines.
func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
