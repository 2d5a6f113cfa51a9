package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"invoicepilot/internal/config"
	"invoicepilot/internal/core"
	"invoicepilot/internal/log"
	"invoicepilot/internal/render"
)

// documentFile is the on-disk invoice document. Business falls back to the
// built-in profile; template and accent may be overridden by flags.
type documentFile struct {
	Business *core.BusinessProfile `json:"business,omitempty"`
	Invoice  core.Invoice          `json:"invoice"`
	Template string                `json:"template,omitempty"`
	Accent   string                `json:"accent,omitempty"`
}

type settings struct {
	taxRate  float64
	currency string
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render an invoice document to a printable HTML page",
		Example: `  invoicectl render --in invoice.json --template classic --accent "#3b82f6" --out invoice.html
  cat invoice.json | invoicectl render --in - > invoice.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			file, err := readDocument(cmd)
			if err != nil {
				return err
			}
			doc := file.document(s.taxRate, time.Now)

			if strict, _ := cmd.Flags().GetBool("strict"); strict {
				if err := doc.Invoice.ValidateForSubmit(); err != nil {
					return fmt.Errorf("invoice %q is incomplete: %w", doc.Invoice.InvoiceNumber, err)
				}
			}

			template := file.Template
			if cmd.Flags().Changed("template") {
				template, _ = cmd.Flags().GetString("template")
			}
			accent := file.Accent
			if cmd.Flags().Changed("accent") {
				accent, _ = cmd.Flags().GetString("accent")
			}

			renderer, err := render.New(render.Options{Currency: s.currency, Logger: log.Discard()})
			if err != nil {
				return fmt.Errorf("failed to load templates: %w", err)
			}
			layout := renderer.Render(doc, core.ParseVariant(template), accent)
			page, err := renderer.Page(layout, "Invoice "+doc.Invoice.InvoiceNumber)
			if err != nil {
				return fmt.Errorf("failed to render invoice: %w", err)
			}

			out, _ := cmd.Flags().GetString("out")
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(page)
				return err
			}
			if err := os.WriteFile(out, page, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%s layout, accent %s)\n", out, layout.Variant.Label(), layout.Accent)
			return nil
		},
	}

	cmd.Flags().String("template", "", "layout: modern, classic or creative (default from the file, else modern)")
	cmd.Flags().String("accent", "", "accent color as #rrggbb (default from the file, else "+core.DefaultAccent+")")
	cmd.Flags().String("out", "", "output file (default stdout)")
	cmd.Flags().Bool("strict", false, "refuse to render invoices that could not be saved")
	return cmd
}

func newTotalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "totals",
		Short: "Print the recomputed subtotal, tax and total of an invoice document",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			file, err := readDocument(cmd)
			if err != nil {
				return err
			}
			inv := file.document(s.taxRate, time.Now).Invoice

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-12s %s\n", "Invoice", inv.InvoiceNumber)
			for _, it := range inv.Items {
				fmt.Fprintf(w, "  %-40s %8s x %12s = %s%s\n",
					truncate(it.Description, 40),
					core.FormatQuantity(it.Quantity),
					core.FormatAmount(it.UnitPrice),
					s.currency, core.FormatAmount(it.LineTotal()))
			}
			fmt.Fprintf(w, "%-12s %s%s\n", "Subtotal", s.currency, core.FormatAmount(inv.Subtotal))
			fmt.Fprintf(w, "%-12s %s%s\n", "Tax ("+percent(s.taxRate)+")", s.currency, core.FormatAmount(inv.Tax))
			fmt.Fprintf(w, "%-12s %s%s\n", "Total", s.currency, core.FormatAmount(inv.Total))
			if inv.DueBeforeIssue() {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: the due date is before the issue date")
			}
			return nil
		},
	}
}

// loadSettings resolves tax rate and currency: flags first, then the
// environment the server reads.
func loadSettings(cmd *cobra.Command) (settings, error) {
	cfg := config.Load()
	s := settings{taxRate: cfg.TaxRate, currency: cfg.CurrencySymbol}
	if cmd.Flags().Changed("tax-rate") {
		s.taxRate, _ = cmd.Flags().GetFloat64("tax-rate")
	}
	if cmd.Flags().Changed("currency") {
		s.currency, _ = cmd.Flags().GetString("currency")
	}
	if s.taxRate < 0 || s.taxRate > 1 {
		return settings{}, fmt.Errorf("tax rate must be between 0 and 1, got %v", s.taxRate)
	}
	return s, nil
}

func readDocument(cmd *cobra.Command) (documentFile, error) {
	path, _ := cmd.Flags().GetString("in")
	if path == "" {
		return documentFile{}, errors.New("--in is required")
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return documentFile{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file documentFile
	if err := json.Unmarshal(data, &file); err != nil {
		return documentFile{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return file, nil
}

// document fills in the business profile and missing item ids, then
// assembles the invoice the way the editor does: unset dates default to
// now and totals are recomputed, so stored totals in the file are ignored.
func (f documentFile) document(rate float64, now func() time.Time) core.Document {
	business := core.DefaultBusiness()
	if f.Business != nil {
		business = *f.Business
	}
	items := make([]core.InvoiceItem, len(f.Invoice.Items))
	for i, it := range f.Invoice.Items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		items[i] = it
	}
	form := core.FormState{
		InvoiceNumber: f.Invoice.InvoiceNumber,
		IssueDate:     f.Invoice.IssueDate,
		DueDate:       f.Invoice.DueDate,
		Client:        f.Invoice.Client,
		Notes:         f.Invoice.Notes,
	}
	return core.Document{Business: business, Invoice: core.Assemble(form, items, rate, now)}
}

func percent(rate float64) string {
	return decimal.NewFromFloat(rate).Shift(2).String() + "%"
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
