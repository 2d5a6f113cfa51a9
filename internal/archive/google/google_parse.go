package google

import (
	"strings"

	"invoicepilot/internal/archive"
	"invoicepilot/internal/core"
)

// ledgerHeader is written to row 1 of an empty sheet.
var ledgerHeader = []string{"Number", "Issue date", "Due date", "Client", "Subtotal", "Tax", "Total", "Template", "Invoice ID"}

// ledgerRow flattens a record into sheet cells, amounts as 2-decimal strings.
func ledgerRow(r archive.Record) []any {
	inv := r.Document.Invoice
	return []any{
		inv.InvoiceNumber,
		inv.IssueDate.String(),
		inv.DueDate.String(),
		strings.TrimSpace(inv.Client.Name),
		core.FormatAmount(inv.Subtotal),
		core.FormatAmount(inv.Tax),
		core.FormatAmount(inv.Total),
		string(r.Variant),
		r.ID,
	}
}

func headerRow() []any {
	out := make([]any, len(ledgerHeader))
	for i, h := range ledgerHeader {
		out[i] = h
	}
	return out
}

// findRow returns the 1-based sheet row holding number, or 0.
func findRow(numbers []string, number string) int {
	for i, v := range numbers {
		if strings.EqualFold(v, number) {
			return i + 1
		}
	}
	return 0
}
