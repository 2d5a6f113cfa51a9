package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"invoicepilot/internal/core"
)

const sampleDocument = `{
  "business": {"name": "Pixel Studio", "email": "hi@pixel.studio", "address": "1 Art Lane"},
  "invoice": {
    "invoiceNumber": "INV-20250115-042",
    "issueDate": "2025-01-15",
    "dueDate": "2025-02-14",
    "client": {"name": "Acme Corp", "email": "contact@acme.com", "address": "123 Business Rd."},
    "items": [
      {"description": "Synergy Platform Development", "quantity": 20, "unitPrice": 6500},
      {"description": "Quantum AI Integration", "quantity": 1, "unitPrice": 95000}
    ],
    "notes": "Thank you for your business!",
    "total": 1
  },
  "template": "creative"
}`

func writeDocument(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoice.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write document: %v", err)
	}
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestTotalsRecomputesFromItems(t *testing.T) {
	path := writeDocument(t, sampleDocument)

	out, _, err := run(t, "", "totals", "--in", path, "--tax-rate", "0.18", "--currency", "₹")
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	for _, want := range []string{
		"INV-20250115-042",
		"Subtotal     ₹225000.00",
		"Tax (18%)    ₹40500.00",
		"Total        ₹265500.00",
		"6500.00 = ₹130000.00",
		"95000.00 = ₹95000.00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTotalsWarnsAboutDueDate(t *testing.T) {
	doc := strings.Replace(sampleDocument, `"dueDate": "2025-02-14"`, `"dueDate": "2025-01-01"`, 1)
	_, stderr, err := run(t, doc, "totals", "--in", "-", "--tax-rate", "0")
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if !strings.Contains(stderr, "due date is before the issue date") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRenderUsesFileTemplateUnlessOverridden(t *testing.T) {
	path := writeDocument(t, sampleDocument)

	page, _, err := run(t, "", "render", "--in", path, "--currency", "₹", "--tax-rate", "0.18")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(page, "<!doctype html>") || !strings.Contains(page, `data-variant="creative"`) {
		t.Errorf("expected a creative standalone page")
	}
	if !strings.Contains(page, "Pixel Studio") {
		t.Errorf("business from the file not rendered")
	}

	out := filepath.Join(t.TempDir(), "invoice.html")
	_, stderr, err := run(t, "", "render", "--in", path, "--template", "classic", "--accent", "#3B82F6", "--out", out)
	if err != nil {
		t.Fatalf("render --out: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "Invoice To:") || !strings.Contains(string(data), "#3b82f6") {
		t.Errorf("classic layout with accent not rendered")
	}
	if !strings.Contains(stderr, "Classic layout") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestDocumentDefaultsMissingDates(t *testing.T) {
	const body = `{"invoice": {"invoiceNumber": "INV-1", "client": {"name": "Acme"},
	  "items": [{"description": "Hosting", "quantity": 1, "unitPrice": 300}]}}`
	var file documentFile
	if err := json.Unmarshal([]byte(body), &file); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	clock := func() time.Time { return time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC) }
	inv := file.document(0.18, clock).Invoice
	today := core.NewDate(2025, 3, 4)
	if !inv.IssueDate.Equal(today.Time) || !inv.DueDate.Equal(today.Time) {
		t.Errorf("dates = %v / %v, want both %v", inv.IssueDate, inv.DueDate, today)
	}
	if inv.Total != 354 || inv.Items[0].ID == "" {
		t.Errorf("invoice not assembled: total=%v items=%+v", inv.Total, inv.Items)
	}

	page, _, err := run(t, body, "render", "--in", "-")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(page, "January 1st, 1<") || strings.Contains(page, "0001") {
		t.Error("rendered page shows the zero date")
	}
}

func TestRenderStrictRejectsIncompleteInvoice(t *testing.T) {
	doc := `{"invoice": {"invoiceNumber": "INV-1", "client": {"name": "Acme"}, "items": []}}`
	if _, _, err := run(t, doc, "render", "--in", "-", "--strict"); err == nil {
		t.Fatal("expected strict render to fail")
	}
	if _, _, err := run(t, doc, "render", "--in", "-"); err != nil {
		t.Fatalf("non-strict render failed: %v", err)
	}
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing input", []string{"totals"}, "--in is required"},
		{"unreadable input", []string{"totals", "--in", "/does/not/exist.json"}, "failed to read"},
		{"tax rate out of range", []string{"totals", "--in", "-", "--tax-rate", "1.5"}, "tax rate must be between 0 and 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, sampleDocument, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}

	if _, _, err := run(t, "{not json", "totals", "--in", "-"); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("bad json err = %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  short  ", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("Développement de plateforme", 10); got != "Dévelop..." {
		t.Errorf("truncate = %q", got)
	}
}
