package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2025 || d.Month() != time.March || d.Day() != 9 {
		t.Fatalf("unexpected date %v", d)
	}
	for _, bad := range []string{"", "09/03/2025", "2025-13-01"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var inv Invoice
	in := `{"invoiceNumber":"INV-1","issueDate":"2025-01-02","dueDate":"2025-02-01T10:00:00Z","items":[]}`
	if err := json.Unmarshal([]byte(in), &inv); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if inv.IssueDate.String() != "2025-01-02" || inv.DueDate.String() != "2025-02-01" {
		t.Fatalf("unexpected dates %s %s", inv.IssueDate, inv.DueDate)
	}
	out, err := json.Marshal(inv)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"issueDate":"2025-01-02"`) {
		t.Fatalf("unexpected json %s", out)
	}
	if err := json.Unmarshal([]byte(`{"issueDate":"tomorrow"}`), &inv); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestLineTotal(t *testing.T) {
	if got := (InvoiceItem{Quantity: 20, UnitPrice: 6500}).LineTotal(); got != 130000 {
		t.Fatalf("expected 130000, got %v", got)
	}
	if got := (InvoiceItem{Quantity: -1, UnitPrice: 10}).LineTotal(); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestDueBeforeIssue(t *testing.T) {
	inv := Invoice{IssueDate: NewDate(2025, 5, 10), DueDate: NewDate(2025, 5, 1)}
	if !inv.DueBeforeIssue() {
		t.Fatalf("expected due before issue")
	}
	inv.DueDate = NewDate(2025, 5, 10)
	if inv.DueBeforeIssue() {
		t.Fatalf("same day is not before")
	}
}

func TestInvoiceValidateForSubmit(t *testing.T) {
	good := Invoice{
		InvoiceNumber: "INV-20250101-123",
		Client:        Client{Name: "Acme", Email: "a@acme.com", Address: "1 Road"},
		Items:         []InvoiceItem{{ID: "1", Description: "Work", Quantity: 1, UnitPrice: 10}},
	}
	if err := good.ValidateForSubmit(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		mutate func(*Invoice)
		want   error
	}{
		{func(i *Invoice) { i.InvoiceNumber = " " }, ErrEmptyInvoiceNumber},
		{func(i *Invoice) { i.Client.Name = "" }, ErrEmptyClientName},
		{func(i *Invoice) { i.Client.Email = "not-an-email" }, ErrInvalidClientEmail},
		{func(i *Invoice) { i.Client.Email = "Bob <bob@x.com>" }, ErrInvalidClientEmail},
		{func(i *Invoice) { i.Client.Address = "" }, ErrEmptyClientAddress},
		{func(i *Invoice) { i.Items = nil }, ErrNoItems},
		{func(i *Invoice) { i.Items = []InvoiceItem{{ID: "1"}} }, ErrEmptyItemDescription},
		{func(i *Invoice) { i.Items[0].Description = strings.Repeat("x", MaxItemDescription+1) }, ErrItemDescriptionTooLong},
		{func(i *Invoice) { i.Items[0].Description = strings.Repeat("é", MaxItemDescription) }, nil},
	}
	for i, tc := range cases {
		inv := good
		inv.Items = append([]InvoiceItem(nil), good.Items...)
		tc.mutate(&inv)
		if err := inv.ValidateForSubmit(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestBusinessProfileValidate(t *testing.T) {
	if err := DefaultBusiness().Validate(); err != nil {
		t.Fatalf("default profile invalid: %v", err)
	}
	if err := (BusinessProfile{Email: "a@b.co"}).Validate(); !errors.Is(err, ErrEmptyBusinessName) {
		t.Fatalf("expected ErrEmptyBusinessName, got %v", err)
	}
	if err := (BusinessProfile{Name: "X"}).Validate(); !errors.Is(err, ErrInvalidBusinessEmail) {
		t.Fatalf("expected ErrInvalidBusinessEmail, got %v", err)
	}
}
