package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"invoicepilot/internal/core"
	"invoicepilot/internal/log"
)

func TestSuggestionValidate(t *testing.T) {
	good := Suggestion{IssueDate: "2025-01-01", DueDate: "2025-01-31", Items: []Item{{Description: "Hosting", Quantity: 1, UnitPrice: 300}}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	cases := []Suggestion{
		{IssueDate: "01/01/2025", DueDate: "2025-01-31", Items: good.Items},
		{IssueDate: "2025-01-01", DueDate: "", Items: good.Items},
		{IssueDate: "2025-01-01", DueDate: "2025-01-31"},
		{IssueDate: "2025-01-01", DueDate: "2025-01-31", Items: []Item{{Quantity: -1}}},
	}
	for i, s := range cases {
		if err := s.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTemplateSuggestionVariant(t *testing.T) {
	cases := map[string]core.Variant{
		"Creative":                                 core.Creative,
		"I recommend the Classic template":         core.Classic,
		"Classic, rather than Modern, fits a firm": core.Classic,
		"something bold":                           core.Modern,
	}
	for in, want := range cases {
		if got := (TemplateSuggestion{TemplateSuggestion: in}).Variant(); got != want {
			t.Fatalf("%q expected %s, got %s", in, want, got)
		}
	}
}

func TestDescribe(t *testing.T) {
	inv := core.Assemble(core.FormState{}, []core.InvoiceItem{{Description: "Hosting", Quantity: 2, UnitPrice: 150}}, core.DefaultTaxRate, nil)
	got := Describe(inv)
	if !strings.Contains(got, "Hosting x2 at 150.00") || !strings.Contains(got, "Total 354.00") {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestClient_SuggestDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/details" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req DetailsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionDescription != "hosting for march" {
			t.Errorf("unexpected body %+v (%v)", req, err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"invoiceNumber":"INV-9","issueDate":"2025-03-01","dueDate":"2025-03-31","billingAddress":"1 Road","items":[{"description":"Hosting","quantity":1,"unitPrice":300}],"totalAmount":354}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "secret"}, log.Discard())
	got, err := c.SuggestDetails(context.Background(), DetailsRequest{TransactionDescription: "hosting for march"})
	if err != nil {
		t.Fatalf("SuggestDetails: %v", err)
	}
	if got.InvoiceNumber != "INV-9" || len(got.Items) != 1 || got.Items[0].UnitPrice != 300 {
		t.Fatalf("unexpected suggestion %+v", got)
	}
}

func TestClient_SuggestTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/template" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"templateSuggestion":"Creative","reasoning":"design studio"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, log.Discard())
	got, err := c.SuggestTemplate(context.Background(), TemplateRequest{BusinessType: "design studio"})
	if err != nil {
		t.Fatalf("SuggestTemplate: %v", err)
	}
	if got.Variant() != core.Creative || got.Reasoning != "design studio" {
		t.Fatalf("unexpected answer %+v", got)
	}
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, log.Discard())
	if _, err := c.SuggestDetails(context.Background(), DetailsRequest{TransactionDescription: "x"}); err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}
	if _, err := c.SuggestDetails(context.Background(), DetailsRequest{}); !errors.Is(err, ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}

	disabled := NewClient(Config{}, log.Discard())
	if _, err := disabled.SuggestTemplate(context.Background(), TemplateRequest{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, log.Discard())
	_, err := c.SuggestDetails(context.Background(), DetailsRequest{TransactionDescription: "x"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
