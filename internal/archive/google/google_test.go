package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"invoicepilot/internal/archive"
	"invoicepilot/internal/core"

	goption "google.golang.org/api/option"
)

// fakeSheets serves the two Values endpoints the ledger uses.
type fakeSheets struct {
	mu      sync.Mutex
	column  [][]any
	updates []update
	failPut bool
}

type update struct {
	Range  string
	Values [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sheet-id/values/") {
		http.NotFound(w, r)
		return
	}
	rng := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sheet-id/values/")

	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": f.column})
	case http.MethodPut:
		if f.failPut {
			http.Error(w, `{"error":{"code":500,"message":"boom"}}`, http.StatusInternalServerError)
			return
		}
		if got := r.URL.Query().Get("valueInputOption"); got != "USER_ENTERED" {
			http.Error(w, "bad valueInputOption "+got, http.StatusBadRequest)
			return
		}
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.updates = append(f.updates, update{Range: rng, Values: body.Values})
		if len(body.Values) > 0 && len(body.Values[0]) > 0 {
			f.column = append(f.column, []any{body.Values[0][0]})
		}
		json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestLedger(t *testing.T, fake *fakeSheets) *Ledger {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	l, err := New(context.Background(), Config{SpreadsheetID: "sheet-id", SheetName: "Invoices"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func testRecord(id int64, number string) archive.Record {
	inv := core.Invoice{
		InvoiceNumber: number,
		IssueDate:     core.NewDate(2025, 1, 2),
		DueDate:       core.NewDate(2025, 2, 1),
		Client:        core.Client{Name: " Acme Corp ", Email: "contact@acme.com", Address: "1 Road"},
		Items:         []core.InvoiceItem{{ID: "a", Description: "Work", Quantity: 2, UnitPrice: 150}},
	}
	inv.Subtotal, inv.Tax, inv.Total = 300, 54, 354
	return archive.Record{ID: id, Document: core.Document{Invoice: inv}, Variant: core.Classic}
}

func TestLedger_AppendInvoiceWritesHeaderOnEmptySheet(t *testing.T) {
	fake := &fakeSheets{}
	l := newTestLedger(t, fake)

	ref, err := l.AppendInvoice(context.Background(), testRecord(7, "INV-20250102-123"))
	if err != nil {
		t.Fatalf("AppendInvoice: %v", err)
	}
	if ref != "Invoices!A2:I2" {
		t.Errorf("ref = %q, want Invoices!A2:I2", ref)
	}
	if len(fake.updates) != 2 {
		t.Fatalf("expected header and row updates, got %d", len(fake.updates))
	}
	if fake.updates[0].Range != "Invoices!A1:I1" || fake.updates[0].Values[0][0] != "Number" {
		t.Errorf("unexpected header update %+v", fake.updates[0])
	}
	row := fake.updates[1].Values[0]
	want := []string{"INV-20250102-123", "2025-01-02", "2025-02-01", "Acme Corp", "300.00", "54.00", "354.00", "classic"}
	for i, w := range want {
		if row[i] != w {
			t.Errorf("cell %d = %v, want %v", i, row[i], w)
		}
	}
}

func TestLedger_AppendInvoiceAppendsAfterExistingRows(t *testing.T) {
	fake := &fakeSheets{column: [][]any{{"Number"}, {"INV-1"}, {"INV-2"}}}
	l := newTestLedger(t, fake)

	ref, err := l.AppendInvoice(context.Background(), testRecord(3, "INV-3"))
	if err != nil {
		t.Fatalf("AppendInvoice: %v", err)
	}
	if ref != "Invoices!A4:I4" {
		t.Errorf("ref = %q, want Invoices!A4:I4", ref)
	}
	if len(fake.updates) != 1 {
		t.Errorf("expected one update, got %d", len(fake.updates))
	}
}

func TestLedger_AppendInvoiceIsIdempotent(t *testing.T) {
	fake := &fakeSheets{column: [][]any{{"Number"}, {"INV-1"}}}
	l := newTestLedger(t, fake)

	ref, err := l.AppendInvoice(context.Background(), testRecord(1, "inv-1"))
	if err != nil {
		t.Fatalf("AppendInvoice: %v", err)
	}
	if ref != "Invoices!A2:I2" || len(fake.updates) != 0 {
		t.Errorf("expected existing row reused, ref=%q updates=%d", ref, len(fake.updates))
	}
}

func TestLedger_AppendInvoiceErrors(t *testing.T) {
	t.Run("empty number", func(t *testing.T) {
		l := newTestLedger(t, &fakeSheets{})
		if _, err := l.AppendInvoice(context.Background(), testRecord(1, " ")); err == nil {
			t.Error("expected error for empty invoice number")
		}
	})

	t.Run("update failure", func(t *testing.T) {
		l := newTestLedger(t, &fakeSheets{column: [][]any{{"Number"}}, failPut: true})
		if _, err := l.AppendInvoice(context.Background(), testRecord(1, "INV-1")); err == nil {
			t.Error("expected error when the sheet rejects the update")
		}
	})

	t.Run("uninitialised service", func(t *testing.T) {
		l := &Ledger{spreadsheetID: "x", sheetName: "Invoices"}
		if _, err := l.AppendInvoice(context.Background(), testRecord(1, "INV-1")); err == nil {
			t.Error("expected error without a service")
		}
	})
}

func TestNew_Credentials(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("expected error for missing spreadsheet id")
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "x"}); err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("expected missing credentials error, got %v", err)
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "x", CredentialsFile: "/non/existent.json"}); err == nil {
		t.Error("expected error for unreadable credentials file")
	}
}

const oauthClient = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret",` +
	`"redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth",` +
	`"token_uri":"https://oauth2.googleapis.com/token"}}`

func TestOAuthConfig(t *testing.T) {
	if _, err := OAuthConfig("", ""); err == nil || !strings.Contains(err.Error(), "missing OAuth client") {
		t.Errorf("expected missing client error, got %v", err)
	}
	if _, err := OAuthConfig("{", ""); err == nil {
		t.Error("expected parse error")
	}
	conf, err := OAuthConfig(oauthClient, "")
	if err != nil {
		t.Fatalf("OAuthConfig: %v", err)
	}
	if conf.ClientID != "id.apps.googleusercontent.com" || len(conf.Scopes) != 1 {
		t.Errorf("conf = %+v", conf)
	}
}

func TestNew_OAuthToken(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token.json")

	cfg := Config{SpreadsheetID: "x", OAuthClientJSON: oauthClient, OAuthTokenFile: tokenFile}
	if _, err := New(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "open OAuth token") {
		t.Errorf("expected missing token error, got %v", err)
	}

	if err := os.WriteFile(tokenFile, []byte(`{"access_token":"a","refresh_token":"r","token_type":"Bearer"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	ledger, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New with OAuth token: %v", err)
	}
	if ledger.sheetName != "Invoices" {
		t.Errorf("sheet = %q, want default", ledger.sheetName)
	}
}
