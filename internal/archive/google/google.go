package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"invoicepilot/internal/archive"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Ledger appends archived invoices to a Google Sheets tab, one row per invoice.
type Ledger struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// mu serialises appends so two writers never pick the same row.
	mu sync.Mutex
}

var _ archive.LedgerWriter = (*Ledger)(nil)

// Config selects the spreadsheet and the identity used to write it: a
// service account (CredentialsJSON wins over CredentialsFile) or, when none
// is set, an OAuth client plus the token saved by invoicepilot-oauth-init.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

func (c Config) hasServiceAccount() bool {
	return strings.TrimSpace(c.CredentialsJSON) != "" || strings.TrimSpace(c.CredentialsFile) != ""
}

// New creates a ledger backed by a service account.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Ledger, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if len(opts) == 0 {
		var err error
		if opts, err = clientOptions(ctx, cfg); err != nil {
			return nil, err
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Invoices"
	}

	slog.InfoContext(ctx, "Google Sheets ledger ready",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", sheet)

	return &Ledger{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheet,
	}, nil
}

func clientOptions(ctx context.Context, cfg Config) ([]goption.ClientOption, error) {
	if !cfg.hasServiceAccount() && strings.TrimSpace(cfg.OAuthTokenFile) != "" {
		ts, err := oauthTokenSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return []goption.ClientOption{goption.WithTokenSource(ts)}, nil
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

// OAuthConfig parses an OAuth client (installed or web app) for the Sheets
// scope.
func OAuthConfig(clientJSON string, clientFile string) (*oauth2.Config, error) {
	b := []byte(clientJSON)
	if strings.TrimSpace(clientJSON) == "" {
		if strings.TrimSpace(clientFile) == "" {
			return nil, errors.New("missing OAuth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
		}
		var err error
		if b, err = os.ReadFile(clientFile); err != nil {
			return nil, fmt.Errorf("read OAuth client file: %w", err)
		}
	}
	conf, err := goauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client: %w", err)
	}
	return conf, nil
}

func oauthTokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	conf, err := OAuthConfig(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("open OAuth token: %w", err)
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode OAuth token %s: %w", cfg.OAuthTokenFile, err)
	}
	return conf.TokenSource(ctx, &tok), nil
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// AppendInvoice writes the invoice row and returns its A1 range. An invoice
// number already present in column A is not written twice, so redelivered
// messages stay idempotent.
func (l *Ledger) AppendInvoice(ctx context.Context, r archive.Record) (string, error) {
	if l.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	number := strings.TrimSpace(r.Document.Invoice.InvoiceNumber)
	if number == "" {
		return "", errors.New("ledger row: empty invoice number")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	numbers, err := l.readNumbers(ctx)
	if err != nil {
		return "", err
	}
	if row := findRow(numbers, number); row > 0 {
		slog.InfoContext(ctx, "Invoice already in ledger", "number", number, "row", row)
		return l.rowRange(row), nil
	}

	if len(numbers) == 0 {
		if err := l.write(ctx, 1, headerRow()); err != nil {
			return "", err
		}
		numbers = []string{ledgerHeader[0]}
	}

	nextRow := len(numbers) + 1
	if err := l.write(ctx, nextRow, ledgerRow(r)); err != nil {
		return "", err
	}
	return l.rowRange(nextRow), nil
}

func (l *Ledger) write(ctx context.Context, row int, cells []any) error {
	rng := l.rowRange(row)
	vr := &gsheet.ValueRange{Values: [][]any{cells}}
	_, err := l.svc.Spreadsheets.Values.Update(l.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// readNumbers returns column A, one entry per sheet row including the header.
func (l *Ledger) readNumbers(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", l.sheetName)
	resp, err := l.svc.Spreadsheets.Values.Get(l.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			out[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return out, nil
}

func (l *Ledger) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:I%d", l.sheetName, row, row)
}
