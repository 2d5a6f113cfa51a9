package http

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"invoicepilot/internal/core"
)

// formatMoney prefixes a two-decimal amount with the currency symbol.
func formatMoney(currency string, v float64) string {
	return currency + core.FormatAmount(v)
}

// formatTimestamp renders archive timestamps for the dashboard.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// normalizeNewlines turns textarea CRLF line breaks into LF.
func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// newSessionID returns an opaque draft session key.
func newSessionID() string {
	return uuid.NewString()
}

// validSessionID rejects cookies that could not have been issued here.
func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
