// Package core provides the invoice document model and its arithmetic.
//
// This file contains numeric parsing for form input and the totals
// computation shared by the preview, the archive and the CLI.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the flat rate applied to the subtotal (18% GST).
const DefaultTaxRate = 0.18

// Totals holds the derived money fields of an invoice.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// ParseNumber converts a form value to a non-negative number.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Returns ErrInvalidNumber for empty input, signs, exponents or any
// other non-digit content.
//
// Examples:
//
//	ParseNumber("20")     -> 20, nil
//	ParseNumber("6500,5") -> 6500.5, nil
//	ParseNumber("-1")     -> 0, ErrInvalidNumber
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidNumber
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidNumber
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return 0, ErrInvalidNumber
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return 0, ErrInvalidNumber
		}
	}
	normalized := intPart
	if fracPart != "" {
		normalized += "." + fracPart
	}
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, ErrInvalidNumber
	}
	return v, nil
}

// CoerceNumber is ParseNumber with the zero sentinel: malformed input
// yields 0 so the live preview never fails on a half-typed field.
func CoerceNumber(s string) float64 {
	v, err := ParseNumber(s)
	if err != nil {
		return 0
	}
	return v
}

// ComputeTotals sums quantity × unit price over items and applies rate.
// Negative, NaN or infinite operands count as zero.
func ComputeTotals(items []InvoiceItem, rate float64) Totals {
	var subtotal float64
	for _, it := range items {
		subtotal += it.LineTotal()
	}
	rate = nonNegative(rate)
	tax := subtotal * rate
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal + tax}
}

// FormatAmount renders v with exactly two decimals, rounding half away
// from zero.
func FormatAmount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatQuantity renders a quantity in its shortest form ("20", "1.5").
func FormatQuantity(v float64) string {
	return strconv.FormatFloat(nonNegative(v), 'f', -1, 64)
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
