package core

import (
	"regexp"
	"strings"
)

// Variant selects one of the invoice layouts.
type Variant string

const (
	Modern   Variant = "modern"
	Classic  Variant = "classic"
	Creative Variant = "creative"
)

// DefaultVariant is used for unknown or empty variant names.
const DefaultVariant = Modern

// DefaultAccent is the brand orange.
const DefaultAccent = "#d96a21"

// AccentSwatches are the preset colors offered by the editor.
var AccentSwatches = []string{"#d96a21", "#f0d960", "#3b82f6", "#10b981", "#8b5cf6", "#000000"}

// Variants lists the layouts in display order.
func Variants() []Variant {
	return []Variant{Modern, Classic, Creative}
}

func (v Variant) IsValid() bool {
	switch v {
	case Modern, Classic, Creative:
		return true
	}
	return false
}

// Label returns the human readable name.
func (v Variant) Label() string {
	switch v {
	case Classic:
		return "Classic"
	case Creative:
		return "Creative"
	default:
		return "Modern"
	}
}

// ParseVariant maps a variant name to a Variant, falling back to
// DefaultVariant.
func ParseVariant(s string) Variant {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	if v.IsValid() {
		return v
	}
	return DefaultVariant
}

var (
	hexColor   = regexp.MustCompile(`^#(?:[0-9a-f]{3}|[0-9a-f]{4}|[0-9a-f]{6}|[0-9a-f]{8})$`)
	funcColor  = regexp.MustCompile(`^(?:rgb|rgba|hsl|hsla)\([0-9.,%\s]+\)$`)
	namedColor = regexp.MustCompile(`^[a-z]{3,20}$`)
)

// NormalizeAccent lowercases a CSS color and returns DefaultAccent for
// anything that is not a hex, rgb()/hsl() or named color. The result is
// safe to interpolate into a style attribute.
func NormalizeAccent(s string) string {
	c := strings.ToLower(strings.TrimSpace(s))
	if hexColor.MatchString(c) || funcColor.MatchString(c) || namedColor.MatchString(c) {
		return c
	}
	return DefaultAccent
}
