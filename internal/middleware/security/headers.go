package security

import (
	"net/http"
	"strconv"
	"strings"
)

// HeadersConfig lists the response hardening headers. Blank fields are
// skipped.
type HeadersConfig struct {
	// CSPDirectives are joined with "; " into Content-Security-Policy.
	CSPDirectives []string

	FrameOptions   string
	ReferrerPolicy string
	Permissions    string
	OpenerPolicy   string
	ResourcePolicy string
	NoSniff        bool

	// HSTSMaxAge is in seconds; zero disables HSTS. It is only sent over TLS.
	HSTSMaxAge     int
	HSTSSubdomains bool
}

// DefaultHeadersConfig lets pages load htmx from unpkg and keep inline
// styles, which the invoice layouts need for the accent colour.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSPDirectives: []string{
			"default-src 'self'",
			"script-src 'self' https://unpkg.com",
			"style-src 'self' 'unsafe-inline'",
			"img-src 'self' data:",
			"connect-src 'self'",
			"object-src 'none'",
			"frame-ancestors 'none'",
			"base-uri 'self'",
			"form-action 'self'",
		},
		FrameOptions:   "DENY",
		ReferrerPolicy: "strict-origin-when-cross-origin",
		Permissions:    "geolocation=(), microphone=(), camera=(), payment=()",
		OpenerPolicy:   "same-origin",
		ResourcePolicy: "same-origin",
		NoSniff:        true,
		HSTSMaxAge:     365 * 24 * 60 * 60,
		HSTSSubdomains: true,
	}
}

// HeadersMiddleware stamps a precomputed header set on every response.
type HeadersMiddleware struct {
	static http.Header
	hsts   string
}

func NewHeadersMiddleware(cfg HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{static: http.Header{}}
	add := func(name, value string) {
		if value != "" {
			h.static.Set(name, value)
		}
	}
	add("Content-Security-Policy", strings.Join(cfg.CSPDirectives, "; "))
	add("X-Frame-Options", cfg.FrameOptions)
	add("Referrer-Policy", cfg.ReferrerPolicy)
	add("Permissions-Policy", cfg.Permissions)
	add("Cross-Origin-Opener-Policy", cfg.OpenerPolicy)
	add("Cross-Origin-Resource-Policy", cfg.ResourcePolicy)
	if cfg.NoSniff {
		add("X-Content-Type-Options", "nosniff")
	}

	if cfg.HSTSMaxAge > 0 {
		h.hsts = "max-age=" + strconv.Itoa(cfg.HSTSMaxAge)
		if cfg.HSTSSubdomains {
			h.hsts += "; includeSubDomains"
		}
	}
	return h
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := w.Header()
		for name, values := range h.static {
			out[name] = append([]string(nil), values...)
		}
		if r.TLS != nil && h.hsts != "" {
			out.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware marks responses as publicly cacheable for maxAge
// seconds. A non-positive maxAge leaves Cache-Control alone.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	value := "public, max-age=" + strconv.Itoa(maxAge)
	return func(next http.Handler) http.Handler {
		if maxAge <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", value)
			next.ServeHTTP(w, r)
		})
	}
}
