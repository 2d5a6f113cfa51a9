// Package http serves the invoice editor: full pages, htmx fragments for the
// draft workflow, and the archive views.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"invoicepilot/internal/archive"
	"invoicepilot/internal/cache"
	"invoicepilot/internal/config"
	"invoicepilot/internal/editor"
	"invoicepilot/internal/log"
	"invoicepilot/internal/middleware/ratelimit"
	"invoicepilot/internal/middleware/security"
	"invoicepilot/internal/middleware/trace"
	"invoicepilot/internal/profile"
	"invoicepilot/internal/render"
	"invoicepilot/internal/suggest"
	appweb "invoicepilot/web"
)

const (
	sessionCookie     = "invoicepilot_draft"
	recentInvoices    = 20
	readyTimeout      = 5 * time.Second
	postRatePerMinute = 60
	staticMaxAge      = 3600
)

// Deps are the collaborators of the web layer. Archive, Renderer and
// Profile are required.
type Deps struct {
	Archive   archive.Archive
	Ready     func(ctx context.Context) error
	Renderer  *render.Renderer
	Suggester suggest.Suggester
	Profile   *profile.Store
	Logger    *log.Logger
	Now       func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	cfg       *config.Config
	archive   archive.Archive
	ready     func(ctx context.Context) error
	renderer  *render.Renderer
	suggester suggest.Suggester
	profile   *profile.Store
	logger    *log.Logger
	requests  *log.StructuredLogger
	now       func() time.Time
	startedAt time.Time

	// Draft sessions keyed by cookie, expiring after SessionTTL of inactivity.
	sessions *cache.LRUCache[*editor.Session]

	detector       *security.Detector
	tracer         *trace.Middleware
	limiter        *ratelimit.Limiter
	suggestLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Archive == nil || deps.Renderer == nil || deps.Profile == nil {
		return nil, errors.New("http server: archive, renderer and profile are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	suggester := deps.Suggester
	if suggester == nil {
		suggester = suggest.NewClient(suggest.Config{}, logger)
	}

	s := &Server{
		cfg:       cfg,
		archive:   deps.Archive,
		ready:     deps.Ready,
		renderer:  deps.Renderer,
		suggester: suggester,
		profile:   deps.Profile,
		logger:    logger.WithComponent(log.ComponentHTTP),
		requests:  log.NewStructuredLogger(logger),
		now:       now,
		startedAt: now(),
		sessions:  cache.NewSessionCache[*editor.Session](cfg.MaxSessions, cfg.SessionTTL),
	}
	s.sessions.OnEvict(func(key string, _ *editor.Session) {
		s.logger.Debug("Draft session evicted", log.FieldSessionID, key)
	})

	t, err := template.New("web").Funcs(template.FuncMap{
		"lower": strings.ToLower,
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse web templates: %w", err)
	}
	s.templates = t

	s.detector = security.NewDetector(logger)
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: postRatePerMinute,
		CleanupInterval:   5 * time.Minute,
		Methods:           []string{http.MethodPost},
	})
	s.suggestLimiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.SuggestRatePerMinute,
		CleanupInterval:   5 * time.Minute,
	})

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		return nil, err
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited)(handler)
	handler = headers.Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.SuggestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount embedded static FS: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	mux.HandleFunc("GET /static/invoice.css", s.handleInvoiceStylesheet)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /invoices/new", s.handleNewInvoice)
	mux.HandleFunc("GET /invoices/{id}", s.handleViewInvoice)
	mux.HandleFunc("GET /invoices/{id}/print", s.handlePrintInvoice)
	mux.HandleFunc("POST /invoices/{id}/paid", s.handleMarkPaid)
	mux.HandleFunc("POST /invoices/{id}/reopen", s.handleReopen)

	mux.HandleFunc("GET /draft", s.handleEditor)
	mux.HandleFunc("POST /draft/fields", s.handleDraftFields)
	mux.HandleFunc("POST /draft/items", s.handleAddItem)
	mux.HandleFunc("POST /draft/items/{id}", s.handleUpdateItem)
	mux.HandleFunc("POST /draft/items/{id}/delete", s.handleRemoveItem)
	mux.HandleFunc("POST /draft/template", s.handleTemplate)
	mux.Handle("POST /draft/suggest", s.throttleSuggest(s.handleSuggest))
	mux.Handle("POST /draft/suggest-template", s.throttleSuggest(s.handleSuggestTemplate))
	mux.HandleFunc("POST /draft/save", s.handleSave)
	mux.HandleFunc("GET /draft/print", s.handlePrintDraft)

	mux.HandleFunc("GET /profile", s.handleProfile)
	mux.HandleFunc("POST /profile", s.handleUpdateProfile)

	mux.HandleFunc("/", s.handleNotFound)
	return nil
}

// Sessions exposes the draft session cache so its expired entries can be
// swept by a cache.Manager.
func (s *Server) Sessions() *cache.LRUCache[*editor.Session] {
	return s.sessions
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.suggestLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) throttleSuggest(h http.HandlerFunc) http.Handler {
	return s.suggestLimiter.Middleware(s.detector.ExtractClientIP, s.rateLimited)(h)
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError("Too many requests. Please wait a moment and try again.").Write(w)
}

// draft returns the editor session bound to the request cookie, creating
// one (and the cookie) when missing or expired.
func (s *Server) draft(w http.ResponseWriter, r *http.Request) *editor.Session {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil && validSessionID(c.Value) {
		id = c.Value
	}
	if id == "" {
		id = newSessionID()
	}
	sess, created := s.sessions.GetOrCreate(id, func() *editor.Session { return s.newDraft(id) })
	if created {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Draft session started", log.FieldSessionID, id)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

func (s *Server) newDraft(id string) *editor.Session {
	sess := editor.New(
		editor.WithClock(s.now),
		editor.WithTaxRate(s.cfg.TaxRate),
		editor.WithBusiness(s.profile.Get),
		editor.WithAccent(s.cfg.DefaultAccent),
	)
	logger := s.logger.WithComponent(log.ComponentEditor).With(log.FieldSessionID, id)
	sess.Subscribe(func(u editor.Update) {
		inv := u.Document.Invoice
		logger.Debug("Draft updated",
			log.FieldRevision, u.Revision,
			log.FieldInvoiceNumber, inv.InvoiceNumber,
			log.FieldItemCount, len(inv.Items),
			log.FieldTotal, inv.Total,
			log.FieldVariant, string(u.Variant))
	})
	return sess
}

func (s *Server) clientDefaults() editor.ClientDefaults {
	return editor.ClientDefaults{Name: s.cfg.SuggestClientName, Email: s.cfg.SuggestClientEmail}
}

// suggestionsEnabled hides the suggestion controls when the client has no
// service configured. Other Suggester implementations are assumed live.
func (s *Server) suggestionsEnabled() bool {
	if e, ok := s.suggester.(interface{ Enabled() bool }); ok {
		return e.Enabled()
	}
	return true
}

func (s *Server) money(v float64) string {
	return formatMoney(s.cfg.CurrencySymbol, v)
}

// execute renders a named template to a string.
func (s *Server) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// renderPage writes a full page or partial with the given status.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	html, err := s.execute(name, data)
	if err != nil {
		s.requests.LogError(r.Context(), "Template execution failed", err, log.ComponentHTTP, log.OpRender,
			log.NewFields().WithRequestID(trace.GetRequestID(r.Context())))
		InternalServerError("Something went wrong while rendering this page").Write(w)
		return
	}
	NewHTMXResponse().Status(status).BodyHTML(html).Write(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.renderPage(w, r, status, "error", errorView{
		pageData: pageData{Title: http.StatusText(status)},
		Status:   status,
		Message:  message,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}

// isHTMX reports whether the request came from htmx rather than a plain
// form submit or link.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// validationMessage turns a sentinel validation error into a sentence.
func validationMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return "Invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}
