// Package trace tags each request with an id and logs its start and end.
package trace

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"invoicepilot/internal/log"
)

// RequestIDHeader is accepted from clients when well formed and always set
// on the response.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

var acceptableID = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// Middleware logs requests and keeps running counters.
type Middleware struct {
	clientIP func(*http.Request) string
	base     *log.Logger
	access   *log.StructuredLogger

	served   atomic.Int64
	failed   atomic.Int64
	busyTime atomic.Int64 // microseconds
}

// Metrics summarises the requests seen so far.
type Metrics struct {
	TotalRequests       int64
	ServerErrors        int64
	AverageResponseTime time.Duration
}

// NewMiddleware wires request logging. clientIP may be nil.
func NewMiddleware(logger *log.Logger, clientIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if clientIP == nil {
		clientIP = func(*http.Request) string { return "" }
	}
	return &Middleware{
		clientIP: clientIP,
		base:     logger.WithComponent(log.ComponentTrace),
		access:   log.NewStructuredLogger(logger),
	}
}

// Middleware stores the request id and a request-scoped logger in the
// context; handlers read them with GetRequestID and log.FromContext.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		ip := m.clientIP(r)

		id := r.Header.Get(RequestIDHeader)
		if !acceptableID.MatchString(id) {
			id = GenerateRequestID()
		}
		w.Header().Set(RequestIDHeader, id)

		scoped := m.base.With(log.FieldRequestID, id).WithComponent(log.ComponentHTTP)
		ctx := log.NewContext(context.WithValue(r.Context(), requestIDKey{}, id), scoped)
		r = r.WithContext(ctx)

		m.access.LogHTTPStart(ctx, r, ip)
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		elapsed := time.Since(began)
		m.served.Add(1)
		m.busyTime.Add(elapsed.Microseconds())
		if sw.status() >= http.StatusInternalServerError {
			m.failed.Add(1)
		}
		m.access.LogHTTPEnd(ctx, r, sw.status(), elapsed.Milliseconds(), ip)
	})
}

// statusWriter remembers the first status code written.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// GenerateRequestID returns a fresh "req_"-prefixed id.
func GenerateRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (m *Middleware) GetMetrics() Metrics {
	out := Metrics{TotalRequests: m.served.Load(), ServerErrors: m.failed.Load()}
	if out.TotalRequests > 0 {
		out.AverageResponseTime = time.Duration(m.busyTime.Load()/out.TotalRequests) * time.Microsecond
	}
	return out
}
