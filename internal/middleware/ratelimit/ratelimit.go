// Package ratelimit throttles requests per client IP with a fixed one-minute
// window.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const window = time.Minute

type Config struct {
	RequestsPerMinute int
	// CleanupInterval is how often closed windows are forgotten.
	CleanupInterval time.Duration
	// Methods restricts throttling to these HTTP methods; empty means all.
	Methods []string
}

func DefaultConfig() Config {
	return Config{RequestsPerMinute: 60, CleanupInterval: 5 * time.Minute}
}

// Limiter counts requests per key inside fixed windows.
type Limiter struct {
	limit   int
	every   time.Duration
	methods map[string]struct{}
	now     func() time.Time

	mu      sync.Mutex
	windows map[string]*counter

	rejected atomic.Int64
	quit     chan struct{}
	quitOnce sync.Once
}

type counter struct {
	opened time.Time
	n      int
}

// NewLimiter returns a Limiter with a background sweeper; call Stop to end it.
func NewLimiter(cfg Config) *Limiter {
	l := newLimiter(cfg, time.Now)
	go l.sweepLoop()
	return l
}

func newLimiter(cfg Config, now func() time.Time) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	l := &Limiter{
		limit:   cfg.RequestsPerMinute,
		every:   cfg.CleanupInterval,
		methods: make(map[string]struct{}, len(cfg.Methods)),
		now:     now,
		windows: make(map[string]*counter),
		quit:    make(chan struct{}),
	}
	for _, m := range cfg.Methods {
		l.methods[m] = struct{}{}
	}
	return l
}

// Allow records one request for key. A refused request gets the time left
// until key's window closes.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.windows[key]
	if !ok || now.Sub(c.opened) >= window {
		l.windows[key] = &counter{opened: now, n: 1}
		return true, 0
	}
	if c.n < l.limit {
		c.n++
		return true, 0
	}
	l.rejected.Add(1)
	return false, window - now.Sub(c.opened)
}

func (l *Limiter) covers(method string) bool {
	if len(l.methods) == 0 {
		return true
	}
	_, ok := l.methods[method]
	return ok
}

func (l *Limiter) sweepLoop() {
	t := time.NewTicker(l.every)
	defer t.Stop()
	for {
		select {
		case <-l.quit:
			return
		case <-t.C:
			l.sweep()
		}
	}
}

// sweep forgets keys whose window has closed and returns how many it dropped.
func (l *Limiter) sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	dropped := 0
	for key, c := range l.windows {
		if now.Sub(c.opened) > window {
			delete(l.windows, key)
			dropped++
		}
	}
	return dropped
}

func (l *Limiter) Stop() {
	l.quitOnce.Do(func() { close(l.quit) })
}

// Stats is a point-in-time view of the limiter.
type Stats struct {
	Rejected int64 // requests refused since start
	Tracked  int   // keys with an open or unswept window
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	tracked := len(l.windows)
	l.mu.Unlock()
	return Stats{Rejected: l.rejected.Load(), Tracked: tracked}
}

// Middleware throttles by the key clientKey derives from each request.
// Refused requests get a Retry-After header in whole seconds and are handed
// to onLimit, or answered with a plain 429 when onLimit is nil.
func (l *Limiter) Middleware(clientKey func(*http.Request) string, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	if onLimit == nil {
		onLimit = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.covers(r.Method) {
				if ok, wait := l.Allow(clientKey(r)); !ok {
					w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(wait)))
					onLimit(w, r)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retrySeconds(d time.Duration) int {
	return max(int(d.Round(time.Second)/time.Second), 1)
}
