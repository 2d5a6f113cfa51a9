package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var epoch = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time       { return c.t }
func (c *stepClock) step(d time.Duration) { c.t = c.t.Add(d) }
func newClock() *stepClock                { return &stepClock{t: epoch} }

func TestAllowWindow(t *testing.T) {
	clk := newClock()
	l := newLimiter(Config{RequestsPerMinute: 2}, clk.now)

	if ok, _ := l.Allow("192.0.2.1"); !ok {
		t.Fatal("first request refused")
	}
	if ok, _ := l.Allow("192.0.2.1"); !ok {
		t.Fatal("second request refused")
	}

	clk.step(15 * time.Second)
	ok, wait := l.Allow("192.0.2.1")
	if ok || wait != 45*time.Second {
		t.Fatalf("over limit: ok=%v wait=%v, want refused with 45s", ok, wait)
	}
	if ok, _ := l.Allow("192.0.2.2"); !ok {
		t.Error("a second client shares the first client's budget")
	}

	clk.step(45 * time.Second)
	if ok, _ := l.Allow("192.0.2.1"); !ok {
		t.Error("window did not reset after a minute")
	}

	if s := l.Stats(); s.Rejected != 1 || s.Tracked != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestSweepDropsClosedWindows(t *testing.T) {
	clk := newClock()
	l := newLimiter(Config{}, clk.now)
	l.Allow("old")
	clk.step(2 * time.Minute)
	l.Allow("new")

	if n := l.sweep(); n != 1 {
		t.Errorf("sweep dropped %d, want 1", n)
	}
	if l.Stats().Tracked != 1 {
		t.Error("open window was swept")
	}
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	byIP := func(*http.Request) string { return "192.0.2.1" }

	t.Run("only configured methods", func(t *testing.T) {
		l := newLimiter(Config{RequestsPerMinute: 1, Methods: []string{http.MethodPost}}, newClock().now)
		h := l.Middleware(byIP, nil)(ok)

		codes := make([]int, 0, 4)
		for _, method := range []string{http.MethodGet, http.MethodGet, http.MethodPost, http.MethodPost} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(method, "/invoices", nil))
			codes = append(codes, rec.Code)
			if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "60" {
				t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
			}
		}
		want := []int{200, 200, 200, 429}
		for i := range want {
			if codes[i] != want[i] {
				t.Fatalf("codes = %v, want %v", codes, want)
			}
		}
	})

	t.Run("custom rejection", func(t *testing.T) {
		l := newLimiter(Config{RequestsPerMinute: 1}, newClock().now)
		h := l.Middleware(byIP, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})(ok)

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusTeapot {
			t.Errorf("code = %d, want custom handler's 418", rec.Code)
		}
	})
}

func TestRetrySeconds(t *testing.T) {
	for d, want := range map[time.Duration]int{
		0:                       1,
		300 * time.Millisecond:  1,
		1600 * time.Millisecond: 2,
		45 * time.Second:        45,
	} {
		if got := retrySeconds(d); got != want {
			t.Errorf("retrySeconds(%v) = %d, want %d", d, got, want)
		}
	}
}

func TestStopTwice(t *testing.T) {
	l := NewLimiter(DefaultConfig())
	l.Stop()
	l.Stop()
}
