package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/recolte/identity"
)

func testHTTPConfig() HTTPConfig {
	return HTTPConfig{
		MaxRetries:   2,
		BaseBackoff:  time.Millisecond,
		MaxBackoff:   2 * time.Millisecond,
		PreSendDelay: DelayRange{Min: time.Millisecond, Max: 2 * time.Millisecond},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestHTTPAttemptSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html><body>hello</body></html>")
	}))
	defer srv.Close()

	s := NewHTTP(testHTTPConfig())
	body, err := s.Attempt(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if !strings.Contains(body, "hello") {
		t.Fatalf("body = %q", body)
	}
}

// WHAT: every request carries the rotated browser identity.
// WHY: a default Go user agent is an instant block on guarded sites.
func TestHTTPAttemptSendsIdentityHeaders(t *testing.T) {
	id := identity.New()
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	cfg := testHTTPConfig()
	cfg.Identity = id
	s := NewHTTP(cfg)
	if _, err := s.Attempt(context.Background(), srv.URL); err != nil {
		t.Fatalf("Attempt: %v", err)
	}

	ua := got.Get("User-Agent")
	found := false
	for _, p := range id.Pool() {
		if p == ua {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("user agent %q not from the identity pool", ua)
	}
	for _, h := range []string{"Accept", "Accept-Language", "DNT", "Sec-Fetch-Mode"} {
		if got.Get(h) == "" {
			t.Errorf("header %s missing", h)
		}
	}
}

// WHAT: transient statuses are retried with backoff until the page loads.
func TestHTTPAttemptRetriesTransient(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "<html>finally</html>")
	}))
	defer srv.Close()

	s := NewHTTP(testHTTPConfig())
	body, err := s.Attempt(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if !strings.Contains(body, "finally") {
		t.Fatalf("body = %q", body)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Fatalf("attempts = %d, want 3", n)
	}
}

// WHAT: a persistently unavailable server fails after the attempt budget.
func TestHTTPAttemptExhaustsRetries(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewHTTP(testHTTPConfig())
	if _, err := s.Attempt(context.Background(), srv.URL); err == nil {
		t.Fatal("Attempt succeeded, want error")
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Fatalf("attempts = %d, want 3 (1 + 2 retries)", n)
	}
}

// WHAT: non-transient statuses fail immediately; retrying a 404 cannot help.
func TestHTTPAttemptNonRetryableStatus(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewHTTP(testHTTPConfig())
	if _, err := s.Attempt(context.Background(), srv.URL); err == nil {
		t.Fatal("Attempt succeeded, want error")
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Fatalf("attempts = %d, want 1", n)
	}
}

func TestHTTPAttemptCapsBodySize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 4096))
	}))
	defer srv.Close()

	cfg := testHTTPConfig()
	cfg.MaxBytes = 1024
	s := NewHTTP(cfg)
	body, err := s.Attempt(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if len(body) != 1024 {
		t.Fatalf("len(body) = %d, want 1024", len(body))
	}
}

func TestRetryableStatus(t *testing.T) {
	retryable := []int{429, 500, 502, 503, 504}
	for _, code := range retryable {
		if !retryableStatus(code) {
			t.Errorf("retryableStatus(%d) = false, want true", code)
		}
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 501} {
		if retryableStatus(code) {
			t.Errorf("retryableStatus(%d) = true, want false", code)
		}
	}
}

func TestDelayRangeZeroIsNoop(t *testing.T) {
	start := time.Now()
	DelayRange{}.Sleep(context.Background())
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("zero range slept %v", elapsed)
	}
}

func TestDelayRangeHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	DelayRange{Min: 5 * time.Second, Max: 10 * time.Second}.Sleep(ctx)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cancelled sleep took %v", elapsed)
	}
}
