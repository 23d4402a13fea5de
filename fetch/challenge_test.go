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
)

func testChallengeConfig() ChallengeConfig {
	return ChallengeConfig{
		ChallengeRetries: 2,
		PreSendDelay:     DelayRange{Min: time.Millisecond, Max: 2 * time.Millisecond},
		ChallengeWait:    DelayRange{Min: time.Millisecond, Max: 2 * time.Millisecond},
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

const interstitial = `<html><head><title>Just a moment...</title></head>
<body>Checking your browser before accessing the site.</body></html>`

// WHAT: an interstitial followed by real content succeeds, and the
// re-request carries the cookie the challenge response set.
// WHY: clearance cookies are the whole point of waiting the challenge out;
// losing them between requests means looping on the interstitial forever.
func TestChallengeAttemptPassesInterstitial(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			http.SetCookie(w, &http.Cookie{Name: "cf_clearance", Value: "tok-123"})
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, interstitial)
			return
		}
		c, err := r.Cookie("cf_clearance")
		if err != nil || c.Value != "tok-123" {
			t.Errorf("re-request missing clearance cookie: %v", err)
		}
		io.WriteString(w, "<html><body>real content</body></html>")
	}))
	defer srv.Close()

	s := NewChallenge(testChallengeConfig())
	body, err := s.Attempt(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if !strings.Contains(body, "real content") {
		t.Fatalf("body = %q", body)
	}
	if n := atomic.LoadInt32(&attempts); n != 2 {
		t.Fatalf("attempts = %d, want 2", n)
	}
}

// WHAT: a challenge that never clears fails after the retry budget.
func TestChallengeAttemptPersistentInterstitial(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, interstitial)
	}))
	defer srv.Close()

	s := NewChallenge(testChallengeConfig())
	if _, err := s.Attempt(context.Background(), srv.URL); err == nil {
		t.Fatal("Attempt succeeded, want error")
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Fatalf("attempts = %d, want 3 (1 + 2 retries)", n)
	}
}

// WHAT: a page served clean on the first request needs no waiting.
func TestChallengeAttemptNoInterstitial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html><body>open site</body></html>")
	}))
	defer srv.Close()

	s := NewChallenge(testChallengeConfig())
	body, err := s.Attempt(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if !strings.Contains(body, "open site") {
		t.Fatalf("body = %q", body)
	}
}

// WHAT: non-200 statuses without challenge markers are plain failures.
func TestChallengeAttemptNonChallengeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "nothing here")
	}))
	defer srv.Close()

	s := NewChallenge(testChallengeConfig())
	if _, err := s.Attempt(context.Background(), srv.URL); err == nil {
		t.Fatal("Attempt succeeded, want error")
	}
}

func TestIsChallenge(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"cloudflare 503", 503, interstitial, true},
		{"cloudflare 403", 403, "error code: 1020 Attention Required!", true},
		{"marker on 200", 200, `<script>window._cf_chl_opt = {}</script>`, true},
		{"clean 200", 200, "<html><body>article text</body></html>", false},
		{"plain 503", 503, "<html>maintenance window</html>", false},
		{"marker on 404", 404, interstitial, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := isChallenge(c.status, c.body); got != c.want {
				t.Fatalf("isChallenge(%d, ...) = %v, want %v", c.status, got, c.want)
			}
		})
	}
}
