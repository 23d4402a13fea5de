package identity

import (
	"strings"
	"testing"
)

func TestHeaders_FixedFields(t *testing.T) {
	// WHAT: Every generated header set carries the full navigation header block.
	// WHY: Missing Sec-Fetch or Accept values are an easy bot tell.
	r := New()
	h := r.Headers()

	fixed := map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Accept-Encoding":           "gzip, deflate, br",
		"DNT":                       "1",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Cache-Control":             "max-age=0",
	}
	for k, want := range fixed {
		if got := h.Get(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestHeaders_UserAgentFromPool(t *testing.T) {
	r := New()
	pool := make(map[string]bool, len(r.Pool()))
	for _, ua := range r.Pool() {
		pool[ua] = true
	}
	for i := 0; i < 50; i++ {
		ua := r.Headers().Get("User-Agent")
		if !pool[ua] {
			t.Fatalf("user agent not from pool: %q", ua)
		}
		if !strings.HasPrefix(ua, "Mozilla/5.0") {
			t.Fatalf("implausible user agent: %q", ua)
		}
	}
}

func TestUserAgent_Rotates(t *testing.T) {
	// WHAT: Repeated draws eventually produce more than one user agent.
	// WHY: A constant identity defeats the rotator's purpose.
	r := New()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		seen[r.UserAgent()] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected rotation across draws, got %d distinct agents", len(seen))
	}
}

func TestNewWithPool_Custom(t *testing.T) {
	r := NewWithPool([]string{"agent-a"})
	if ua := r.UserAgent(); ua != "agent-a" {
		t.Errorf("got %q, want agent-a", ua)
	}
	// Empty pool falls back to defaults.
	r = NewWithPool(nil)
	if len(r.Pool()) == 0 {
		t.Error("empty pool should fall back to defaults")
	}
}
