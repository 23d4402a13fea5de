// Package identity produces randomized, realistic browser identity headers.
//
// Every fetch strategy draws a fresh identity per attempt so repeated
// requests to the same host do not share an obvious fingerprint. The
// rotator is stateless apart from its user-agent pool and is safe for
// concurrent use.
package identity

import (
	"math/rand/v2"
	"net/http"
)

// defaultPool covers current desktop builds of the major browsers across
// Windows, macOS and Linux. Keep versions recent: dated user agents are a
// bot signal on their own.
var defaultPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:141.0) Gecko/20100101 Firefox/141.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:140.0) Gecko/20100101 Firefox/140.0",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:141.0) Gecko/20100101 Firefox/141.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.5 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36 Edg/139.0.0.0",
}

// Rotator generates per-attempt browser identities.
type Rotator struct {
	pool []string
}

// New creates a Rotator with the default user-agent pool.
func New() *Rotator {
	return &Rotator{pool: defaultPool}
}

// NewWithPool creates a Rotator with a custom user-agent pool.
// An empty pool falls back to the default.
func NewWithPool(pool []string) *Rotator {
	if len(pool) == 0 {
		pool = defaultPool
	}
	return &Rotator{pool: pool}
}

// UserAgent returns one user agent drawn at random from the pool.
func (r *Rotator) UserAgent() string {
	return r.pool[rand.IntN(len(r.pool))]
}

// Headers returns a full header set for one attempt: a random user agent
// plus the fixed Accept/Sec-Fetch values a real navigation request carries.
//
// Accept-Encoding is included for completeness. HTTP strategies that rely
// on Go's transport-level decompression should strip it before sending
// (a manually set Accept-Encoding disables transparent gzip decoding).
func (r *Rotator) Headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", r.UserAgent())
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("DNT", "1")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Cache-Control", "max-age=0")
	return h
}

// Pool returns the user-agent pool (for tests and diagnostics).
func (r *Rotator) Pool() []string {
	return r.pool
}
