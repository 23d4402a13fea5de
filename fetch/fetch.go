// Package fetch implements the fallback chain of page-fetch strategies.
//
// Three strategies share one contract: given a URL, return the raw HTML or
// an error. Failures are always local — the orchestrator advances to the
// next strategy, it never sees a panic or a fatal condition from here.
//
//   - HTTPStrategy:      pooled plain HTTP client, retry/backoff on
//     transient status codes.
//   - ChallengeStrategy:  HTTP client with a browser TLS fingerprint and a
//     cookie jar, able to sit out common CDN JavaScript-challenge
//     interstitials.
//   - BrowserStrategy:    headless browser rendering via Rod with stealth
//     fingerprint scrubbing, two engine profiles tried in order.
package fetch

import (
	"context"
	"math/rand/v2"
	"time"
)

// Strategy is one concrete mechanism for retrieving raw HTML for a URL.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string
	// Attempt fetches the page and returns its raw HTML. Any failure
	// (timeout, bad status, engine crash) is returned as an error and is
	// recoverable: the caller advances to the next strategy.
	Attempt(ctx context.Context, url string) (string, error)
}

// DelayRange is a randomized pause bounded by [Min, Max]. Strategies insert
// these before sending and between attempts so request timing does not form
// a machine-regular pattern. A zero range is a no-op, which is how tests
// switch the pauses off.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Sleep pauses for a random duration within the range, returning early if
// the context is cancelled.
func (d DelayRange) Sleep(ctx context.Context) {
	wait := d.pick()
	if wait <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

func (d DelayRange) pick() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + rand.N(d.Max-d.Min)
}
