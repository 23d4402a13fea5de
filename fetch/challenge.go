package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/hazyhaar/recolte/identity"
)

// ChallengeConfig configures the challenge-bypass strategy.
type ChallengeConfig struct {
	// Timeout bounds one request. Default: 30s.
	Timeout time.Duration
	// MaxBytes caps the response body size. Default: 10MB.
	MaxBytes int64
	// ChallengeRetries is how many times a detected interstitial is waited
	// out and re-requested with the accumulated cookies. Default: 2.
	ChallengeRetries int
	// PreSendDelay is the randomized pause before the first request.
	// Default: 1–3s.
	PreSendDelay DelayRange
	// ChallengeWait is the pause before re-requesting after an
	// interstitial; CDN challenge pages refuse clients that return in
	// under their grace period. Default: 4–6s.
	ChallengeWait DelayRange
	// Identity supplies per-attempt browser headers. Default: identity.New().
	Identity *identity.Rotator
	Logger   *slog.Logger
}

func (c *ChallengeConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.ChallengeRetries <= 0 {
		c.ChallengeRetries = 2
	}
	if c.PreSendDelay.Max <= 0 {
		c.PreSendDelay = DelayRange{Min: time.Second, Max: 3 * time.Second}
	}
	if c.ChallengeWait.Max <= 0 {
		c.ChallengeWait = DelayRange{Min: 4 * time.Second, Max: 6 * time.Second}
	}
	if c.Identity == nil {
		c.Identity = identity.New()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ChallengeStrategy fetches pages through a client that looks like a real
// browser at the TLS layer and keeps a cookie jar across requests, which is
// what common CDN JavaScript-challenge interstitials check before letting
// the real content through.
//
// The client (and its jar) is process-lifetime and safe for concurrent
// reuse; construct one ChallengeStrategy per process and inject it.
type ChallengeStrategy struct {
	client *http.Client
	cfg    ChallengeConfig
}

// NewChallenge creates the challenge-bypass strategy.
func NewChallenge(cfg ChallengeConfig) *ChallengeStrategy {
	cfg.defaults()
	jar, _ := cookiejar.New(nil) // only errors on a nil PublicSuffixList option
	return &ChallengeStrategy{
		client: &http.Client{
			Transport: newFingerprintTransport(),
			Jar:       jar,
			Timeout:   cfg.Timeout,
		},
		cfg: cfg,
	}
}

// Name implements Strategy.
func (s *ChallengeStrategy) Name() string { return "challenge_bypass" }

// Attempt implements Strategy. A detected interstitial is waited out and the
// URL re-requested with the clearance cookies the challenge response set;
// after ChallengeRetries the interstitial itself counts as a failure.
func (s *ChallengeStrategy) Attempt(ctx context.Context, url string) (string, error) {
	s.cfg.PreSendDelay.Sleep(ctx)

	log := s.cfg.Logger.With("strategy", s.Name(), "url", url)

	for attempt := 0; ; attempt++ {
		status, body, err := s.get(ctx, url)
		if err != nil {
			return "", err
		}

		if challenged := isChallenge(status, body); challenged {
			if attempt >= s.cfg.ChallengeRetries {
				return "", fmt.Errorf("challenge interstitial persisted after %d retries (status %d)", attempt, status)
			}
			log.Debug("challenge interstitial detected, waiting before re-request",
				"status", status, "attempt", attempt+1)
			s.cfg.ChallengeWait.Sleep(ctx)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}

		if status != http.StatusOK {
			return "", fmt.Errorf("http status %d", status)
		}
		return body, nil
	}
}

func (s *ChallengeStrategy) get(ctx context.Context, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("new request: %w", err)
	}
	for k, vs := range s.cfg.Identity.Headers() {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	// No transparent decompression on the fingerprint transport; request
	// identity encoding instead of advertising one we cannot decode.
	req.Header.Del("Accept-Encoding")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBytes))
	if err != nil {
		return 0, "", fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, string(body), nil
}

// challengeMarkers are body substrings of the common CDN interstitials.
var challengeMarkers = []string{
	"Just a moment",
	"_cf_chl_opt",
	"challenge-platform",
	"cf-browser-verification",
	"Checking your browser",
	"Attention Required!",
}

// isChallenge reports whether a response is a JavaScript-challenge
// interstitial rather than real content.
func isChallenge(status int, body string) bool {
	if status != http.StatusForbidden && status != http.StatusServiceUnavailable && status != http.StatusOK {
		return false
	}
	for _, m := range challengeMarkers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}

// CloseIdleConnections releases the plain-HTTP fallback pool. The
// fingerprint path holds no idle connections by construction.
func (s *ChallengeStrategy) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}
