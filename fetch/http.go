package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/hazyhaar/recolte/identity"
)

// HTTPConfig configures the plain HTTP strategy.
type HTTPConfig struct {
	// Timeout bounds one request including retries' bodies. Default: 30s.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt
	// (3 attempts total by default). Default: 2.
	MaxRetries int
	// BaseBackoff is the initial retry wait, doubled per attempt. Default: 1s.
	BaseBackoff time.Duration
	// MaxBackoff caps the backoff growth. Default: 8s.
	MaxBackoff time.Duration
	// MaxBytes caps the response body size. Default: 10MB.
	MaxBytes int64
	// PreSendDelay is the randomized pause before sending. Default: 1–3s.
	PreSendDelay DelayRange
	// Identity supplies per-attempt browser headers. Default: identity.New().
	Identity *identity.Rotator
	Logger   *slog.Logger
}

func (c *HTTPConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 8 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.PreSendDelay.Max <= 0 {
		c.PreSendDelay = DelayRange{Min: time.Second, Max: 3 * time.Second}
	}
	if c.Identity == nil {
		c.Identity = identity.New()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// HTTPStrategy fetches pages with a pooled plain HTTP client.
//
// The client and retry executor are built once and are safe for concurrent
// reuse; construct one HTTPStrategy per process and inject it.
type HTTPStrategy struct {
	client *http.Client
	exec   failsafe.Executor[*http.Response]
	cfg    HTTPConfig
}

// retryableStatus lists the transient statuses worth a delayed re-request.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// NewHTTP creates the HTTP strategy.
func NewHTTP(cfg HTTPConfig) *HTTPStrategy {
	cfg.defaults()

	retry := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && retryableStatus(resp.StatusCode)
		}).
		WithBackoff(cfg.BaseBackoff, cfg.MaxBackoff).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		Build()

	return &HTTPStrategy{
		client: &http.Client{Timeout: cfg.Timeout},
		exec:   failsafe.With(retry),
		cfg:    cfg,
	}
}

// Name implements Strategy.
func (s *HTTPStrategy) Name() string { return "http" }

// Attempt implements Strategy. Non-200 terminal statuses, timeouts and
// connection errors all come back as plain errors.
func (s *HTTPStrategy) Attempt(ctx context.Context, url string) (string, error) {
	s.cfg.PreSendDelay.Sleep(ctx)

	headers := s.cfg.Identity.Headers()
	// The transport negotiates compression itself and decodes the body
	// transparently only when it set the header.
	headers.Del("Accept-Encoding")

	resp, err := s.exec.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Set(k, v)
			}
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		if retryableStatus(resp.StatusCode) {
			// Drain so the retried request can reuse the connection.
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
		}
		return resp, nil
	})
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// CloseIdleConnections releases pooled connections. Call from long-running
// services at shutdown; short-lived processes can skip it.
func (s *HTTPStrategy) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}
