package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/recolte/identity"
)

// EngineProfile describes one candidate rendering engine: which browser
// binary to launch and how. Profiles are tried strictly in order within one
// attempt; the next profile starts only after the previous one is fully
// exhausted.
type EngineProfile struct {
	// Name identifies the engine in logs.
	Name string
	// Bin is the browser binary path. Empty means Rod's managed Chromium.
	Bin string
}

// defaultEngines returns the two candidate profiles: Rod's managed
// Chromium, then whatever Chrome/Chromium/Edge the host system provides.
func defaultEngines() []EngineProfile {
	engines := []EngineProfile{{Name: "chromium"}}
	if bin, ok := launcher.LookPath(); ok {
		engines = append(engines, EngineProfile{Name: "system-browser", Bin: bin})
	}
	return engines
}

// BrowserConfig configures the browser-automation strategy.
type BrowserConfig struct {
	// Engines are the candidate rendering engines, in priority order.
	// Default: managed Chromium, then the system browser if present.
	Engines []EngineProfile
	// NavTimeout bounds navigation up to DOM-ready. Default: 60s.
	NavTimeout time.Duration
	// PreNavDelay is the randomized pause before navigating. Default: 1–3s.
	PreNavDelay DelayRange
	// PostNavDelay is the randomized pause after DOM-ready. Default: 2–5s.
	PostNavDelay DelayRange
	// ScrollDelay is the pause after the half-page scroll. Default: 1–2s.
	ScrollDelay DelayRange
	// Identity supplies the user agent and extra headers. Default: identity.New().
	Identity *identity.Rotator
	Logger   *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if len(c.Engines) == 0 {
		c.Engines = defaultEngines()
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 60 * time.Second
	}
	if c.PreNavDelay.Max <= 0 {
		c.PreNavDelay = DelayRange{Min: time.Second, Max: 3 * time.Second}
	}
	if c.PostNavDelay.Max <= 0 {
		c.PostNavDelay = DelayRange{Min: 2 * time.Second, Max: 5 * time.Second}
	}
	if c.ScrollDelay.Max <= 0 {
		c.ScrollDelay = DelayRange{Min: time.Second, Max: 2 * time.Second}
	}
	if c.Identity == nil {
		c.Identity = identity.New()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// BrowserStrategy fetches pages by driving a real rendering engine. It is
// the only strategy that renders JavaScript, so it goes first against
// hardened sites despite being the most expensive.
//
// Each Attempt launches an isolated browser instance and closes it on every
// exit path; nothing is shared between invocations, so concurrent attempts
// only contend for host resources.
type BrowserStrategy struct {
	cfg BrowserConfig
}

// NewBrowser creates the browser-automation strategy.
func NewBrowser(cfg BrowserConfig) *BrowserStrategy {
	cfg.defaults()
	return &BrowserStrategy{cfg: cfg}
}

// Name implements Strategy.
func (s *BrowserStrategy) Name() string { return "browser" }

// Attempt implements Strategy. Engine profiles run sequentially; a
// per-engine failure is logged at Warn and the next profile starts. Only
// when every engine has failed does the strategy itself fail.
func (s *BrowserStrategy) Attempt(ctx context.Context, url string) (string, error) {
	log := s.cfg.Logger.With("strategy", s.Name(), "url", url)

	var lastErr error
	for _, eng := range s.cfg.Engines {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		html, err := s.attemptEngine(ctx, eng, url)
		if err != nil {
			log.Warn("engine attempt failed", "engine", eng.Name, "error", err)
			lastErr = err
			continue
		}
		return html, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no rendering engines configured")
	}
	return "", fmt.Errorf("all engines failed: %w", lastErr)
}

func (s *BrowserStrategy) attemptEngine(ctx context.Context, eng EngineProfile, url string) (html string, err error) {
	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-accelerated-2d-canvas").
		Set("disable-features", "VizDisplayCompositor").
		Set("no-first-run")
	if eng.Bin != "" {
		l = l.Bin(eng.Bin)
	}

	wsURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch %s: %w", eng.Name, err)
	}
	defer l.Cleanup()

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return "", fmt.Errorf("connect %s: %w", eng.Name, err)
	}
	defer b.Close()

	page, err := stealth.Page(b)
	if err != nil {
		return "", fmt.Errorf("stealth page: %w", err)
	}
	defer page.Close()

	if err := s.disguise(page); err != nil {
		return "", err
	}

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
	defer cancel()
	nav := page.Context(navCtx)

	s.cfg.PreNavDelay.Sleep(ctx)

	// Wait only for DOM-ready: full load stalls on ad and tracker
	// subresources that contribute nothing to the extracted text.
	wait := nav.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := nav.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	wait()

	s.cfg.PostNavDelay.Sleep(ctx)

	// Half-page scroll: headless sessions that never scroll are a tell,
	// and lazy-loaded content often only mounts on scroll.
	if _, err := nav.Eval(`() => window.scrollTo(0, document.body.scrollHeight / 2)`); err != nil {
		s.cfg.Logger.Debug("scroll failed", "engine", eng.Name, "error", err)
	}
	s.cfg.ScrollDelay.Sleep(ctx)

	res, err := nav.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("capture html: %w", err)
	}
	return res.Value.Str(), nil
}

// disguise randomizes the browsing context (viewport, locale, timezone,
// headers) and injects the fingerprint scrub on top of the stealth page's
// own patches.
func (s *BrowserStrategy) disguise(page *rod.Page) error {
	vp := randomViewport()
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.w,
		Height:            vp.h,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}

	if err := (proto.EmulationSetTimezoneOverride{TimezoneID: randomTimezone()}).Call(page); err != nil {
		s.cfg.Logger.Debug("timezone override failed", "error", err)
	}
	if err := (proto.EmulationSetLocaleOverride{Locale: "en-US"}).Call(page); err != nil {
		s.cfg.Logger.Debug("locale override failed", "error", err)
	}

	headers := s.cfg.Identity.Headers()
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      headers.Get("User-Agent"),
		AcceptLanguage: headers.Get("Accept-Language"),
	}); err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}

	var extra []string
	for _, k := range []string{"DNT", "Sec-Fetch-Dest", "Sec-Fetch-Mode", "Sec-Fetch-Site", "Upgrade-Insecure-Requests"} {
		extra = append(extra, k, headers.Get(k))
	}
	if _, err := page.SetExtraHeaders(extra); err != nil {
		return fmt.Errorf("set headers: %w", err)
	}

	if _, err := page.EvalOnNewDocument(fingerprintScrubJS); err != nil {
		return fmt.Errorf("inject scrub script: %w", err)
	}
	return nil
}

// fingerprintScrubJS removes the automation traces headless-detection
// probes look for, beyond what the stealth page patches.
const fingerprintScrubJS = `
	Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
	window.chrome = window.chrome || { runtime: {} };
	Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
	Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
	const originalQuery = window.navigator.permissions && window.navigator.permissions.query;
	if (originalQuery) {
		window.navigator.permissions.query = (parameters) => (
			parameters.name === 'notifications'
				? Promise.resolve({ state: Notification.permission })
				: originalQuery(parameters)
		);
	}
	delete window.cdc_adoQpoasnfa76pfcZLmcfl_Array;
	delete window.cdc_adoQpoasnfa76pfcZLmcfl_Promise;
	delete window.cdc_adoQpoasnfa76pfcZLmcfl_Symbol;
`

type viewport struct{ w, h int }

// commonViewports are the most frequent desktop resolutions; a jittered
// pick from these blends in better than a fixed 1920×1080.
var commonViewports = []viewport{
	{1920, 1080},
	{1536, 864},
	{1440, 900},
	{1366, 768},
}

func randomViewport() viewport {
	vp := commonViewports[rand.IntN(len(commonViewports))]
	// Small jitter so no two contexts are pixel-identical.
	vp.w -= rand.IntN(16)
	vp.h -= rand.IntN(16)
	return vp
}

var commonTimezones = []string{
	"America/New_York",
	"America/Chicago",
	"America/Los_Angeles",
	"Europe/London",
	"Europe/Paris",
}

func randomTimezone() string {
	return commonTimezones[rand.IntN(len(commonTimezones))]
}
