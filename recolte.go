package recolte

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/recolte/cache"
	"github.com/hazyhaar/recolte/chunk"
	"github.com/hazyhaar/recolte/extract"
	"github.com/hazyhaar/recolte/fetch"
	"github.com/hazyhaar/recolte/identity"
	"github.com/hazyhaar/recolte/metrics"
)

// Service runs the acquisition pipeline: an ordered chain of fetch
// strategies, content extraction, and chunking. One Service is meant to
// live for the whole process; its pooled clients are reused across calls.
type Service struct {
	cfg        *Config
	log        *slog.Logger
	strategies []fetch.Strategy
	store      *cache.Store
	met        *metrics.Metrics
}

// Option adjusts a Service at construction time.
type Option func(*Service)

// WithStrategies replaces the default strategy chain. Order is priority
// order: the first strategy producing a valid document wins.
func WithStrategies(strategies ...fetch.Strategy) Option {
	return func(s *Service) { s.strategies = strategies }
}

// WithMetrics attaches Prometheus collectors to the pipeline.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.met = m }
}

// New builds a Service from cfg. A nil cfg uses defaults; a nil logger
// falls back to slog.Default(). The SQLite cache is opened when
// cfg.CachePath is set.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = defaultConfig()
	} else {
		cfg.defaults()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{cfg: cfg, log: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.strategies == nil {
		s.strategies = defaultStrategies(cfg, logger)
	}

	if cfg.CachePath != "" {
		store, err := cache.Open(cfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		s.store = store
	}
	return s, nil
}

// defaultStrategies wires the three fetch mechanisms in priority order,
// sharing one identity rotator so all strategies present the same kind
// of client.
func defaultStrategies(cfg *Config, logger *slog.Logger) []fetch.Strategy {
	id := identity.New()

	bc := cfg.Browser
	if bc.Identity == nil {
		bc.Identity = id
	}
	if bc.Logger == nil {
		bc.Logger = logger
	}

	cc := cfg.Challenge
	if cc.Identity == nil {
		cc.Identity = id
	}
	if cc.Logger == nil {
		cc.Logger = logger
	}

	hc := cfg.HTTP
	if hc.Identity == nil {
		hc.Identity = id
	}
	if hc.Logger == nil {
		hc.Logger = logger
	}

	return []fetch.Strategy{
		fetch.NewBrowser(bc),
		fetch.NewChallenge(cc),
		fetch.NewHTTP(hc),
	}
}

// stateFor maps a strategy name to the pipeline state entered when it runs.
func stateFor(name string) State {
	switch name {
	case "browser":
		return StateTryingBrowser
	case "challenge_bypass":
		return StateTryingChallengeBypass
	case "http":
		return StateTryingHTTP
	default:
		return StateNotStarted
	}
}

// Acquire fetches, extracts, and chunks the content at url. It always
// returns a complete record and a non-empty chunk list: when every
// strategy fails or the page yields too little text, the record carries
// an explanatory placeholder instead of page content. Unexpected panics
// anywhere in the pipeline are recovered and reported the same way.
func (s *Service) Acquire(ctx context.Context, url string) (rec *ContentRecord, chunks []string) {
	start := time.Now()
	log := s.log.With("url", url)

	defer func() {
		if r := recover(); r != nil {
			log.Error("acquisition panicked", "panic", r)
			rec, chunks = crawlErrorRecord(url, fmt.Errorf("%v", r))
			s.countAcquisition("crawl_error")
		}
		if s.met != nil {
			s.met.AcquisitionDuration.Observe(time.Since(start).Seconds())
			s.met.ChunksProduced.Observe(float64(len(chunks)))
		}
	}()

	normURL, normErr := NormalizeURL(url)
	if normErr != nil {
		log.Warn("url did not normalize, cache disabled for this call", "error", normErr)
	}

	if s.store != nil && normErr == nil {
		cached, err := s.store.Get(ctx, normURL)
		if err != nil {
			log.Warn("cache lookup failed", "error", err)
		} else if cached != nil {
			log.Info("serving from cache", "fetched_at", cached.FetchedAt)
			if s.met != nil {
				s.met.CacheHitsTotal.Inc()
			}
			s.countAcquisition("cache_hit")
			rec = &ContentRecord{
				Text:          cached.Text,
				Title:         cached.Title,
				Description:   cached.Description,
				PublishedDate: cached.PublishedDate,
				SourceURL:     url,
				ContentLength: cached.ContentLength,
			}
			return rec, chunk.Texts(chunk.Split(cached.Text, s.cfg.Chunk))
		}
	}

	state := StateNotStarted
	var html string
	var winner string
	for i, strat := range s.strategies {
		if i > 0 {
			s.cfg.StrategyDelay.Sleep(ctx)
		}
		state = stateFor(strat.Name())
		log.Info("attempting fetch", "strategy", strat.Name(), "state", state.String())

		body, err := strat.Attempt(ctx, url)
		if err != nil {
			log.Warn("strategy failed", "strategy", strat.Name(), "error", err)
			s.countAttempt(strat.Name(), "failed")
			continue
		}
		if len(body) < s.cfg.MinHTMLBytes {
			log.Warn("strategy returned too little markup",
				"strategy", strat.Name(), "bytes", len(body), "min", s.cfg.MinHTMLBytes)
			s.countAttempt(strat.Name(), "thin")
			continue
		}
		s.countAttempt(strat.Name(), "ok")
		html = body
		winner = strat.Name()
		break
	}

	if html == "" {
		state = StateAllFailed
		log.Warn("all strategies exhausted", "state", state.String())
		s.countAcquisition("all_failed")
		return accessErrorRecord(url)
	}

	opts := s.cfg.Extract
	if opts.SourceURL == "" {
		opts.SourceURL = url
	}
	res := extract.Extract([]byte(html), opts)

	if len(res.Text) < s.cfg.MinTextLen {
		state = StateAllFailed
		log.Warn("extracted text below threshold",
			"strategy", winner, "chars", len(res.Text), "min", s.cfg.MinTextLen, "state", state.String())
		s.countAcquisition("all_failed")
		return accessErrorRecord(url)
	}

	state = StateValidated
	rec = &ContentRecord{
		Text:          res.Text,
		Title:         res.Title,
		Description:   res.Description,
		PublishedDate: res.PublishedDate,
		SourceURL:     url,
		ContentLength: len(res.Text),
	}
	log.Info("content validated",
		"strategy", winner, "state", state.String(),
		"title", rec.Title, "chars", rec.ContentLength)
	s.countAcquisition("validated")

	if s.store != nil && normErr == nil {
		err := s.store.Put(ctx, &cache.Record{
			URL:           normURL,
			Title:         rec.Title,
			Description:   rec.Description,
			PublishedDate: rec.PublishedDate,
			Text:          rec.Text,
			ContentLength: rec.ContentLength,
		})
		if err != nil {
			log.Warn("cache store failed", "error", err)
		}
	}

	return rec, chunk.Texts(chunk.Split(rec.Text, s.cfg.Chunk))
}

// Close releases the cache handle and idle client connections. Browser
// instances are per-attempt and need no teardown here.
func (s *Service) Close() error {
	for _, strat := range s.strategies {
		if c, ok := strat.(interface{ CloseIdleConnections() }); ok {
			c.CloseIdleConnections()
		}
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func (s *Service) countAttempt(strategy, outcome string) {
	if s.met != nil {
		s.met.StrategyAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
	}
}

func (s *Service) countAcquisition(state string) {
	if s.met != nil {
		s.met.AcquisitionsTotal.WithLabelValues(state).Inc()
	}
}

// accessErrorRecord is the placeholder for pages no strategy could open
// or that yielded too little text to be worth keeping.
func accessErrorRecord(url string) (*ContentRecord, []string) {
	text := fmt.Sprintf("Unable to crawl the website: %s. The site may be blocking automated access.", url)
	rec := &ContentRecord{
		Text:          text,
		Title:         "Access Error",
		Description:   "Could not access the requested URL",
		PublishedDate: "Unknown",
		SourceURL:     url,
		ContentLength: len(text),
	}
	return rec, []string{"Unable to crawl the website. The site may be blocking automated access."}
}

// crawlErrorRecord is the placeholder for unexpected failures inside the
// pipeline itself.
func crawlErrorRecord(url string, err error) (*ContentRecord, []string) {
	text := fmt.Sprintf("Error crawling %s: %v", url, err)
	rec := &ContentRecord{
		Text:          text,
		Title:         "Crawl Error",
		Description:   "An error occurred while crawling",
		PublishedDate: "Unknown",
		SourceURL:     url,
		ContentLength: len(text),
	}
	return rec, []string{fmt.Sprintf("Error crawling website: %v", err)}
}
