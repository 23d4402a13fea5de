package recolte

import (
	"time"

	"github.com/hazyhaar/recolte/chunk"
	"github.com/hazyhaar/recolte/extract"
	"github.com/hazyhaar/recolte/fetch"
)

// Config configures the acquisition service.
type Config struct {
	// Per-strategy settings.
	Browser   fetch.BrowserConfig
	Challenge fetch.ChallengeConfig
	HTTP      fetch.HTTPConfig

	// Extraction and chunking parameters.
	Extract extract.Options
	Chunk   chunk.Options

	// MinHTMLBytes is the validation threshold: shorter fetch results are
	// discarded and the next strategy runs. Default: 1000.
	MinHTMLBytes int

	// MinTextLen is the minimum extracted text length for a successful
	// record. Default: 100.
	MinTextLen int

	// StrategyDelay is the randomized pause between strategy attempts,
	// breaking up the burst pattern of back-to-back probes. Default: 2–4s.
	StrategyDelay fetch.DelayRange

	// CachePath is the SQLite acquisition cache location. Empty disables
	// caching.
	CachePath string
}

func (c *Config) defaults() {
	if c.MinHTMLBytes <= 0 {
		c.MinHTMLBytes = 1000
	}
	if c.MinTextLen <= 0 {
		c.MinTextLen = 100
	}
	if c.StrategyDelay.Max <= 0 {
		c.StrategyDelay = fetch.DelayRange{Min: 2 * time.Second, Max: 4 * time.Second}
	}
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}
