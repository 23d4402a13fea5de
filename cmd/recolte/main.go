// Command recolte serves the content acquisition pipeline over HTTP: one
// crawl endpoint plus health and metrics.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/recolte"
	"github.com/hazyhaar/recolte/metrics"
)

// fileConfig is the optional YAML configuration. Every knob has a working
// default; an empty or absent file runs the pipeline as-is.
type fileConfig struct {
	Fetch struct {
		NavTimeout       time.Duration `yaml:"nav_timeout"`
		HTTPTimeout      time.Duration `yaml:"http_timeout"`
		MaxRetries       int           `yaml:"max_retries"`
		ChallengeRetries int           `yaml:"challenge_retries"`
	} `yaml:"fetch"`
	Validation struct {
		MinHTMLBytes int `yaml:"min_html_bytes"`
		MinTextLen   int `yaml:"min_text_len"`
	} `yaml:"validation"`
	Chunk struct {
		MaxChars     int `yaml:"max_chars"`
		OverlapChars int `yaml:"overlap_chars"`
	} `yaml:"chunk"`
	CachePath string `yaml:"cache_path"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

func (fc *fileConfig) apply(cfg *recolte.Config) {
	cfg.Browser.NavTimeout = fc.Fetch.NavTimeout
	cfg.HTTP.Timeout = fc.Fetch.HTTPTimeout
	cfg.Challenge.Timeout = fc.Fetch.HTTPTimeout
	cfg.HTTP.MaxRetries = fc.Fetch.MaxRetries
	cfg.Challenge.ChallengeRetries = fc.Fetch.ChallengeRetries
	cfg.MinHTMLBytes = fc.Validation.MinHTMLBytes
	cfg.MinTextLen = fc.Validation.MinTextLen
	cfg.Chunk.MaxChars = fc.Chunk.MaxChars
	cfg.Chunk.OverlapChars = fc.Chunk.OverlapChars
	cfg.CachePath = fc.CachePath
}

func main() {
	port := env("PORT", "8090")
	logLevel := env("LOG_LEVEL", "info")

	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := &recolte.Config{
		CachePath: env("CACHE_DB", ""),
	}
	if path := env("RECOLTE_CONFIG", ""); path != "" {
		fc, err := loadFileConfig(path)
		if err != nil {
			slog.Error("config file", "path", path, "error", err)
			os.Exit(1)
		}
		fc.apply(cfg)
	}

	met := metrics.New()
	svc, err := recolte.New(cfg, logger, recolte.WithMetrics(met))
	if err != nil {
		slog.Error("service init", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	// Crawls are slow by construction (randomized delays, browser
	// navigation); give each request a generous ceiling and size the
	// server timeouts to match.
	crawlTimeout := 5 * time.Minute

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Method(http.MethodGet, "/metrics", met.Handler())

	r.Post("/api/crawl", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		if req.URL == "" {
			writeJSON(w, 400, map[string]string{"error": "url is required"})
			return
		}

		crawlCtx, cancel := context.WithTimeout(r.Context(), crawlTimeout)
		defer cancel()

		rec, chunks := svc.Acquire(crawlCtx, req.URL)
		writeJSON(w, 200, map[string]any{
			"content": rec,
			"chunks":  chunks,
		})
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      crawlTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
