package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"product-crawler/internal/logging"
	"product-crawler/internal/models"
)

// Config holds the crawl batches to submit to the API. Each batch is one
// /crawl/async request body.
type Config struct {
	Batches []models.CrawlRequest `json:"batches"`
}

func main() {
	configPath := flag.String("config", "batches.json", "Path to JSON config file with crawl batches")
	apiBase := flag.String("api", "http://localhost:8080", "API base URL")
	concurrency := flag.Int("concurrency", 8, "Maximum requests in flight")
	flag.Parse()

	logger, err := logging.New("info", "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(*configPath, *apiBase, *concurrency, nil, logger); err != nil {
		logger.Fatal("loadgen failed", zap.Error(err))
	}
}

// run loads config from configPath and submits every batch to the API, at most
// concurrency at a time. If client is nil, a default HTTP client (30s timeout) is used.
func run(configPath, apiBase string, concurrency int, client *http.Client, logger *zap.Logger) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	baseURL, err := url.Parse(apiBase)
	if err != nil {
		return err
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return fmt.Errorf("api base %q must be an absolute URL", apiBase)
	}

	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var accepted atomic.Int64
	p := pool.New().WithMaxGoroutines(concurrency)
	for i, batch := range cfg.Batches {
		p.Go(func() {
			sessionID, err := submitBatch(client, baseURL, batch)
			if err != nil {
				logger.Warn("batch rejected", zap.Int("batch", i), zap.Strings("domains", batch.Domains), zap.Error(err))
				return
			}
			accepted.Add(1)
			logger.Info("batch accepted", zap.Int("batch", i), zap.String("session_id", sessionID))
		})
	}
	p.Wait()
	logger.Info("submitted batches", zap.Int("total", len(cfg.Batches)), zap.Int64("accepted", accepted.Load()))
	return nil
}

var errNoBatches = errors.New("config has no batches")

// loadConfig reads and parses the JSON config file.
func loadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if len(cfg.Batches) == 0 {
		return cfg, errNoBatches
	}
	for i, b := range cfg.Batches {
		if err := b.Validate(); err != nil {
			return cfg, fmt.Errorf("batch %d: %w", i, err)
		}
	}
	return cfg, nil
}

// submitBatch posts one batch to /crawl/async and returns the queued session id.
func submitBatch(client *http.Client, base *url.URL, batch models.CrawlRequest) (string, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return "", err
	}

	u := *base
	u.Path = "/crawl/async"
	resp, err := client.Post(u.String(), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var session models.CrawlSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}
	return session.SessionID, nil
}
