package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"product-crawler/internal/kafka"
	"product-crawler/internal/metrics"
	"product-crawler/internal/models"
	"product-crawler/internal/store"
)

const maxRequestBytes = 1 << 20

type crawlRunner interface {
	CrawlDomains(ctx context.Context, domains []string, limits models.Limits) []models.CrawlResult
}

type server struct {
	crawler  crawlRunner
	defaults models.Limits
	logger   *zap.Logger
	gatherer prometheus.Gatherer

	// prod and store are nil unless async sessions are enabled.
	prod  kafka.JobProducer
	store store.StatusStore

	newID func() string
	now   func() time.Time
}

type serverOption func(*server)

func withAsync(prod kafka.JobProducer, sessions store.StatusStore) serverOption {
	return func(s *server) {
		s.prod = prod
		s.store = sessions
	}
}

func withGatherer(g prometheus.Gatherer) serverOption {
	return func(s *server) {
		s.gatherer = g
	}
}

func newServer(c crawlRunner, defaults models.Limits, logger *zap.Logger, opts ...serverOption) *server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &server{
		crawler:  c,
		defaults: defaults,
		logger:   logger,
		gatherer: prometheus.DefaultGatherer,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *server) asyncEnabled() bool {
	return s.prod != nil && s.store != nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/crawl", s.handleCrawl)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler(s.gatherer))
	if s.asyncEnabled() {
		mux.HandleFunc("/crawl/async", s.handleCrawlAsync)
		mux.HandleFunc("/crawl/", s.handleCrawlStatus)
	}
	return withCORS(s.withRecover(mux))
}

// handleCrawl crawls the requested domains and responds when all are done.
//
// Method: POST
// Path:   /crawl
// Example:
//
//	curl -X POST http://localhost:8080/crawl -d '{"domains":["example.com"],"max_pages":50}'
func (s *server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeCrawlRequest(w, r)
	if err != nil {
		writeDetail(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	limits := req.Limits(s.defaults)

	// The crawl outlives a disconnected client; there is no request-level cancellation.
	ctx := context.WithoutCancel(r.Context())
	start := s.now()
	results := s.crawler.CrawlDomains(ctx, req.Domains, limits)
	s.logger.Info("crawl request done",
		zap.Int("domains", len(req.Domains)),
		zap.Int("completed", len(results)),
		zap.Duration("elapsed", s.now().Sub(start)))

	writeJSON(w, results, http.StatusOK)
}

// handleHealth reports liveness.
//
// Method: GET
// Path:   /health
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

// handleCrawlAsync records a queued session and publishes it for the worker.
//
// Method: POST
// Path:   /crawl/async
// Example:
//
//	curl -X POST http://localhost:8080/crawl/async -d '{"domains":["example.com"]}'
func (s *server) handleCrawlAsync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeCrawlRequest(w, r)
	if err != nil {
		writeDetail(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	job := models.CrawlJob{
		SessionID: s.newID(),
		Domains:   req.Domains,
		Limits:    req.Limits(s.defaults),
		CreatedAt: s.now().UTC(),
	}
	session := models.NewSession(job)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Store before publishing so the worker never finds a session missing.
	if err := s.store.SetStatus(ctx, session); err != nil {
		s.logger.Error("persist session failed", zap.String("session", job.SessionID), zap.Error(err))
		writeDetail(w, "failed to persist session", http.StatusBadGateway)
		return
	}
	if err := s.prod.WriteJob(ctx, job); err != nil {
		s.logger.Error("enqueue job failed", zap.String("session", job.SessionID), zap.Error(err))
		writeDetail(w, "failed to enqueue job", http.StatusBadGateway)
		return
	}

	s.logger.Info("crawl session queued", zap.String("session", job.SessionID), zap.Int("domains", len(job.Domains)))
	writeJSON(w, session, http.StatusAccepted)
}

// handleCrawlStatus returns a previously created crawl session.
//
// Method: GET
// Path:   /crawl/{sessionID}
// Example:
//
//	curl http://localhost:8080/crawl/6f1c2a7e-8d5b-4e43-9a51-0b7c1e2f3d4a
func (s *server) handleCrawlStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/crawl/"), "/")
	if sessionID == "" {
		writeDetail(w, "missing session id", http.StatusBadRequest)
		return
	}

	session, ok, err := s.store.GetStatus(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("load session failed", zap.String("session", sessionID), zap.Error(err))
		writeDetail(w, "failed to load session", http.StatusBadGateway)
		return
	}
	if !ok {
		writeDetail(w, "not found", http.StatusNotFound)
		return
	}

	writeJSON(w, session, http.StatusOK)
}

func decodeCrawlRequest(w http.ResponseWriter, r *http.Request) (models.CrawlRequest, error) {
	var req models.CrawlRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, errors.New("request body is required")
		}
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeDetail(w http.ResponseWriter, detail string, status int) {
	writeJSON(w, map[string]string{"detail": detail}, status)
}
