package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"product-crawler/internal/models"
)

// mockTransport records requests and returns a configurable status.
type mockTransport struct {
	mu       sync.Mutex
	status   int
	lastURL  string
	lastBody string
	reqCount int
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, _ := io.ReadAll(req.Body)
	m.mu.Lock()
	m.lastURL = req.URL.String()
	m.lastBody = string(body)
	m.reqCount++
	m.mu.Unlock()

	respBody := ""
	if m.status == http.StatusAccepted {
		respBody = `{"session_id":"sess-1","status":"queued"}`
	}
	return &http.Response{
		StatusCode: m.status,
		Body:       io.NopCloser(strings.NewReader(respBody)),
		Header:     make(http.Header),
	}, nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batches.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		batches int
	}{
		{"valid", `{"batches":[{"domains":["shop.example"],"max_pages":5}]}`, nil, 1},
		{"empty batches", `{"batches":[]}`, errNoBatches, 0},
		{"batch without domains", `{"batches":[{"max_pages":5}]}`, models.ErrNoDomains, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(writeConfig(t, tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("loadConfig() err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && len(cfg.Batches) != tt.batches {
				t.Errorf("len(Batches) = %d, want %d", len(cfg.Batches), tt.batches)
			}
		})
	}

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := loadConfig(writeConfig(t, `{not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestSubmitBatch(t *testing.T) {
	transport := &mockTransport{status: http.StatusAccepted}
	client := &http.Client{Transport: transport}
	baseURL, _ := url.Parse("http://api.test")
	pages := 5

	sessionID, err := submitBatch(client, baseURL, models.CrawlRequest{Domains: []string{"shop.example"}, MaxPages: &pages})
	if err != nil {
		t.Fatalf("submitBatch() err = %v", err)
	}
	if sessionID != "sess-1" {
		t.Errorf("session id = %q, want sess-1", sessionID)
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if transport.lastURL != "http://api.test/crawl/async" {
		t.Errorf("url = %s, want http://api.test/crawl/async", transport.lastURL)
	}
	var sent models.CrawlRequest
	if err := json.Unmarshal([]byte(transport.lastBody), &sent); err != nil {
		t.Fatalf("body is not a crawl request: %v", err)
	}
	if len(sent.Domains) != 1 || sent.MaxPages == nil || *sent.MaxPages != 5 || sent.MaxDepth != nil {
		t.Errorf("unexpected body %s", transport.lastBody)
	}
}

func TestSubmitBatchNonAccepted(t *testing.T) {
	transport := &mockTransport{status: http.StatusUnprocessableEntity}
	client := &http.Client{Transport: transport}
	baseURL, _ := url.Parse("http://api.test")
	if _, err := submitBatch(client, baseURL, models.CrawlRequest{Domains: []string{}}); err == nil {
		t.Fatal("expected error for non-202 status")
	}
}

func TestRun(t *testing.T) {
	path := writeConfig(t, `{"batches":[{"domains":["a.example"]},{"domains":["b.example"]},{"domains":["c.example"]}]}`)
	transport := &mockTransport{status: http.StatusAccepted}
	client := &http.Client{Transport: transport}

	if err := run(path, "http://api.test", 2, client, zap.NewNop()); err != nil {
		t.Fatalf("run() err = %v", err)
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if transport.reqCount != 3 {
		t.Errorf("request count = %d, want 3", transport.reqCount)
	}
}

func TestRunErrors(t *testing.T) {
	valid := writeConfig(t, `{"batches":[{"domains":["a.example"]}]}`)

	if err := run("/nonexistent/config.json", "http://localhost:8080", 1, nil, zap.NewNop()); err == nil {
		t.Error("expected error for missing config")
	}
	if err := run(writeConfig(t, `{"batches":[]}`), "http://localhost:8080", 1, nil, zap.NewNop()); !errors.Is(err, errNoBatches) {
		t.Errorf("err = %v, want errNoBatches", err)
	}
	if err := run(valid, "://invalid", 1, nil, zap.NewNop()); err == nil {
		t.Error("expected error for invalid api base")
	}
	if err := run(valid, "localhost:8080", 1, nil, zap.NewNop()); err == nil {
		t.Error("expected error for relative api base")
	}
}
