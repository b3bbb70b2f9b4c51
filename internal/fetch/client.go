// Package fetch retrieves page bodies over HTTP for the crawler. A Client is
// configured once; each domain crawl opens its own Session and must Close it.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = 10 << 20
	defaultUserAgent    = "ProductCrawler/1.0"
)

var errSessionClosed = errors.New("fetch session closed")

// Options configures sessions opened by a Client.
type Options struct {
	// Timeout bounds each request end to end (connect, headers and body).
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	// ProxyURL, when set, is used for every session and takes precedence over ProxyPool.
	ProxyURL  string
	ProxyPool string
}

// DefaultOptions returns a 10s timeout, 10 MiB body cap and no proxy.
func DefaultOptions() Options {
	return Options{
		Timeout:      DefaultTimeout,
		MaxBodyBytes: DefaultMaxBodyBytes,
		UserAgent:    defaultUserAgent,
	}
}

// Client opens fetch sessions.
type Client struct {
	opts   Options
	logger *zap.Logger
}

// NewClient fills unset options with defaults.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{opts: opts, logger: logger}
}

// Open acquires a session with its own connection pool for crawling domain.
// It fails only when the session cannot be built, e.g. an unparsable proxy URL.
func (c *Client) Open(domain string) (*Session, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   c.opts.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   c.opts.Timeout,
		ResponseHeaderTimeout: c.opts.Timeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}

	proxy := c.opts.ProxyURL
	if proxy == "" {
		proxy = SelectProxy(c.opts.ProxyPool, proxyKey(domain))
	}
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
		c.logger.Debug("fetch session proxy", zap.String("domain", domain), zap.String("proxy", u.Redacted()))
	}

	return &Session{
		client: &http.Client{
			Transport: transport,
			Timeout:   c.opts.Timeout,
		},
		transport: transport,
		opts:      c.opts,
	}, nil
}

// Session fetches pages for one domain crawl. Fetch is safe to call from one
// goroutine at a time; Close releases idle connections and is idempotent.
type Session struct {
	client    *http.Client
	transport *http.Transport
	opts      Options
	closed    atomic.Bool
}

// Fetch performs a GET and returns the body only for a 200 response. Every
// failure is folded into the Result.
func (s *Session) Fetch(ctx context.Context, rawURL string) Result {
	if s.closed.Load() {
		return Result{URL: rawURL, Outcome: OutcomeTransportError, Err: errSessionClosed}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{URL: rawURL, Outcome: OutcomeTransportError, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{URL: rawURL, Outcome: classifyError(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Result{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Outcome:    OutcomeNonSuccess,
			Err:        fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL),
		}
	}

	var reader io.Reader = io.LimitReader(resp.Body, s.opts.MaxBodyBytes)
	if decoded, err := charset.NewReader(reader, resp.Header.Get("Content-Type")); err == nil {
		reader = decoded
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return Result{URL: rawURL, StatusCode: resp.StatusCode, Outcome: classifyError(err), Err: fmt.Errorf("read body: %w", err)}
	}

	return Result{URL: rawURL, Body: string(body), StatusCode: resp.StatusCode, Outcome: OutcomeOK}
}

// Close releases the session's connections.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.transport.CloseIdleConnections()
	return nil
}

func classifyError(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	return OutcomeTransportError
}
