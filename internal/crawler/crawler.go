// Package crawler implements the breadth-first product crawl of a single
// domain and the fan-out of many domain crawls.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"product-crawler/internal/metrics"
	"product-crawler/internal/models"
)

// LinkExtractor returns the same-host absolute links found in a page body.
type LinkExtractor interface {
	Extract(body, baseURL string) ([]string, error)
}

// DomainCrawler crawls one domain. Coordinator depends on this rather than *Crawler.
type DomainCrawler interface {
	Crawl(ctx context.Context, domain string, limits models.Limits) (models.CrawlResult, error)
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records fetch and domain metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Crawler) {
		c.metrics = m
	}
}

// WithClassifier replaces the default ProductClassifier.
func WithClassifier(classifier Classifier) Option {
	return func(c *Crawler) {
		if classifier != nil {
			c.classifier = classifier
		}
	}
}

// Crawler walks a domain breadth first and collects product page URLs.
// A Crawler holds no per-crawl state and may run many crawls at once.
type Crawler struct {
	opener     SessionOpener
	extractor  LinkExtractor
	classifier Classifier
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New returns a Crawler that fetches through opener and follows links found by extractor.
func New(opener SessionOpener, extractor LinkExtractor, opts ...Option) (*Crawler, error) {
	if opener == nil {
		return nil, errors.New("crawler: session opener is required")
	}
	if extractor == nil {
		return nil, errors.New("crawler: link extractor is required")
	}
	c := &Crawler{
		opener:     opener,
		extractor:  extractor,
		classifier: ProductClassifier{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NormalizeDomain prefixes https:// unless domain already carries an http or https scheme.
func NormalizeDomain(domain string) string {
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

// Crawl visits at most limits.MaxPages pages of domain, following links no
// deeper than limits.MaxDepth from the root. Failed fetches count as visited
// and are otherwise ignored. An error is returned only when the fetch session
// cannot be opened or a fetched page cannot be parsed for links; no partial
// result is returned in that case.
func (c *Crawler) Crawl(ctx context.Context, domain string, limits models.Limits) (models.CrawlResult, error) {
	root := NormalizeDomain(domain)

	session, err := c.opener.Open(root)
	if err != nil {
		return models.CrawlResult{}, fmt.Errorf("open fetch session for %s: %w", root, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			c.logger.Warn("close fetch session", zap.String("domain", root), zap.Error(err))
		}
	}()

	c.logger.Info("crawl started", zap.String("domain", root),
		zap.Int("max_pages", limits.MaxPages), zap.Int("max_depth", limits.MaxDepth))

	state := newCrawlState(root)
	for state.frontier.len() > 0 && len(state.visited) < limits.MaxPages {
		entry, _ := state.frontier.pop()
		if state.isVisited(entry.URL) {
			continue
		}
		if entry.Depth > limits.MaxDepth {
			continue
		}
		state.visited[entry.URL] = struct{}{}

		if c.classifier.IsProductURL(entry.URL) {
			state.products[entry.URL] = struct{}{}
		}

		start := time.Now()
		res := session.Fetch(ctx, entry.URL)
		c.metrics.ObserveFetch(res.Outcome.String(), time.Since(start))
		if !res.HasContent() {
			c.logger.Debug("no content", zap.String("url", entry.URL), zap.Int("depth", entry.Depth),
				zap.String("outcome", res.Outcome.String()), zap.Error(res.Err))
			continue
		}

		links, err := c.extractor.Extract(res.Body, entry.URL)
		if err != nil {
			return models.CrawlResult{}, fmt.Errorf("extract links from %s: %w", entry.URL, err)
		}
		for _, link := range links {
			if !state.isVisited(link) {
				state.frontier.push(FrontierEntry{URL: link, Depth: entry.Depth + 1})
			}
		}
	}

	products := make([]string, 0, len(state.products))
	for u := range state.products {
		products = append(products, u)
	}
	sort.Strings(products)

	c.logger.Info("crawl completed", zap.String("domain", root),
		zap.Int("visited", len(state.visited)), zap.Int("products", len(products)))

	return models.CrawlResult{
		Domain:      root,
		ProductURLs: products,
		Status:      models.StatusCompleted,
	}, nil
}
