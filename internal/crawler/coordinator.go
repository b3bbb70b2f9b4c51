package crawler

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"product-crawler/internal/metrics"
	"product-crawler/internal/models"
)

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger sets the logger used for dropped domains.
func WithCoordinatorLogger(logger *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCoordinatorMetrics counts completed and dropped domains.
func WithCoordinatorMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// Coordinator runs one domain crawl per goroutine and gathers the results.
type Coordinator struct {
	crawler DomainCrawler
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCoordinator returns a Coordinator driving crawler.
func NewCoordinator(crawler DomainCrawler, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		crawler: crawler,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CrawlDomains crawls every domain concurrently and waits for all of them.
// A domain whose crawl errors or panics is left out of the result; the others
// are unaffected. Result order is unspecified. The returned slice is never nil.
func (c *Coordinator) CrawlDomains(ctx context.Context, domains []string, limits models.Limits) []models.CrawlResult {
	p := pool.NewWithResults[models.CrawlResult]().WithErrors()
	for _, domain := range domains {
		p.Go(func() (models.CrawlResult, error) {
			return c.crawlOne(ctx, domain, limits)
		})
	}

	results, _ := p.Wait()
	if results == nil {
		results = []models.CrawlResult{}
	}
	return results
}

func (c *Coordinator) crawlOne(ctx context.Context, domain string, limits models.Limits) (models.CrawlResult, error) {
	var (
		result models.CrawlResult
		err    error
	)
	var pc panics.Catcher
	pc.Try(func() {
		result, err = c.crawler.Crawl(ctx, domain, limits)
	})
	if recovered := pc.Recovered(); recovered != nil {
		err = fmt.Errorf("crawl panicked: %w", recovered.AsError())
	}
	if err != nil {
		c.metrics.DomainDropped()
		c.logger.Warn("domain dropped", zap.String("domain", domain), zap.Error(err))
		return models.CrawlResult{}, err
	}
	c.metrics.DomainCompleted(len(result.ProductURLs))
	return result, nil
}
