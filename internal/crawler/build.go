package crawler

import (
	"go.uber.org/zap"

	"product-crawler/internal/fetch"
	"product-crawler/internal/links"
	"product-crawler/internal/metrics"
)

// NewHTTPCoordinator wires a Coordinator over the HTTP fetch client and the
// HTML link extractor. It is the crawl stack shared by every binary.
func NewHTTPCoordinator(opts fetch.Options, logger *zap.Logger, m *metrics.Metrics) (*Coordinator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := New(
		HTTPOpener(fetch.NewClient(opts, logger)),
		links.NewExtractor(),
		WithLogger(logger),
		WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	return NewCoordinator(c, WithCoordinatorLogger(logger), WithCoordinatorMetrics(m)), nil
}
