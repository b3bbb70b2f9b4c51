package graph

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"product-crawler/internal/models"
)

// ErrEmptyDomain is returned for a result event without a domain.
var ErrEmptyDomain = errors.New("result event has no domain")

const resultQuery = "MERGE (d:Domain {url: $domain}) " +
	"SET d.last_session_id = $session_id, d.last_crawled_at = $crawled_at " +
	"WITH d " +
	"UNWIND $product_urls AS product_url " +
	"MERGE (p:ProductPage {url: product_url}) " +
	"MERGE (d)-[r:HAS_PRODUCT]->(p) " +
	"SET r.session_id = $session_id"

// Writer MERGEs result events so replays are idempotent.
type Writer struct {
	driver   DriverSessioner
	database string
	logger   *zap.Logger
}

// NewWriter returns a Writer. An empty database uses the server default.
func NewWriter(driver DriverSessioner, database string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{driver: driver, database: database, logger: logger}
}

// WriteResult upserts the domain node and one HAS_PRODUCT edge per product URL.
func (w *Writer) WriteResult(ctx context.Context, event models.ResultEvent) error {
	if event.Domain == "" {
		return ErrEmptyDomain
	}
	query, params := buildResultQuery(event)
	return w.runWrite(ctx, query, params)
}

func (w *Writer) runWrite(ctx context.Context, query string, params map[string]any) error {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: w.database,
	})
	defer func() {
		if err := session.Close(ctx); err != nil {
			w.logger.Warn("neo4j session close error", zap.Error(err))
		}
	}()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	return err
}

func buildResultQuery(event models.ResultEvent) (string, map[string]any) {
	urls := make([]any, 0, len(event.ProductURLs))
	for _, u := range event.ProductURLs {
		if u != "" {
			urls = append(urls, u)
		}
	}
	params := map[string]any{
		"domain":       event.Domain,
		"session_id":   event.SessionID,
		"crawled_at":   event.CrawledAt,
		"product_urls": urls,
	}
	return resultQuery, params
}
