package models

import (
	"encoding/json"
	"time"
)

// ResultEvent is the message published to the results topic for each domain
// an async session completed.
type ResultEvent struct {
	SessionID   string      `json:"session_id"`
	Domain      string      `json:"domain"`
	ProductURLs []string    `json:"product_urls"`
	Status      CrawlStatus `json:"status"`
	CrawledAt   time.Time   `json:"crawled_at"`
}

// NewResultEvent encodes a domain result for the results topic.
func NewResultEvent(sessionID string, result CrawlResult, crawledAt time.Time) ([]byte, error) {
	return json.Marshal(ResultEvent{
		SessionID:   sessionID,
		Domain:      result.Domain,
		ProductURLs: result.ProductURLs,
		Status:      result.Status,
		CrawledAt:   crawledAt,
	})
}
