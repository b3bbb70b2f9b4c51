package models

// CrawlStatus is the terminal state reported for a domain crawl.
type CrawlStatus string

const (
	StatusCompleted CrawlStatus = "completed"
	StatusFailed    CrawlStatus = "failed"
)

// CrawlResult is the outcome of one domain crawl. ProductURLs has set
// semantics; it is sorted only so output is stable.
type CrawlResult struct {
	Domain      string      `json:"domain"`
	ProductURLs []string    `json:"product_urls"`
	Status      CrawlStatus `json:"status"`
}
