package models

import "time"

// CrawlJob is an asynchronous crawl request published to the jobs topic.
type CrawlJob struct {
	SessionID string    `json:"session_id"`
	Domains   []string  `json:"domains"`
	Limits    Limits    `json:"limits"`
	CreatedAt time.Time `json:"created_at"`
}
