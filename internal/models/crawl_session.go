package models

import "time"

// SessionState tracks an asynchronous crawl session through the worker.
type SessionState string

const (
	SessionQueued    SessionState = "queued"
	SessionRunning   SessionState = "running"
	SessionCompleted SessionState = "completed"
)

// CrawlSession is the status record stored for an asynchronous crawl.
type CrawlSession struct {
	SessionID string        `json:"session_id"`
	Domains   []string      `json:"domains"`
	Limits    Limits        `json:"limits"`
	Status    SessionState  `json:"status"`
	Results   []CrawlResult `json:"results,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewSession builds the queued session record for a job.
func NewSession(job CrawlJob) CrawlSession {
	return CrawlSession{
		SessionID: job.SessionID,
		Domains:   job.Domains,
		Limits:    job.Limits,
		Status:    SessionQueued,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.CreatedAt,
	}
}
