// Package store persists async crawl sessions.
package store

import (
	"context"
	"time"

	"product-crawler/internal/models"
)

// StatusStore persists crawl session records.
type StatusStore interface {
	SetStatus(ctx context.Context, session models.CrawlSession) error
	GetStatus(ctx context.Context, sessionID string) (models.CrawlSession, bool, error)
}

// SessionStore adds the once-only claim the worker takes before running a session.
type SessionStore interface {
	StatusStore
	// Claim reports true for the first caller for sessionID within ttl.
	Claim(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)
}
