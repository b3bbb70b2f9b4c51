package models

import "errors"

// ErrNoDomains is returned when a crawl request carries no domains field.
var ErrNoDomains = errors.New("domains is required")

// CrawlRequest is the body accepted by the crawl endpoints. Pointer fields
// distinguish an omitted (or null) budget from an explicit zero.
type CrawlRequest struct {
	Domains  []string `json:"domains"`
	MaxPages *int     `json:"max_pages,omitempty"`
	MaxDepth *int     `json:"max_depth,omitempty"`
}

// Validate checks the request shape. An empty list is valid and yields an
// empty result; a missing list is not.
func (r CrawlRequest) Validate() error {
	if r.Domains == nil {
		return ErrNoDomains
	}
	return nil
}

// Limits resolves the request budget against defaults.
func (r CrawlRequest) Limits(defaults Limits) Limits {
	limits := defaults
	if r.MaxPages != nil {
		limits.MaxPages = *r.MaxPages
	}
	if r.MaxDepth != nil {
		limits.MaxDepth = *r.MaxDepth
	}
	return limits
}
