package models

const (
	DefaultMaxPages = 100
	DefaultMaxDepth = 3
)

// Limits bounds a single domain crawl.
type Limits struct {
	MaxPages int `json:"max_pages"`
	MaxDepth int `json:"max_depth"`
}

// DefaultLimits returns the page and depth budget used when a request omits them.
func DefaultLimits() Limits {
	return Limits{MaxPages: DefaultMaxPages, MaxDepth: DefaultMaxDepth}
}
