package crawler

import "strings"

// productPatterns are matched in order against the lower-cased URL.
var productPatterns = []string{
	"/product/",
	"/item/",
	"/p/",
	"/products/",
	"/shop/",
	"/buy/",
	"/collection/",
}

// Classifier decides whether a URL denotes a product page.
type Classifier interface {
	IsProductURL(url string) bool
}

// ProductClassifier matches URL path fragments commonly used by storefronts.
// It is stateless and safe for concurrent use.
type ProductClassifier struct{}

// IsProductURL reports whether any product pattern occurs anywhere in url,
// ignoring case. Query strings and fragments count too.
func (ProductClassifier) IsProductURL(url string) bool {
	lower := strings.ToLower(url)
	for _, pattern := range productPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
