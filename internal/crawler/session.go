package crawler

import (
	"context"

	"product-crawler/internal/fetch"
)

// Session fetches pages for one domain crawl and must be closed when the
// crawl ends.
type Session interface {
	Fetch(ctx context.Context, url string) fetch.Result
	Close() error
}

// SessionOpener acquires a fetch session for a domain.
type SessionOpener interface {
	Open(domain string) (Session, error)
}

// OpenerFunc adapts a function to SessionOpener.
type OpenerFunc func(domain string) (Session, error)

func (f OpenerFunc) Open(domain string) (Session, error) {
	return f(domain)
}

// HTTPOpener opens sessions from an HTTP fetch client.
func HTTPOpener(c *fetch.Client) SessionOpener {
	return OpenerFunc(func(domain string) (Session, error) {
		s, err := c.Open(domain)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
