package crawler

import (
	"context"
	"errors"
	"sync"

	"product-crawler/internal/fetch"
	"product-crawler/internal/links"
)

// fakeSite serves canned pages; a URL without an entry is a 404.
type fakeSite struct {
	pages map[string]string

	mu      sync.Mutex
	fetched []string
	opened  int
	closed  int
	openErr error
}

func newFakeSite(pages map[string]string) *fakeSite {
	return &fakeSite{pages: pages}
}

func (s *fakeSite) Open(domain string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opened++
	return &fakeSession{site: s}, nil
}

func (s *fakeSite) fetchedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

func (s *fakeSite) closedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeSession struct {
	site *fakeSite
}

func (f *fakeSession) Fetch(_ context.Context, url string) fetch.Result {
	f.site.mu.Lock()
	defer f.site.mu.Unlock()
	f.site.fetched = append(f.site.fetched, url)
	body, ok := f.site.pages[url]
	if !ok {
		return fetch.Result{URL: url, StatusCode: 404, Outcome: fetch.OutcomeNonSuccess, Err: errors.New("not found")}
	}
	return fetch.Result{URL: url, StatusCode: 200, Body: body, Outcome: fetch.OutcomeOK}
}

func (f *fakeSession) Close() error {
	f.site.mu.Lock()
	defer f.site.mu.Unlock()
	f.site.closed++
	return nil
}

// extractorFunc adapts a function to LinkExtractor.
type extractorFunc func(body, baseURL string) ([]string, error)

func (f extractorFunc) Extract(body, baseURL string) ([]string, error) {
	return f(body, baseURL)
}

func newTestCrawler(opener SessionOpener) *Crawler {
	c, err := New(opener, links.NewExtractor())
	if err != nil {
		panic(err)
	}
	return c
}
