package crawler

// FrontierEntry is a URL waiting to be crawled and its link distance from the root.
type FrontierEntry struct {
	URL   string
	Depth int
}

// frontier is a FIFO queue of entries for a single domain crawl.
type frontier struct {
	entries []FrontierEntry
	head    int
}

func (f *frontier) push(e FrontierEntry) {
	f.entries = append(f.entries, e)
}

func (f *frontier) pop() (FrontierEntry, bool) {
	if f.head >= len(f.entries) {
		return FrontierEntry{}, false
	}
	e := f.entries[f.head]
	f.entries[f.head] = FrontierEntry{}
	f.head++
	// Reclaim the consumed prefix once it dominates the backing array.
	if f.head > 64 && f.head*2 >= len(f.entries) {
		f.entries = append([]FrontierEntry(nil), f.entries[f.head:]...)
		f.head = 0
	}
	return e, true
}

func (f *frontier) len() int {
	return len(f.entries) - f.head
}

// crawlState is owned by exactly one Crawl call.
type crawlState struct {
	frontier frontier
	visited  map[string]struct{}
	products map[string]struct{}
}

func newCrawlState(root string) *crawlState {
	s := &crawlState{
		visited:  make(map[string]struct{}),
		products: make(map[string]struct{}),
	}
	s.frontier.push(FrontierEntry{URL: root, Depth: 0})
	return s
}

func (s *crawlState) isVisited(url string) bool {
	_, ok := s.visited[url]
	return ok
}
