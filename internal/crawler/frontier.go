package crawler

// Frontier is the per-seed crawl state. It is owned by a single goroutine.
//
// Invariants: len(crawled) <= limit, crawled holds no duplicates, and every
// crawled URL is in visited. A URL is queued at most once while pending.
type Frontier struct {
	limit   int
	pending []string
	queued  map[string]struct{}
	visited map[string]struct{}
	crawled []string
}

// NewFrontier seeds a frontier with a single pending URL.
func NewFrontier(seed string, limit int) *Frontier {
	f := &Frontier{
		limit:   limit,
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
		crawled: make([]string, 0, max(limit, 0)),
	}
	f.push(seed)
	return f
}

// Next pops the oldest pending URL while the crawl is still under its limit.
func (f *Frontier) Next() (string, bool) {
	if f.Done() {
		return "", false
	}
	next := f.pending[0]
	f.pending[0] = ""
	f.pending = f.pending[1:]
	delete(f.queued, next)
	return next, true
}

// Done reports whether the limit is reached or nothing is pending.
func (f *Frontier) Done() bool {
	return len(f.crawled) >= f.limit || len(f.pending) == 0
}

// Visited reports whether u was already attempted.
func (f *Frontier) Visited(u string) bool {
	_, ok := f.visited[u]
	return ok
}

// MarkVisited records an attempt on u regardless of how it ends.
func (f *Frontier) MarkVisited(u string) {
	f.visited[u] = struct{}{}
}

// Accept appends a fetched URL to the crawl result.
func (f *Frontier) Accept(u string) {
	f.visited[u] = struct{}{}
	f.crawled = append(f.crawled, u)
}

// Enqueue appends links that are neither visited nor already pending and
// returns how many were added.
func (f *Frontier) Enqueue(links []string) int {
	added := 0
	for _, link := range links {
		if _, seen := f.visited[link]; seen {
			continue
		}
		if f.push(link) {
			added++
		}
	}
	return added
}

// Pending returns the number of queued URLs.
func (f *Frontier) Pending() int {
	return len(f.pending)
}

// Crawled returns a copy of the accepted URLs in acceptance order.
func (f *Frontier) Crawled() []string {
	out := make([]string, len(f.crawled))
	copy(out, f.crawled)
	return out
}

func (f *Frontier) push(u string) bool {
	if _, ok := f.queued[u]; ok {
		return false
	}
	f.queued[u] = struct{}{}
	f.pending = append(f.pending, u)
	return true
}
