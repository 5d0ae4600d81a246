package crawler

import (
	"context"
	"time"
)

// Page is what a Fetcher returns for a successfully loaded URL.
type Page struct {
	// URL is the address that was requested.
	URL string
	// BaseURL is the document's <base href>, if any, as written in the page.
	BaseURL    string
	StatusCode int
	// Links holds raw href attribute values in document order.
	Links []string
}

// Fetcher retrieves a page and reports any transport or HTTP failure as an error.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Gate decides whether a URL may be fetched. A non-nil error always comes
// with false.
type Gate interface {
	CanFetch(ctx context.Context, rawURL string) (bool, error)
}

// Limiter blocks until a request to rawURL's host is permitted.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Pauser sleeps between fetches.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// OutcomeKind tags how a visit attempt ended.
type OutcomeKind int

const (
	// OutcomeFetched means the page loaded and its links were extracted.
	OutcomeFetched OutcomeKind = iota
	// OutcomeSkipped means the URL was dropped without producing a page.
	OutcomeSkipped
)

// SkipReason explains a skipped URL.
type SkipReason string

const (
	SkipVisited      SkipReason = "visited"
	SkipDisallowed   SkipReason = "disallowed"
	SkipRobotsError  SkipReason = "robots_error"
	SkipRateLimited  SkipReason = "rate_limited"
	SkipFetchFailure SkipReason = "fetch_failed"
)

// Outcome is the result of visiting a single frontier entry.
type Outcome struct {
	Kind   OutcomeKind
	Page   Page
	Reason SkipReason
	Err    error
}

func fetched(p Page) Outcome {
	return Outcome{Kind: OutcomeFetched, Page: p}
}

func skipped(reason SkipReason, err error) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason, Err: err}
}
