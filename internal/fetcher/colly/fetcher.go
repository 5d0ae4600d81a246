// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/firmlight-worker/internal/crawler"
	"github.com/JakeFAU/firmlight-worker/internal/metrics"
)

const defaultTimeout = 5 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodySize caps the bytes read per page; zero keeps colly's default.
	MaxBodySize int
}

// Fetcher implements crawler.Fetcher using the Colly collector. Robots
// rules are enforced by the crawl gate, so the collector ignores them.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnHTML(string, colly.HTMLCallback)
	OnError(colly.ErrorCallback)
}

// fetchState collects what the hooks observe during one Visit.
type fetchState struct {
	page crawler.Page
	seen bool
	err  error
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	// The crawl frontier owns dedup; the collector store is shared by clones.
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET and extracts anchor hrefs from HTML pages.
// Transport errors and statuses of 400 or above are returned as errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.Page, error) {
	state := &fetchState{}
	collector := f.buildCollector(state)

	if err := f.runCollector(ctx, collector, rawURL, state); err != nil {
		metrics.ObserveCrawl(rawURL, "error")
		return crawler.Page{}, err
	}
	metrics.ObserveCrawl(rawURL, strconv.Itoa(state.page.StatusCode))
	if state.page.StatusCode >= http.StatusBadRequest {
		return crawler.Page{}, fmt.Errorf("unexpected status %d for %s", state.page.StatusCode, rawURL)
	}
	state.page.URL = rawURL
	return state.page, nil
}

func (f *Fetcher) buildCollector(state *fetchState) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	f.configureCollectorHooks(collector, state)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, state *fetchState) {
	hooks.OnResponse(func(r *colly.Response) {
		state.seen = true
		state.page.StatusCode = r.StatusCode
	})

	hooks.OnHTML("base[href]", func(e *colly.HTMLElement) {
		if state.page.BaseURL == "" {
			state.page.BaseURL = e.Attr("href")
		}
	})

	hooks.OnHTML("a[href]", func(e *colly.HTMLElement) {
		state.page.Links = append(state.page.Links, e.Attr("href"))
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			state.page.StatusCode = r.StatusCode
		}
		state.err = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, state *fetchState) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if state.err != nil {
			return fmt.Errorf("colly response failed: %w", state.err)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if !state.seen {
			return fmt.Errorf("colly visit produced no response for %s", url)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
