package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/JakeFAU/firmlight-worker/internal/task"
)

// Crawler runs a bounded crawl from a single seed.
type Crawler interface {
	Crawl(ctx context.Context, seed string, limit int) []string
}

// LimitSource supplies the crawl limit used when a chunk omits crawlLimit.
type LimitSource interface {
	Limit() int
}

// FixedLimit always returns the same default.
type FixedLimit int

// Limit implements LimitSource.
func (f FixedLimit) Limit() int { return int(f) }

// RandomLimit draws a default uniformly from [Min, Max].
type RandomLimit struct {
	Min int
	Max int
}

// Limit implements LimitSource.
func (r RandomLimit) Limit() int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rand.IntN(r.Max-r.Min+1)
}

// SeedResult pairs a seed with the URLs crawled from it, in BFS order.
type SeedResult struct {
	URL     string   `json:"url"`
	Results []string `json:"results"`
}

type crawlChunk struct {
	URLs       []string `json:"urls"`
	CrawlLimit *int     `json:"crawlLimit"`
}

// Crawl executes CRAWLER chunks by crawling each seed in order.
type Crawl struct {
	crawler  Crawler
	defaults LimitSource
	logger   *zap.Logger
}

// NewCrawl constructs a CRAWLER handler.
func NewCrawl(crawler Crawler, defaults LimitSource, logger *zap.Logger) *Crawl {
	if defaults == nil {
		defaults = FixedLimit(5)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawl{crawler: crawler, defaults: defaults, logger: logger}
}

// Execute implements task.Handler. Every seed gets exactly one entry, in seed
// order; a seed that could not be fetched carries an empty results list.
func (c *Crawl) Execute(ctx context.Context, d task.Descriptor) (any, error) {
	var chunk crawlChunk
	if err := json.Unmarshal(d.Chunk, &chunk); err != nil {
		return nil, fmt.Errorf("%w: %w", task.ErrInvalidChunk, err)
	}
	limit := c.defaults.Limit()
	if chunk.CrawlLimit != nil {
		limit = *chunk.CrawlLimit
	}

	results := make([]SeedResult, 0, len(chunk.URLs))
	for _, seed := range chunk.URLs {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("crawl canceled: %w", ctx.Err())
		}
		c.logger.Info("starting crawl",
			zap.String("task_id", d.ID()),
			zap.String("seed", seed),
			zap.Int("limit", limit),
		)
		crawled := []string{}
		if limit > 0 {
			crawled = append(crawled, c.crawler.Crawl(ctx, seed, limit)...)
		}
		results = append(results, SeedResult{URL: seed, Results: crawled})
	}
	return results, nil
}
