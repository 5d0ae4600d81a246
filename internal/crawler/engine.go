package crawler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Config tunes the crawl loop.
type Config struct {
	// Delay is the politeness pause after each accepted page.
	Delay time.Duration
}

// Engine runs single-seed breadth-first crawls. It holds no per-crawl state,
// so one Engine may serve several workers at once.
type Engine struct {
	cfg     Config
	fetcher Fetcher
	gate    Gate
	limiter Limiter
	pauser  Pauser
	logger  *zap.Logger
}

// NewEngine wires an Engine. limiter may be nil; a nil pauser sleeps on a timer.
func NewEngine(cfg Config, fetcher Fetcher, gate Gate, limiter Limiter, pauser Pauser, logger *zap.Logger) *Engine {
	if pauser == nil {
		pauser = TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		fetcher: fetcher,
		gate:    gate,
		limiter: limiter,
		pauser:  pauser,
		logger:  logger,
	}
}

// Crawl returns up to limit URLs reachable from seed, in the order they were
// fetched. Unreachable or disallowed URLs are skipped, never fatal. If ctx
// ends mid-crawl the URLs accepted so far are returned. The seed and every
// discovered link are tracked in NormalizeURL form.
func (e *Engine) Crawl(ctx context.Context, seed string, limit int) []string {
	seed = NormalizeURL(seed)
	frontier := NewFrontier(seed, limit)
	logger := e.logger.With(zap.String("seed", seed), zap.Int("limit", limit))

	for ctx.Err() == nil {
		current, ok := frontier.Next()
		if !ok {
			break
		}
		outcome := e.visit(ctx, frontier, current)
		if outcome.Kind == OutcomeSkipped {
			if outcome.Reason != SkipVisited {
				logger.Info("skipping url",
					zap.String("url", current),
					zap.String("reason", string(outcome.Reason)),
					zap.Error(outcome.Err),
				)
			}
			continue
		}

		frontier.Accept(current)
		added := frontier.Enqueue(ResolveLinks(outcome.Page))
		logger.Debug("crawled url",
			zap.String("url", current),
			zap.Int("status", outcome.Page.StatusCode),
			zap.Int("links_added", added),
			zap.Int("pending", frontier.Pending()),
		)
		if !frontier.Done() {
			e.pauser.Pause(ctx, e.cfg.Delay)
		}
	}

	crawled := frontier.Crawled()
	logger.Info("crawl finished", zap.Int("crawled", len(crawled)), zap.Bool("canceled", ctx.Err() != nil))
	return crawled
}

func (e *Engine) visit(ctx context.Context, frontier *Frontier, current string) Outcome {
	if frontier.Visited(current) {
		return skipped(SkipVisited, nil)
	}
	frontier.MarkVisited(current)

	allowed, err := e.gate.CanFetch(ctx, current)
	if err != nil {
		return skipped(SkipRobotsError, err)
	}
	if !allowed {
		return skipped(SkipDisallowed, nil)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, current); err != nil {
			return skipped(SkipRateLimited, err)
		}
	}

	page, err := e.fetcher.Fetch(ctx, current)
	if err != nil {
		return skipped(SkipFetchFailure, err)
	}
	return fetched(page)
}
