// Package robots decides whether a URL may be crawled under its origin's
// robots.txt. Every failure to obtain or parse the rules denies the fetch.
package robots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/firmlight-worker/internal/metrics"
)

const (
	// Agent is the user agent group evaluated in robots.txt.
	Agent = "*"

	defaultTimeout = 10 * time.Second
	maxRobotsBytes = 512 << 10
	robotsPath     = "/robots.txt"
	resultAllowed  = "allowed"
	resultDenied   = "disallowed"
	resultErrored  = "error"
)

// ErrInvalidURL is returned for URLs that have no http(s) origin.
var ErrInvalidURL = errors.New("robots: url has no http(s) origin")

// Config controls how robots.txt files are fetched.
type Config struct {
	// UserAgent is sent on robots.txt requests.
	UserAgent string
	Timeout   time.Duration
	// CacheTTL is how long a fetched robots.txt is reused. Zero disables reuse.
	CacheTTL time.Duration
}

// Gate implements crawler.Gate.
type Gate struct {
	cfg    Config
	client *http.Client
	cache  Cache
	logger *zap.Logger
}

// NewGate builds a Gate. Every robots.txt fetch is bounded by cfg.Timeout,
// whatever client is passed; a nil client gets a default one. A nil cache or
// zero CacheTTL fetches robots.txt on every check.
func NewGate(cfg Config, client *http.Client, cache Cache, logger *zap.Logger) *Gate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.CacheTTL <= 0 {
		cache = nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{cfg: cfg, client: client, cache: cache, logger: logger}
}

// CanFetch reports whether the generic agent may fetch rawURL. It returns
// false with a non-nil error when the rules could not be determined.
func (g *Gate) CanFetch(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		metrics.ObserveRobotsCheck(resultErrored)
		return false, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	rules, err := g.rules(ctx, u)
	if err != nil {
		metrics.ObserveRobotsCheck(resultErrored)
		g.logger.Warn("robots check failed; denying", zap.String("url", rawURL), zap.Error(err))
		return false, err
	}

	allowed := rules.allows(target(u))
	if allowed {
		metrics.ObserveRobotsCheck(resultAllowed)
	} else {
		metrics.ObserveRobotsCheck(resultDenied)
	}
	return allowed, nil
}

func (g *Gate) rules(ctx context.Context, u *url.URL) (ruleSet, error) {
	origin := u.Scheme + "://" + u.Host

	if g.cache != nil {
		entry, ok, err := g.cache.Get(ctx, origin)
		switch {
		case err != nil:
			g.logger.Debug("robots cache read failed", zap.String("origin", origin), zap.Error(err))
		case ok:
			if rules, perr := parse(entry); perr == nil {
				return rules, nil
			}
		}
	}

	entry, err := g.fetch(ctx, origin)
	if err != nil {
		return ruleSet{}, err
	}
	rules, err := parse(entry)
	if err != nil {
		return ruleSet{}, err
	}
	if g.cache != nil && cacheable(entry.StatusCode) {
		if err := g.cache.Set(ctx, origin, entry, g.cfg.CacheTTL); err != nil {
			g.logger.Debug("robots cache write failed", zap.String("origin", origin), zap.Error(err))
		}
	}
	return rules, nil
}

func (g *Gate) fetch(ctx context.Context, origin string) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+robotsPath, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("new robots request: %w", err)
	}
	if g.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", g.cfg.UserAgent)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return Entry{}, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			g.logger.Debug("failed to close robots response body", zap.Error(cerr))
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return Entry{}, fmt.Errorf("read robots body: %w", err)
	}
	return Entry{StatusCode: resp.StatusCode, Body: body}, nil
}

// ruleSet is a parsed robots.txt, or a blanket denial.
type ruleSet struct {
	denyAll bool
	data    *robotstxt.RobotsData
}

func (r ruleSet) allows(path string) bool {
	if r.denyAll || r.data == nil {
		return false
	}
	return r.data.TestAgent(path, Agent)
}

// parse maps a robots.txt response to rules. 401 and 403 deny everything,
// other 4xx allow everything, 5xx deny everything.
func parse(e Entry) (ruleSet, error) {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ruleSet{denyAll: true}, nil
	}
	data, err := robotstxt.FromStatusAndBytes(e.StatusCode, e.Body)
	if err != nil {
		return ruleSet{}, fmt.Errorf("parse robots: %w", err)
	}
	return ruleSet{data: data}, nil
}

// cacheable limits reuse to definitive answers; server errors are retried.
func cacheable(status int) bool {
	return status >= 200 && status < 500
}

func target(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}
