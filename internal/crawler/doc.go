// Package crawler implements the bounded breadth-first crawl behind CRAWLER
// tasks.
//
// An Engine crawls one seed at a time. Every candidate URL passes a robots
// gate that fails closed, then an optional per-host rate limiter, before the
// Fetcher retrieves it. Pages that load are accepted into the result and their
// links join the back of the frontier; a fixed politeness delay separates
// consecutive fetches. The crawl stops when the limit is reached or the
// frontier runs dry.
package crawler
