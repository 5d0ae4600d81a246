package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent", Timeout: time.Second})
	collector := f.buildCollector(&fetchState{})
	if collector.UserAgent != "coverage-agent" {
		t.Fatalf("expected user agent override, got %q", collector.UserAgent)
	}
	if !collector.IgnoreRobotsTxt {
		t.Fatal("expected collector to leave robots to the crawl gate")
	}
	if !collector.AllowURLRevisit {
		t.Fatal("expected revisits to be allowed across fetches")
	}
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	state := &fetchState{}
	hooks := &stubHooks{html: map[string]colly.HTMLCallback{}}
	f.configureCollectorHooks(hooks, state)
	if hooks.onResponse == nil || hooks.onError == nil || len(hooks.html) != 2 {
		t.Fatal("expected hooks to be registered")
	}

	hooks.onResponse(&colly.Response{StatusCode: http.StatusCreated})
	assert.True(t, state.seen)
	assert.Equal(t, http.StatusCreated, state.page.StatusCode)

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("boom"))
	assert.Equal(t, http.StatusBadGateway, state.page.StatusCode)
	require.EqualError(t, state.err, "boom")
}

func TestFetchExtractsLinks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "links-agent", r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><base href="/docs/"></head><body>
			<a href="one.html">one</a>
			<a href="#top">top</a>
			<a href="https://other.test/two">two</a>
		</body></html>`))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "links-agent", Timeout: time.Second})
	page, err := f.Fetch(context.Background(), srv.URL+"/index.html")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/index.html", page.URL)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "/docs/", page.BaseURL)
	assert.Equal(t, []string{"one.html", "#top", "https://other.test/two"}, page.Links)
}

func TestFetchSameURLTwice(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="/x">x</a>`))
	}))
	defer srv.Close()

	f := New(Config{Timeout: time.Second})
	for range 2 {
		page, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, []string{"/x"}, page.Links)
	}
}

func TestFetchHTTPErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchNonHTMLHasNoLinks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"href": "<a href='/x'>"}`))
	}))
	defer srv.Close()

	f := New(Config{Timeout: time.Second})
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, page.Links)
}

func TestFetchTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := New(Config{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), addr)
	require.Error(t, err)
}

func TestFetchCanceled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := New(Config{Timeout: time.Second})
	_, err := f.Fetch(ctx, srv.URL)
	require.ErrorIs(t, err, context.Canceled)
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
	html       map[string]colly.HTMLCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnHTML(selector string, cb colly.HTMLCallback) {
	s.html[selector] = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
