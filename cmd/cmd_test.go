package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/firmlight-worker/internal/config"
	"github.com/JakeFAU/firmlight-worker/internal/handler"
)

func stubRuntime(t *testing.T, cfg config.Config, err error) {
	t.Helper()
	orig := loadRuntime
	loadRuntime = func(string) (*runtime, error) {
		if err != nil {
			return nil, err
		}
		return &runtime{cfg: cfg, logger: zap.NewNop()}, nil
	}
	t.Cleanup(func() { loadRuntime = orig })
}

func TestCrawlCommandPrintsResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body><a href="/a">a</a><a href="/b">b</a></body></html>`)
		default:
			fmt.Fprint(w, `<html><body>leaf</body></html>`)
		}
	})
	site := httptest.NewServer(mux)
	defer site.Close()

	stubRuntime(t, config.Config{
		Crawler: config.CrawlerConfig{UserAgent: "test", RequestTimeout: time.Second, DefaultCrawlLimit: 5},
		Robots:  config.RobotsConfig{Timeout: time.Second},
	}, nil)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"crawl", site.URL + "/", "--limit", "2"})
	require.NoError(t, root.Execute())

	var results []handler.SeedResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 1)
	require.Equal(t, site.URL+"/", results[0].URL)
	require.Equal(t, []string{site.URL + "/", site.URL + "/a"}, results[0].Results)
}

func TestCrawlCommandRequiresSeed(t *testing.T) {
	stubRuntime(t, config.Config{}, nil)

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"crawl"})
	require.Error(t, root.Execute())
}

func TestConfigErrorStopsCommand(t *testing.T) {
	stubRuntime(t, config.Config{}, errors.New("load config: bad yaml"))

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run"})
	require.ErrorContains(t, root.Execute(), "bad yaml")
}
