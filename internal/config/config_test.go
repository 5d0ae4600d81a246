package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
broker:
  url: https://broker.example.com/
  transport: socketio
  login_path: /auth/login
  username: node-7
  password: hunter2
  connect_timeout: 3s
workers:
  count: 5
crawler:
  user_agent: test-agent
  delay: 250ms
  request_timeout: 2s
  default_crawl_limit: 3
  random_default_limit: true
robots:
  timeout: 4s
  cache_ttl: 10m
  cache_backend: redis
  redis_addr: redis:6379
ratelimit:
  rps: 2.5
  burst: 2
server:
  enabled: false
logging:
  development: false
  level: debug
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Broker.Username != "node-7" || cfg.Broker.ConnectTimeout != 3*time.Second {
		t.Fatalf("expected broker overrides to apply: %+v", cfg.Broker)
	}
	if got := cfg.Broker.LoginURL(); got != "https://broker.example.com/auth/login" {
		t.Fatalf("unexpected login url %q", got)
	}
	if cfg.Workers.Count != 5 {
		t.Fatalf("expected 5 workers, got %d", cfg.Workers.Count)
	}
	if cfg.Crawler.Delay != 250*time.Millisecond || !cfg.Crawler.RandomDefaultLimit || cfg.Crawler.DefaultCrawlLimit != 3 {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.Robots.CacheTTL != 10*time.Minute || cfg.Robots.CacheBackend != CacheRedis {
		t.Fatalf("expected robots overrides to apply: %+v", cfg.Robots)
	}
	if cfg.RateLimit.RPS != 2.5 || cfg.RateLimit.Burst != 2 {
		t.Fatalf("expected ratelimit overrides to apply: %+v", cfg.RateLimit)
	}
	if cfg.Server.Enabled || cfg.Logging.Level != "debug" {
		t.Fatalf("expected server/logging overrides to apply")
	}
	if cfg.Broker.Kafka.TaskTopic != "firmlight.tasks" {
		t.Fatalf("expected kafka defaults to survive, got %+v", cfg.Broker.Kafka)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FIRMLIGHT_BROKER_ACCESS_TOKEN", "token-from-env")
	t.Setenv("FIRMLIGHT_WORKERS_COUNT", "2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Broker.AccessToken != "token-from-env" {
		t.Fatalf("expected token from env, got %q", cfg.Broker.AccessToken)
	}
	if cfg.Workers.Count != 2 {
		t.Fatalf("expected workers from env, got %d", cfg.Workers.Count)
	}
	if cfg.Crawler.Delay != time.Second || cfg.Crawler.RequestTimeout != 5*time.Second {
		t.Fatalf("unexpected crawler defaults: %+v", cfg.Crawler)
	}
	if cfg.Robots.Timeout != 10*time.Second || cfg.Robots.CacheTTL != 0 {
		t.Fatalf("unexpected robots defaults: %+v", cfg.Robots)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Broker:  BrokerConfig{URL: "http://localhost:3000", Transport: TransportSocketIO, AccessToken: "t"},
		Workers: WorkersConfig{Count: 3},
		Crawler: CrawlerConfig{RequestTimeout: time.Second, DefaultCrawlLimit: 5},
		Robots:  RobotsConfig{Timeout: time.Second},
		Server:  ServerConfig{Enabled: true, Port: 8080},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "unknown transport", mutate: func(c *Config) { c.Broker.Transport = "carrier-pigeon" }, want: "broker.transport"},
		{name: "missing credentials", mutate: func(c *Config) { c.Broker.AccessToken = "" }, want: "broker.access_token"},
		{name: "missing url", mutate: func(c *Config) { c.Broker.URL = "" }, want: "broker.url"},
		{
			name: "kafka without brokers",
			mutate: func(c *Config) {
				c.Broker.Transport = TransportKafka
				c.Broker.Kafka = KafkaConfig{TaskTopic: "a", ResultTopic: "b"}
			},
			want: "broker.kafka.brokers",
		},
		{
			name: "kafka without topics",
			mutate: func(c *Config) {
				c.Broker.Transport = TransportKafka
				c.Broker.Kafka = KafkaConfig{Brokers: []string{"k:9092"}}
			},
			want: "broker.kafka.task_topic",
		},
		{name: "zero workers", mutate: func(c *Config) { c.Workers.Count = 0 }, want: "workers.count"},
		{name: "six workers", mutate: func(c *Config) { c.Workers.Count = 6 }, want: "workers.count"},
		{name: "negative delay", mutate: func(c *Config) { c.Crawler.Delay = -time.Second }, want: "crawler.delay"},
		{name: "zero request timeout", mutate: func(c *Config) { c.Crawler.RequestTimeout = 0 }, want: "crawler.request_timeout"},
		{name: "zero default limit", mutate: func(c *Config) { c.Crawler.DefaultCrawlLimit = 0 }, want: "crawler.default_crawl_limit"},
		{name: "zero robots timeout", mutate: func(c *Config) { c.Robots.Timeout = 0 }, want: "robots.timeout"},
		{
			name: "unknown cache backend",
			mutate: func(c *Config) {
				c.Robots.CacheTTL = time.Minute
				c.Robots.CacheBackend = "disk"
			},
			want: "robots.cache_backend",
		},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.Robots.CacheTTL = time.Minute
				c.Robots.CacheBackend = CacheRedis
			},
			want: "robots.redis_addr",
		},
		{name: "rps without burst", mutate: func(c *Config) { c.RateLimit.RPS = 1 }, want: "ratelimit.burst"},
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
