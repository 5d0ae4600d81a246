// Package config loads and validates worker node configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Transport names for the control channel.
const (
	TransportSocketIO = "socketio"
	TransportKafka    = "kafka"
)

// Robots cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config captures all node configuration knobs loaded via Viper.
type Config struct {
	Broker    BrokerConfig    `mapstructure:"broker"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Robots    RobotsConfig    `mapstructure:"robots"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// BrokerConfig locates the broker and supplies credentials.
type BrokerConfig struct {
	URL            string        `mapstructure:"url"`
	Transport      string        `mapstructure:"transport"`
	LoginPath      string        `mapstructure:"login_path"`
	AccessToken    string        `mapstructure:"access_token"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Kafka          KafkaConfig   `mapstructure:"kafka"`
}

// KafkaConfig is used when broker.transport is kafka.
type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	TaskTopic   string   `mapstructure:"task_topic"`
	ResultTopic string   `mapstructure:"result_topic"`
	GroupID     string   `mapstructure:"group_id"`
}

// WorkersConfig sizes the worker pool.
type WorkersConfig struct {
	Count int `mapstructure:"count"`
}

// CrawlerConfig governs page fetching and crawl defaults.
type CrawlerConfig struct {
	UserAgent          string        `mapstructure:"user_agent"`
	Delay              time.Duration `mapstructure:"delay"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes       int           `mapstructure:"max_body_bytes"`
	DefaultCrawlLimit  int           `mapstructure:"default_crawl_limit"`
	RandomDefaultLimit bool          `mapstructure:"random_default_limit"`
}

// RobotsConfig controls robots.txt retrieval and caching.
type RobotsConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	CacheBackend string        `mapstructure:"cache_backend"`
	RedisAddr    string        `mapstructure:"redis_addr"`
	RedisPrefix  string        `mapstructure:"redis_prefix"`
}

// RateLimitConfig sets the per-host token bucket. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features and the level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FIRMLIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("broker.url", "http://localhost:3000")
	v.SetDefault("broker.transport", TransportSocketIO)
	v.SetDefault("broker.login_path", "/auth/login")
	v.SetDefault("broker.access_token", "")
	v.SetDefault("broker.username", "")
	v.SetDefault("broker.password", "")
	v.SetDefault("broker.connect_timeout", "10s")
	v.SetDefault("broker.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("broker.kafka.task_topic", "firmlight.tasks")
	v.SetDefault("broker.kafka.result_topic", "firmlight.results")
	v.SetDefault("broker.kafka.group_id", "firmlight-workers")
	v.SetDefault("workers.count", 3)
	v.SetDefault("crawler.user_agent", "firmlight-worker/1.0")
	v.SetDefault("crawler.delay", "1s")
	v.SetDefault("crawler.request_timeout", "5s")
	v.SetDefault("crawler.max_body_bytes", 5*1024*1024)
	v.SetDefault("crawler.default_crawl_limit", 5)
	v.SetDefault("crawler.random_default_limit", false)
	v.SetDefault("robots.timeout", "10s")
	v.SetDefault("robots.cache_ttl", "0s")
	v.SetDefault("robots.cache_backend", CacheMemory)
	v.SetDefault("robots.redis_addr", "localhost:6379")
	v.SetDefault("robots.redis_prefix", "firmlight:robots:")
	v.SetDefault("ratelimit.rps", 0)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.Broker.Transport {
	case TransportSocketIO:
		if c.Broker.URL == "" {
			return fmt.Errorf("broker.url must be set")
		}
		if c.Broker.AccessToken == "" && (c.Broker.Username == "" || c.Broker.Password == "") {
			return fmt.Errorf("broker.access_token or broker.username and broker.password must be set")
		}
	case TransportKafka:
		if len(c.Broker.Kafka.Brokers) == 0 {
			return fmt.Errorf("broker.kafka.brokers must not be empty")
		}
		if c.Broker.Kafka.TaskTopic == "" || c.Broker.Kafka.ResultTopic == "" {
			return fmt.Errorf("broker.kafka.task_topic and broker.kafka.result_topic must be set")
		}
	default:
		return fmt.Errorf("broker.transport must be %q or %q, got %q", TransportSocketIO, TransportKafka, c.Broker.Transport)
	}
	if c.Workers.Count < 1 || c.Workers.Count > 5 {
		return fmt.Errorf("workers.count must be between 1 and 5, got %d", c.Workers.Count)
	}
	if c.Crawler.Delay < 0 {
		return fmt.Errorf("crawler.delay must be >= 0")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.DefaultCrawlLimit < 1 {
		return fmt.Errorf("crawler.default_crawl_limit must be >= 1")
	}
	if c.Robots.Timeout <= 0 {
		return fmt.Errorf("robots.timeout must be > 0")
	}
	if c.Robots.CacheTTL > 0 {
		switch c.Robots.CacheBackend {
		case CacheMemory:
		case CacheRedis:
			if c.Robots.RedisAddr == "" {
				return fmt.Errorf("robots.redis_addr must be set when robots.cache_backend is redis")
			}
		default:
			return fmt.Errorf("robots.cache_backend must be %q or %q", CacheMemory, CacheRedis)
		}
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("ratelimit.burst must be >= 1 when ratelimit.rps is set")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// LoginURL joins the broker URL and login path.
func (c BrokerConfig) LoginURL() string {
	return strings.TrimRight(c.URL, "/") + "/" + strings.TrimLeft(c.LoginPath, "/")
}
