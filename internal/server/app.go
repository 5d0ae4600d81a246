// Package server builds the worker node from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/firmlight-worker/internal/api"
	"github.com/JakeFAU/firmlight-worker/internal/broker"
	kafkabroker "github.com/JakeFAU/firmlight-worker/internal/broker/kafka"
	"github.com/JakeFAU/firmlight-worker/internal/broker/socketio"
	"github.com/JakeFAU/firmlight-worker/internal/clock/system"
	"github.com/JakeFAU/firmlight-worker/internal/config"
	"github.com/JakeFAU/firmlight-worker/internal/crawler"
	"github.com/JakeFAU/firmlight-worker/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/firmlight-worker/internal/fetcher/colly"
	"github.com/JakeFAU/firmlight-worker/internal/handler"
	"github.com/JakeFAU/firmlight-worker/internal/id/uuid"
	"github.com/JakeFAU/firmlight-worker/internal/inflight"
	"github.com/JakeFAU/firmlight-worker/internal/policy/ratelimit"
	"github.com/JakeFAU/firmlight-worker/internal/policy/robots"
	queueMemory "github.com/JakeFAU/firmlight-worker/internal/queue/memory"
	"github.com/JakeFAU/firmlight-worker/internal/task"
	"github.com/JakeFAU/firmlight-worker/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// App contains the node's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	nodeID    string
	channel   broker.Channel
	events    *broker.Events
	queue     *queueMemory.Queue
	tracker   *inflight.Tracker
	dispatch  *dispatcher.Dispatcher
	apiServer *api.Server
	cleanup   func() error
	ready     atomic.Bool
}

// Connector establishes the control channel.
type Connector func(ctx context.Context, cfg config.Config, logger *zap.Logger) (broker.Channel, error)

// Build creates the node's dependencies and connects to the broker. A
// connect or login failure is returned as is; callers treat it as fatal.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	return BuildWith(ctx, cfg, logger, Connect)
}

// BuildWith is Build with a custom control channel connector.
func BuildWith(ctx context.Context, cfg config.Config, logger *zap.Logger, connect Connector) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ids := uuid.New()
	clock := system.New()
	app := &App{
		cfg:     cfg,
		logger:  logger,
		nodeID:  ids.NodeID(),
		queue:   queueMemory.NewQueue(),
		tracker: inflight.NewTracker(ids, clock),
	}
	logger = logger.With(zap.String("node", app.nodeID))
	app.logger = logger
	logger.Info("building worker node",
		zap.String("transport", cfg.Broker.Transport),
		zap.Int("workers", cfg.Workers.Count),
	)

	engine, cleanup, err := NewCrawlEngine(ctx, cfg, logger.Named("crawler"))
	if err != nil {
		return nil, err
	}
	app.cleanup = cleanup

	registry := NewRegistry(engine, cfg.Crawler, logger.Named("handler"))

	channel, err := connect(ctx, cfg, logger.Named("broker"))
	if err != nil {
		_ = cleanup()
		return nil, err
	}
	app.channel = channel

	workers := make([]*worker.Worker, 0, cfg.Workers.Count)
	for i := 0; i < cfg.Workers.Count; i++ {
		workers = append(workers, worker.New(
			i,
			app.queue,
			registry,
			channel,
			app.tracker,
			clock,
			logger.Named("worker"),
		))
	}
	app.dispatch, err = dispatcher.New(app.queue, workers)
	if err != nil {
		_ = channel.Close()
		_ = cleanup()
		return nil, fmt.Errorf("dispatcher init failed: %w", err)
	}
	app.events = broker.NewEvents(app.dispatch, clock, logger.Named("events"))
	app.apiServer = api.NewServer(
		app.tracker,
		app.dispatch,
		app,
		app.nodeID,
		app.dispatch.Size(),
		logger.Named("api"),
	)
	return app, nil
}

// Connect logs in when needed and opens the configured transport.
func Connect(ctx context.Context, cfg config.Config, logger *zap.Logger) (broker.Channel, error) {
	switch cfg.Broker.Transport {
	case config.TransportKafka:
		return kafkabroker.Dial(ctx, kafkabroker.Config{
			Brokers:     cfg.Broker.Kafka.Brokers,
			TaskTopic:   cfg.Broker.Kafka.TaskTopic,
			ResultTopic: cfg.Broker.Kafka.ResultTopic,
			GroupID:     cfg.Broker.Kafka.GroupID,
			DialTimeout: cfg.Broker.ConnectTimeout,
		}, logger)
	default:
		token := cfg.Broker.AccessToken
		if token == "" {
			client := &http.Client{Timeout: cfg.Broker.ConnectTimeout}
			var err error
			token, err = broker.Login(ctx, client, cfg.Broker.LoginURL(), broker.Credentials{
				UsernameOrEmail: cfg.Broker.Username,
				Password:        cfg.Broker.Password,
			})
			if err != nil {
				logger.Error("login failed", zap.String("user", cfg.Broker.Username), zap.Error(err))
				return nil, err
			}
			logger.Info("logged in", zap.String("user", cfg.Broker.Username))
		}
		return socketio.Dial(ctx, socketio.Config{
			URL:              cfg.Broker.URL,
			Token:            token,
			HandshakeTimeout: cfg.Broker.ConnectTimeout,
		}, logger)
	}
}

// NewCrawlEngine wires the fetcher, robots gate, per-host limiter and
// politeness pause into a crawl engine. The returned func releases the
// robots cache connection, if any.
func NewCrawlEngine(ctx context.Context, cfg config.Config, logger *zap.Logger) (*crawler.Engine, func() error, error) {
	cleanup := func() error { return nil }

	var cache robots.Cache
	if cfg.Robots.CacheTTL > 0 {
		switch cfg.Robots.CacheBackend {
		case config.CacheRedis:
			client := redis.NewClient(&redis.Options{Addr: cfg.Robots.RedisAddr})
			if err := client.Ping(ctx).Err(); err != nil {
				logger.Warn("robots cache unreachable, lookups will fall back to fetching",
					zap.String("addr", cfg.Robots.RedisAddr), zap.Error(err))
			}
			cache = robots.NewRedisCache(client, cfg.Robots.RedisPrefix)
			cleanup = client.Close
			logger.Info("robots cache enabled", zap.String("backend", "redis"), zap.Duration("ttl", cfg.Robots.CacheTTL))
		default:
			cache = robots.NewMemoryCache(system.New())
			logger.Info("robots cache enabled", zap.String("backend", "memory"), zap.Duration("ttl", cfg.Robots.CacheTTL))
		}
	}

	gate := robots.NewGate(robots.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Robots.Timeout,
		CacheTTL:  cfg.Robots.CacheTTL,
	}, &http.Client{Timeout: cfg.Robots.Timeout}, cache, logger.Named("robots"))

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Timeout:     cfg.Crawler.RequestTimeout,
		MaxBodySize: cfg.Crawler.MaxBodyBytes,
	})
	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst})
	if cfg.RateLimit.RPS > 0 {
		logger.Info("per-host rate limit enabled",
			zap.Float64("rps", cfg.RateLimit.RPS), zap.Int("burst", cfg.RateLimit.Burst))
	}

	engine := crawler.NewEngine(
		crawler.Config{Delay: cfg.Crawler.Delay},
		fetcher,
		gate,
		limiter,
		crawler.TimerPauser{},
		logger,
	)
	return engine, cleanup, nil
}

// NewRegistry registers the MEAN, FACTORIZATION and CRAWLER handlers.
func NewRegistry(engine handler.Crawler, cfg config.CrawlerConfig, logger *zap.Logger) *handler.Registry {
	var limits handler.LimitSource = handler.FixedLimit(cfg.DefaultCrawlLimit)
	if cfg.RandomDefaultLimit {
		limits = handler.RandomLimit{Min: 1, Max: cfg.DefaultCrawlLimit}
	}
	registry := handler.NewRegistry()
	registry.Register(task.TypeMean, task.HandlerFunc(handler.Mean))
	registry.Register(task.TypeFactorization, task.HandlerFunc(handler.Factorization))
	registry.Register(task.TypeCrawler, handler.NewCrawl(engine, limits, logger))
	return registry
}

// Ready reports whether the control channel is being served.
func (a *App) Ready() bool {
	return a.ready.Load()
}

// Run serves the control channel and the worker pool until a signal arrives,
// ctx ends or the broker disconnects. A broker disconnect is returned as an
// error; in-flight tasks are abandoned.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.logger.Info("dispatcher started", zap.Int("workers", a.dispatch.Size()))
		a.dispatch.Run(ctx)
	}()

	var srv *http.Server
	if a.cfg.Server.Enabled {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
			Handler:           a.apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("ops server started", zap.Int("port", a.cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("ops server error", zap.Error(err))
			}
		}()
	}

	a.ready.Store(true)
	serveErr := a.channel.Serve(ctx, a.events.Handle)
	a.ready.Store(false)
	if serveErr != nil {
		a.logger.Error("control channel lost", zap.Error(serveErr))
	} else {
		a.logger.Info("shutdown initiated")
	}

	cancel()
	a.queue.Close()
	wg.Wait()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("ops server shutdown error", zap.Error(err))
		}
	}
	if err := a.Close(); err != nil {
		a.logger.Warn("close failed", zap.Error(err))
	}
	return serveErr
}

// Close releases the control channel and the robots cache.
func (a *App) Close() error {
	var errs []error
	if a.channel != nil {
		if err := a.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if a.cleanup != nil {
		if err := a.cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("close robots cache: %w", err))
		}
	}
	a.logger.Info("shutdown complete", zap.Uint64("tasks_completed", a.tracker.Completed()))
	return errors.Join(errs...)
}
