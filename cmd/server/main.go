package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/sifan077/linkpulse/config"
	appmodel "github.com/sifan077/linkpulse/internal/app/model"
	apprepository "github.com/sifan077/linkpulse/internal/app/repository"
	appserver "github.com/sifan077/linkpulse/internal/app/server"
	appservice "github.com/sifan077/linkpulse/internal/app/service"
	"github.com/sifan077/linkpulse/internal/app/slug"
	inthttp "github.com/sifan077/linkpulse/internal/http/handler"
	"github.com/sifan077/linkpulse/internal/infra/logger"
	infraNATS "github.com/sifan077/linkpulse/internal/infra/nats"
	infraPostgres "github.com/sifan077/linkpulse/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/linkpulse/internal/infra/prometheus"
	infraRedis "github.com/sifan077/linkpulse/internal/infra/redis"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.MustInit(logger.Config{
		Development: os.Getenv("APP_ENV") != "production",
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}
	log = logger.MustInit(logger.FromApp(cfg.App))

	log.Info("Configuration loaded successfully",
		zap.String("env", cfg.App.Env),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.String("click_transport", cfg.Clicks.Transport),
	)

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("linkpulse exited", zap.Error(err))
	}
	log.Info("linkpulse stopped")
}

type stores struct {
	links  apprepository.LinkRepository
	clicks apprepository.ClickEventRepository
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	var (
		st      stores
		checks  = map[string]inthttp.HealthCheck{}
		closers []func()
	)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		gormDB, err := infraPostgres.NewGorm(cfg.Postgres, log)
		if err != nil {
			return err
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			return fmt.Errorf("access underlying SQL DB: %w", err)
		}
		closers = append(closers, func() { _ = sqlDB.Close() })

		if err := infraPostgres.AutoMigrate(ctx, gormDB,
			&appmodel.Link{}, &appmodel.SlugReservation{}, &appmodel.ClickEvent{}); err != nil {
			return err
		}

		pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		closers = append(closers, pool.Close)
		checks["postgres"] = pool.Ping
		log.Info("Connected to Postgres successfully")

		st = stores{
			links:  apprepository.NewLinkRepository(gormDB),
			clicks: apprepository.NewClickEventRepository(gormDB),
		}
	case config.StorageDriverMemory:
		log.Warn("Using in-memory storage; data is lost on restart")
		mem := apprepository.NewMemoryStore()
		st = stores{links: mem, clicks: mem}
	}

	// The filter refresher reads reservations from the store directly.
	slugSource := st.links

	if cfg.Redis.Enabled {
		redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		st.links = apprepository.NewCachedLinkRepository(st.links,
			infraRedis.NewLinkCache(redisClient, cfg.Links.CacheTTL), logger.Component("cache"))
		log.Info("Connected to Redis successfully")
	}

	metrics := infraPrometheus.NewMetrics(prom.DefaultRegisterer)
	if !cfg.App.Development() {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, prom.DefaultGatherer, log)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		closers = append(closers, func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		})
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	registry := slug.NewRegistry(slug.RegistryConfig{
		Length:              cfg.Links.SlugLength,
		MaxAttempts:         cfg.Links.MaxAttempts,
		FilterCapacity:      cfg.Links.FilterCapacity,
		FilterFalsePositive: cfg.Links.FilterFalsePositive,
		Logger:              logger.Component("slug"),
		Metrics:             metrics,
	})
	refresher := appservice.NewSlugFilterRefresher(logger.Component("slug-filter"), slugSource, registry, cfg.Links.FilterRefreshInterval)
	refresher.Start()
	closers = append(closers, refresher.Stop)

	recorder := appservice.NewClickRecorder(st.clicks, logger.Component("clicks"), metrics)

	var (
		natsConn *nats.Conn
		js       nats.JetStreamContext
	)
	if cfg.NATS.Enabled {
		conn, stream, err := infraNATS.Connect(cfg.NATS, logger.Component("nats"))
		if err != nil {
			return err
		}
		natsConn, js = conn, stream
		closers = append(closers, func() { _ = natsConn.Drain() })
		checks["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return errors.New("nats: not connected")
			}
			return nil
		}
		log.Info("Connected to NATS successfully", zap.String("url", infraNATS.URL(cfg.NATS)))
	}

	var dispatcher appservice.ClickDispatcher
	switch cfg.Clicks.Transport {
	case config.ClickTransportNATS:
		consumer := appservice.NewClickConsumer(js, logger.Component("click-consumer"), recorder, cfg.Clicks.RecordTimeout)
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		closers = append(closers, consumer.Stop)
		dispatcher = appservice.NewClickPublisher(js, logger.Component("click-publisher"), metrics, cfg.Clicks.QueueSize)
	default:
		dispatcher = appservice.NewInProcessDispatcher(recorder, appservice.DispatcherConfig{
			Workers:       cfg.Clicks.Workers,
			QueueSize:     cfg.Clicks.QueueSize,
			RecordTimeout: cfg.Clicks.RecordTimeout,
			Logger:        logger.Component("click-dispatcher"),
			Metrics:       metrics,
		})
	}

	server := appserver.New(appserver.Dependencies{
		Logger:  log,
		Metrics: metrics,
		Links: appservice.NewLinkService(appservice.LinkServiceDeps{
			Repo:     st.links,
			Registry: registry,
			Logger:   logger.Component("links"),
			Metrics:  metrics,
		}),
		Resolver: appservice.NewResolver(appservice.ResolverDeps{
			Links:        st.links,
			Logger:       logger.Component("resolver"),
			Metrics:      metrics,
			RetryBackoff: cfg.Resolve.RetryBackoff,
		}),
		Analytics: appservice.NewAnalytics(appservice.AnalyticsDeps{
			Links:        st.links,
			Clicks:       st.clicks,
			Logger:       logger.Component("analytics"),
			RetryBackoff: cfg.Resolve.RetryBackoff,
		}),
		Clicks:      dispatcher,
		Checks:      checks,
		ProxyHeader: cfg.App.ProxyHeader,
	})

	listenErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		log.Info("Starting HTTP server", zap.String("addr", addr))
		listenErr <- server.Listen(addr)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber server exited: %w", err)
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	timeout := cfg.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shut down HTTP server cleanly", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn("Click dispatcher did not drain before the deadline", zap.Error(err))
	}
	return nil
}
