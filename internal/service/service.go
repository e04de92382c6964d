// Package service assembles the radmeter process: storage, cache, sessions,
// aggregation, alerting, ingestion and the HTTP surface.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hosaammohammed1999-ai/radmeter1/common/database"
	mqttcommon "github.com/hosaammohammed1999-ai/radmeter1/common/mqtt"
	rediscommon "github.com/hosaammohammed1999-ai/radmeter1/common/redis"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/aggregator"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/alerting"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/attendance"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/cache"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/config"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/consumer"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/httpapi"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/metrics"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/session"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/timeengine"
)

// storeRateWindow bounds the stored-readings fallback for the recent dose rate.
const storeRateWindow = time.Hour

// Infra is the external plumbing a Service runs on. Redis and MQTT are optional.
type Infra struct {
	Store repository.Store
	Clock timeengine.Clock
	Redis *redis.Client
	MQTT  consumer.Subscriber
}

// Service owns every long-lived component of the process.
type Service struct {
	cfg     *config.Config
	logger  *zap.Logger
	closers []func() error

	Engine      *timeengine.Engine
	Store       repository.Store
	Cache       *cache.ReadingCache
	Sessions    *session.Manager
	Aggregator  *aggregator.Aggregator
	Scheduler   *aggregator.Scheduler
	WriteBehind *consumer.WriteBehind
	Alerts      *alerting.Service
	Attendance  *attendance.Service
	Metrics     *metrics.Metrics
	// Stream is nil unless Redis is configured.
	Stream *alerting.StreamPublisher

	sessionOps    metrics.SessionOps
	mqtt          *consumer.MQTTConsumer
	mqttConnected func() bool
}

// Open connects to the configured backends and builds the service. The
// caller must Close it.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	infra := Infra{Clock: timeengine.SystemClock{}}
	var closers []func() error
	fail := func(err error) (*Service, error) {
		runClosers(closers, logger)
		return nil, err
	}

	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		closers = append(closers, func() error { return database.Close(db) })
		if _, err := repository.Migrate(ctx, db, logger); err != nil {
			return fail(fmt.Errorf("failed to apply migrations: %w", err))
		}
		infra.Store = repository.NewPostgresStore(db, loc)
	} else {
		logger.Warn("Database disabled, using in-memory store")
		infra.Store = repository.NewMemoryStore(time.Now)
	}

	if cfg.RedisEnabled {
		client := rediscommon.NewRedisClient(&cfg.Redis)
		closers = append(closers, func() error { return rediscommon.Close(client) })
		if err := rediscommon.Ping(ctx, client); err != nil {
			return fail(fmt.Errorf("failed to connect to redis: %w", err))
		}
		infra.Redis = client
	}

	if cfg.MQTTEnabled {
		client, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() error {
			client.Disconnect()
			return nil
		})
		infra.MQTT = client
	}

	s, err := Build(cfg, infra, logger)
	if err != nil {
		return fail(err)
	}
	s.closers = closers
	return s, nil
}

// Build wires the components on top of infra without dialing anything.
func Build(cfg *config.Config, infra Infra, logger *zap.Logger) (*Service, error) {
	if infra.Store == nil {
		return nil, errors.New("service: store is required")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clock := infra.Clock
	if clock == nil {
		clock = timeengine.SystemClock{}
	}
	engine := timeengine.New(loc, clock)
	store := infra.Store
	m := metrics.New()

	c := cache.New(cache.Options{
		MaxReadings:     cfg.Cache.MaxReadings,
		Retention:       cfg.Cache.Retention,
		DefaultSensorID: cfg.Cache.DefaultSensorID,
	}, engine, logger.Named("cache"))

	dose := session.NewCurrentDoseProvider(logger, session.CacheTotalDose(c), session.StoreTotalDose(store))
	rate := session.NewRecentRateProvider(logger,
		session.CacheRecentRate(c, session.RecentRateWindow),
		session.StoreRecentRate(store, engine, storeRateWindow),
	)
	manager := session.NewManager(store, engine, dose, rate, logger.Named("session"))
	sessionOps := m.Sessions(manager)

	s := &Service{
		cfg:        cfg,
		logger:     logger,
		Engine:     engine,
		Store:      store,
		Cache:      c,
		Sessions:   manager,
		Alerts:     alerting.NewService(store),
		Metrics:    m,
		sessionOps: sessionOps,
	}

	var publisher alerting.Publisher = alerting.NopPublisher{}
	var mirror consumer.CachePublisher
	if infra.Redis != nil {
		s.Stream = alerting.NewStreamPublisher(infra.Redis, cfg.Alerts.Stream, cfg.Alerts.StreamMaxLen)
		publisher = s.Stream
		mirror = cache.NewMirror(cache.NewRedisKVStore(infra.Redis), cfg.Cache.MirrorTTL, logger.Named("mirror"))
	}

	checker := alerting.NewChecker(store, publisher, cfg.Alerts.DedupWindow, engine.Now, logger.Named("alerts"))
	s.Aggregator = aggregator.New(store, engine, m.AlertChecker(checker), c, cfg.Scheduler.Interval, logger.Named("aggregator"))
	s.Scheduler = aggregator.NewScheduler(s.Aggregator, manager, aggregator.SchedulerOptions{
		Interval:      cfg.Scheduler.Interval,
		ForceInterval: cfg.Scheduler.ForceInterval,
		StopTimeout:   cfg.Scheduler.StopTimeout,
		StaleAge:      time.Duration(cfg.Scheduler.AutoCheckoutHours) * time.Hour,
	}, logger.Named("scheduler"))

	s.WriteBehind = consumer.NewWriteBehind(c, store, mirror,
		cfg.WriteBehind.Interval, cfg.WriteBehind.FailureBackoff, engine.Now, logger.Named("write_behind"))

	var resolver attendance.IdentityResolver
	if cfg.Attendance.IdentityURL != "" {
		resolver = attendance.NewHTTPIdentityResolver(cfg.Attendance.IdentityURL, cfg.Attendance.Timeout, logger.Named("identity"))
	}
	s.Attendance = attendance.NewService(store, sessionOps, resolver, engine, logger.Named("attendance"))

	if infra.MQTT != nil {
		s.mqtt = consumer.NewMQTTConsumer(infra.MQTT, cfg.MQTTTopic, m.Ingestor(c, "mqtt"), logger.Named("mqtt")).
			WithQoS(cfg.MQTT.QoS)
		if conn, ok := infra.MQTT.(interface{ IsConnected() bool }); ok {
			s.mqttConnected = conn.IsConnected
		}
	}

	m.WatchCache(c.Stats)
	m.WatchWriteBehind(s.WriteBehind.Stats)
	m.WatchScheduler(s.Scheduler.Status)
	return s, nil
}

// Handler returns the instrumented HTTP surface. base outlives requests.
func (s *Service) Handler(base context.Context) http.Handler {
	api := httpapi.New(httpapi.Deps{
		Cache:       s.Cache,
		Ingest:      s.Metrics.Ingestor(s.Cache, "http"),
		Sessions:    s.sessionOps,
		Queries:     s.Sessions,
		Alerts:      s.Alerts,
		Attendance:  s.Attendance,
		Scheduler:   s.Scheduler,
		Store:       s.Store,
		Engine:      s.Engine,
		WriteBehind:   s.WriteBehind.Stats,
		MQTTConnected: s.mqttConnected,
		Metrics:       s.Metrics.Handler(),
		BaseContext:   base,
	}, s.logger.Named("http"))

	router := httpapi.NewRouter(s.logger)
	router.Register(api)
	return s.Metrics.Middleware(router)
}

// WarmCache seeds the reading cache from the most recent stored readings.
func (s *Service) WarmCache(ctx context.Context) int {
	if s.cfg.Cache.WarmReadings <= 0 {
		return 0
	}
	readings, err := s.Store.LatestReadings(ctx, s.cfg.Cache.WarmReadings)
	if err != nil {
		s.logger.Warn("Cache warm-up failed", zap.Error(err))
		return 0
	}
	n := s.Cache.Warm(readings)
	s.logger.Info("Cache warmed", zap.Int("readings", n))
	return n
}

// Run listens on the configured address and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.HTTP.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs every background worker and the HTTP server on ln until ctx is
// cancelled, then shuts down in order: HTTP, scheduler, final flush.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	s.WarmCache(ctx)

	g, gctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Handler:           s.Handler(gctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.Scheduler.Start(gctx); err != nil {
		_ = ln.Close()
		return err
	}

	g.Go(func() error { return s.Cache.RunSweeper(gctx, s.cfg.Cache.SweepInterval) })
	g.Go(func() error { return s.WriteBehind.Run(gctx) })
	if s.mqtt != nil {
		g.Go(func() error { return s.mqtt.Start(gctx) })
	}
	g.Go(func() error {
		s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.HTTP.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if stopErr := s.Scheduler.Stop(); stopErr != nil {
			s.logger.Warn("Scheduler did not stop cleanly", zap.Error(stopErr))
		}
		s.WriteBehind.Flush(shutdownCtx)
		return err
	})

	err := g.Wait()
	s.logger.Info("Service stopped")
	return err
}

// Close releases the backend connections opened by Open.
func (s *Service) Close() error {
	runClosers(s.closers, s.logger)
	s.closers = nil
	return nil
}

func runClosers(closers []func() error, logger *zap.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Error("Error closing backend", zap.Error(err))
		}
	}
}
