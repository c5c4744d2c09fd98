package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/synonym"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/adminkey"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/reloader"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/searcher/router"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/sqlite"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting law search service",
		"port", cfg.Server.Port,
		"corpus_source", cfg.Corpus.Source,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsServer, err := metrics.StartServer(cfg.Metrics.Port)
		if err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer metricsServer.Shutdown(context.Background())
	}

	expander, err := synonym.Load(cfg.Synonyms.Path)
	if err != nil {
		slog.Error("failed to load synonym table", "path", cfg.Synonyms.Path, "error", err)
		os.Exit(1)
	}
	slog.Info("synonym table loaded", "groups", expander.Len())

	backend, err := retrieval.OpenBackend(cfg)
	if err != nil {
		slog.Error("failed to open corpus source", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	engine := retrieval.New(expander, retrieval.OptionsFromConfig(cfg.Search, cfg.Corpus))
	checker := health.NewChecker()
	checker.Register("corpus", func(context.Context) health.ComponentHealth {
		st := engine.Stats()
		if !engine.Loaded() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "corpus not loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d fragments", st.Generation, st.FragmentCount),
		}
	})
	checker.Register("corpus_source", backend.Ping)

	queryCache := openCache(cfg, m, checker)
	engine.OnSwap(func(s *retrieval.Snapshot) {
		st := s.Stats()
		if m != nil {
			m.SetCorpus(st.FragmentCount, st.SkippedCount, st.Generation)
		}
		if queryCache != nil {
			if _, err := queryCache.Invalidate(context.Background()); err != nil {
				slog.Warn("cache invalidation after reload failed", "error", err)
			}
		}
	})

	aggregator := analytics.NewAggregator(cfg.Analytics.TopN)
	var collector *analytics.Collector
	var snapshots *analytics.SnapshotStore
	if cfg.Analytics.Enabled {
		collector, snapshots = startAnalytics(ctx, cfg, backend, aggregator, m, checker)
		defer collector.Close()
	}

	var tracker reloader.Tracker
	if collector != nil {
		tracker = collector
	}
	rl := reloader.New(engine, backend.Source, cfg.Corpus.LoadTimeout, m, tracker)
	if _, err := rl.Reload(ctx, reloader.TriggerStartup); err != nil {
		if !cfg.Corpus.AllowEmpty {
			slog.Error("initial corpus load failed", "error", err)
			os.Exit(1)
		}
		slog.Warn("initial corpus load failed, serving an empty corpus", "error", err)
	}

	if cfg.Kafka.Enabled && cfg.Kafka.Topics.CorpusReload != "" {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusReload, rl.HandleMessage())
		go func() {
			if err := consumer.Run(ctx); err != nil {
				slog.Error("corpus reload consumer stopped", "error", err)
			}
		}()
		slog.Info("listening for reload requests", "topic", cfg.Kafka.Topics.CorpusReload)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit)
		go limiter.Run(ctx, 5*time.Minute)
	}

	deps := handler.Deps{
		Engine:   engine,
		Reloader: rl,
		Cache:    queryCache,
		Tracer:   tracing.NewTracer(cfg.Tracing.Enabled, cfg.Tracing.SampleRate),
		Metrics:  m,
	}
	if collector != nil {
		deps.Tracker = collector
	}
	services := router.Services{
		Search:  handler.New(deps, cfg.Search, cfg.Corpus.AllowEmpty),
		Health:  checker,
		Limiter: limiter,
		Metrics: m,
	}
	if cfg.Analytics.Enabled {
		services.Analytics = analytics.NewHandler(aggregator, snapshots)
	}
	if cfg.Admin.Enabled {
		admin := adminkey.NewStore(backend.DB, backend.Driver, cfg.Admin.Keys)
		if err := admin.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare admin key table", "error", err)
			os.Exit(1)
		}
		services.Admin = admin
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.New(services, cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("law search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("law search service stopped")
}

// openCache connects to Redis when enabled. An unreachable Redis disables
// caching instead of failing startup.
func openCache(cfg *config.Config, m *metrics.Metrics, checker *health.Checker) *cache.QueryCache {
	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "addr", cfg.Redis.Addr, "error", err)
		return nil
	}
	checker.RegisterOptional("redis", client.Check)
	slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	return cache.New(client, cfg.Redis, m)
}

// startAnalytics wires the collector to Kafka when enabled, otherwise
// straight into the in-process aggregator, and starts persisting
// snapshots when configured.
func startAnalytics(
	ctx context.Context,
	cfg *config.Config,
	backend *retrieval.Backend,
	agg *analytics.Aggregator,
	m *metrics.Metrics,
	checker *health.Checker,
) (*analytics.Collector, *analytics.SnapshotStore) {
	var sink analytics.Sink = agg
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.AnalyticsEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		sink = analytics.NewKafkaSink(producer)
		consumer := kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleMessage(agg))
		go func() {
			if err := consumer.Run(ctx); err != nil {
				slog.Error("analytics consumer stopped", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			producer.Close()
		}()
		checker.RegisterOptional("kafka", kafka.Check(cfg.Kafka.Brokers))
		slog.Info("analytics events routed through kafka", "topic", topic)
	}

	var store *analytics.SnapshotStore
	if cfg.Analytics.SnapshotInterval > 0 {
		store = startSnapshots(ctx, cfg, backend, agg)
	}

	collector := analytics.NewCollector(sink, cfg.Analytics, m)
	collector.Start(ctx)
	return collector, store
}

func startSnapshots(ctx context.Context, cfg *config.Config, backend *retrieval.Backend, agg *analytics.Aggregator) *analytics.SnapshotStore {
	db, driver := backend.DB, backend.Driver
	closeDB := func() error { return nil }
	if db == nil {
		client, err := sqlite.New(cfg.SQLite)
		if err != nil {
			slog.Warn("analytics snapshots disabled", "error", err)
			return nil
		}
		db, driver, closeDB = client.DB, sqlite.DriverName, client.Close
	}
	store := analytics.NewSnapshotStore(db, driver)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Warn("analytics snapshots disabled", "error", err)
		closeDB()
		return nil
	}
	if latest, err := store.Latest(ctx); err != nil {
		slog.Warn("could not restore analytics snapshot", "error", err)
	} else if latest != nil {
		agg.Restore(*latest)
		slog.Info("analytics restored from snapshot", "total_searches", latest.TotalSearches)
	}
	go func() {
		store.Run(ctx, agg, cfg.Analytics.SnapshotInterval)
		closeDB()
	}()
	return store
}
