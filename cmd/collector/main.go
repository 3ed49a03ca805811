package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"main/internal/application/service/collector"
	"main/internal/application/service/engine"
	"main/internal/application/service/persist"
	"main/internal/application/service/publish"
	"main/internal/config"
	interfaces "main/internal/domain/interfaces"
	"main/internal/infrastructure/catalog"
	"main/internal/infrastructure/columnar"
	"main/internal/infrastructure/feed"
	"main/internal/infrastructure/metrics"
	"main/internal/infrastructure/statecache"
	"main/internal/infrastructure/transport"
	infrahttp "main/internal/interfaces/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the yaml config")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.Env == "development" {
		logger.SetLevel(logrus.DebugLevel)
	}

	registry := metrics.Init(logger)

	var cat *catalog.Repository
	if cfg.Postgres.DSN != "" {
		cat, err = catalog.NewRepository(ctx, cfg.Postgres.DSN, logger)
		if err != nil {
			logger.Fatalf("failed to init bucket catalog: %v", err)
		}
		defer cat.Close()
		if err := cat.EnsureSchema(ctx); err != nil {
			logger.Fatalf("failed to ensure catalog schema: %v", err)
		}
	}

	supervisors := make([]*collector.Supervisor, 0, len(cfg.Exchanges))
	reporters := make([]infrahttp.StatusReporter, 0, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		// The cache outlives collector generations; reconnects reuse it.
		var cache interfaces.RecordCache
		if cfg.Redis.Addr != "" {
			sc, err := statecache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, ex.Name, logger)
			if err != nil {
				logger.Fatalf("failed to init %s state cache: %v", ex.Name, err)
			}
			defer sc.Close()
			cache = sc
		}

		exCfg := ex
		sup := collector.NewSupervisor(ex.Name, func(buildCtx context.Context) (*collector.Controller, error) {
			return buildCollector(cfg, exCfg, cat, cache, logger)
		}, logger)
		supervisors = append(supervisors, sup)
		reporters = append(reporters, sup)
	}

	handler := infrahttp.NewHandler(reporters, registry)
	server := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: handler,
	}

	go func() {
		logger.Infof("ops server listening on %s", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("ops server error: %v", err)
		}
	}()

	group, groupCtx := errgroup.WithContext(ctx)
	for _, sup := range supervisors {
		s := sup
		group.Go(func() error {
			return s.Run(groupCtx)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("collector error: %v", err)
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("ops server shutdown error: %v", err)
	}
	logger.Info("collector stopped")
}

// buildCollector wires one pipeline generation for an exchange.
func buildCollector(cfg *config.Config, ex config.ExchangeConfig, cat *catalog.Repository, cache interfaces.RecordCache, logger *logrus.Logger) (*collector.Controller, error) {
	adapter, err := newAdapter(ex, logger)
	if err != nil {
		return nil, err
	}

	pub := transport.NewZMQPublisher(ex.Name, ex.TransportPort, logger)
	publisher := publish.New(ex.Name, pub, logger)

	var persister *persist.Service
	var recPersister interfaces.RecordPersister
	if cfg.Persistence.Enabled {
		var bucketCatalog interfaces.BucketCatalog
		if cat != nil {
			bucketCatalog = cat
		}
		persister = persist.New(persist.Config{
			Exchange:    ex.Name,
			Dir:         cfg.Persistence.Dir,
			Interval:    cfg.Persistence.Interval(),
			DrainOnStop: cfg.Persistence.DrainOnStop,
		}, columnar.NewWriter(), bucketCatalog, logger)
		recPersister = persister
	}

	eng := engine.New(ex.Name, ex.Symbols, publisher, recPersister, cache, logger)
	dial := func() (collector.FeedSession, error) {
		return feed.Dial(ex.Name, ex.WSURL, logger)
	}
	return collector.New(adapter, dial, pub, publisher, persister, eng, ex.PingInterval(), logger), nil
}

func newAdapter(ex config.ExchangeConfig, logger *logrus.Logger) (interfaces.FeedAdapter, error) {
	switch ex.Name {
	case "OKX":
		return feed.NewOKXAdapter(ex.Name, logger), nil
	case "BYBIT":
		return feed.NewBybitAdapter(ex.Name, logger), nil
	default:
		return nil, fmt.Errorf("unsupported exchange %q", ex.Name)
	}
}
