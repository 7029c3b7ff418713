package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mapplot/customer-atlas/internal/application/filter"
	"github.com/mapplot/customer-atlas/internal/application/mapview"
	"github.com/mapplot/customer-atlas/internal/config"
	"github.com/mapplot/customer-atlas/internal/infrastructure/crm"
	redisdb "github.com/mapplot/customer-atlas/internal/infrastructure/database/redis"
	"github.com/mapplot/customer-atlas/internal/infrastructure/geocoder"
	"github.com/mapplot/customer-atlas/internal/infrastructure/mapengine"
	"github.com/mapplot/customer-atlas/internal/infrastructure/messaging/kafka"
	"github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/prometheus"
	atlashttp "github.com/mapplot/customer-atlas/internal/interfaces/http"
	"github.com/mapplot/customer-atlas/internal/interfaces/http/handlers"
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the map service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return err
	}
	logging.SetDefault(logger)

	// With a config file in play, watch it and hot-apply the log level;
	// everything else requires a restart.
	if cfgFile != "" {
		config.Watch(cfgFile, func(next *config.Config) {
			if setter, ok := logger.(logging.LevelSetter); ok {
				setter.SetLevel(next.Log.Level)
			}
			logger.Info("configuration reloaded",
				logging.String("log_level", next.Log.Level),
			)
		})
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := prommetrics.New(registry)

	var checkers []handlers.HealthChecker

	// The geocode cache is optional: without Redis every lookup hits the
	// upstream geocoder directly.
	upstream := geocoder.NewClient(cfg.Geocoder, logger)
	var resolver mapview.Geocoder = upstream
	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = redisdb.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		defer redisClient.Close()
		cache := redisdb.NewCache(redisClient, cfg.Redis.KeyPrefix, logger)
		resolver = geocoder.NewCached(upstream, cache, cfg.Geocoder.CacheTTL, metrics, logger)
		checkers = append(checkers, handlers.HealthCheckFunc{
			CheckName: "redis",
			Fn: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}

	engine := mapengine.NewMemoryEngine(
		geo.Point{Lat: cfg.Map.DefaultCenterLat, Lng: cfg.Map.DefaultCenterLng},
		cfg.Map.DefaultZoom,
		logger,
	)
	engine.Load()

	filters := filter.NewEngine()
	layers := mapview.NewLayerManager(engine, cfg.Map, logger)
	radius := mapview.NewRadiusController(resolver, engine, filters, cfg.Radius, logger)
	crmClient := crm.NewClient(cfg.Backend, logger)

	svc := mapview.NewService(crmClient, engine, layers, radius, filters, metrics, cfg, logger)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("serve: initial dataset load failed: %w", err)
	}

	consumer := kafka.NewConsumer(cfg.Kafka, func(ctx context.Context, event kafka.RefreshEvent) error {
		logger.Info("refresh event received",
			logging.String("source", event.Source),
			logging.String("reason", event.Reason),
		)
		return svc.Refresh(ctx)
	}, logger)
	if consumer != nil {
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("refresh consumer stopped", logging.Err(err))
			}
		}()
	}

	router := atlashttp.NewRouter(cfg.Server, atlashttp.RouterDeps{
		Service:  svc,
		Metrics:  metrics,
		Registry: registry,
		Logger:   logger,
		Checkers: checkers,
	})
	server := atlashttp.NewServer(cfg.Server, router, logger)

	logger.Info("customer-atlas started",
		logging.String("version", config.Version),
		logging.Int("port", cfg.Server.Port),
		logging.Bool("redis", redisClient != nil),
		logging.Bool("kafka", consumer != nil),
	)
	return server.Run(ctx)
}
