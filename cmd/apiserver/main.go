// API server entry point for the substance resolver.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/substance-resolver/internal/app"
	"github.com/turtacn/substance-resolver/internal/config"
	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/substance-resolver/internal/infrastructure/snapshot"
	grpcserver "github.com/turtacn/substance-resolver/internal/interfaces/grpc"
	httpserver "github.com/turtacn/substance-resolver/internal/interfaces/http"
	"github.com/turtacn/substance-resolver/internal/interfaces/http/handlers"
	"github.com/turtacn/substance-resolver/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: SUBRES_* environment only)")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}
	if *grpcPort > 0 {
		cfg.GRPC.Port = *grpcPort
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("API server failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	logger.Info("starting substance resolver API server",
		logging.String("version", version),
		logging.Int("http_port", cfg.Server.Port),
		logging.String("reference_source", cfg.Reference.Source),
		logging.Bool("grpc_enabled", cfg.GRPC.Enabled),
	)
	gin.SetMode(cfg.Server.Mode)

	var metrics *prometheus.AppMetrics
	var collector prometheus.MetricsCollector
	if cfg.Metrics.Enabled {
		c, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, logger.Named("metrics"))
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		collector = c
		metrics = prometheus.NewAppMetrics(c)
	}

	infra, err := app.InitInfrastructure(ctx, cfg, app.NeedsFor(cfg), logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	src, err := app.NewSource(cfg, infra)
	if err != nil {
		return err
	}

	var grpcSrv *grpcserver.Server
	if cfg.GRPC.Enabled {
		grpcSrv = grpcserver.NewServer(cfg.GRPC,
			grpcserver.WithLogger(logger.Named("grpc")),
			grpcserver.WithGracefulTimeout(cfg.Server.ShutdownTimeout),
		)
	}

	holder := substance.NewHolder(nil)
	reloader := &app.Reloader{
		Source:  src,
		Holder:  holder,
		Timeout: cfg.Reference.LoadTimeout,
		Logger:  logger.Named("reference"),
		OnSwap: func(*substance.Store) {
			if grpcSrv != nil {
				grpcSrv.UpdateHealth(holder)
			}
		},
	}
	if metrics != nil {
		reloader.Observer = metrics
	}

	// The server starts even when the first load fails; readiness reports
	// the store as unavailable until a reload succeeds.
	if err := reloader.Reload(ctx); err != nil {
		logger.Error("initial reference load failed", logging.Err(err))
	}

	if cfg.Reference.Source == config.SourceFile && cfg.Reference.File.Watch {
		w := snapshot.NewWatcher(cfg.Reference.File.Path, cfg.Reference.File.Debounce,
			reloader.Reload, logger.Named("watcher"))
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("snapshot watcher stopped", logging.Err(err))
			}
		}()
	}

	svcs, err := app.NewServices(cfg, holder, infra, metrics, logger)
	if err != nil {
		return err
	}

	checkers := append([]handlers.HealthChecker{handlers.StoreChecker(holder)}, infra.HealthCheckers()...)
	logCfg := middleware.DefaultLoggingConfig()
	if cfg.Server.SlowRequest > 0 {
		logCfg.SlowThreshold = cfg.Server.SlowRequest
	}
	routerCfg := httpserver.RouterConfig{
		ResolutionHandler: handlers.NewResolutionHandler(svcs.Resolution),
		InsightsHandler:   handlers.NewInsightsHandler(svcs.Reporting),
		HealthHandler:     handlers.NewHealthHandler(version, checkers...),
		Logger:            logger.Named("http"),
		Logging:           logCfg,
		CORSOrigins:       cfg.Server.CORSAllowedOrigins,
	}
	if cfg.Server.RateLimit > 0 {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.Server.RateLimit
		rl.Burst = cfg.Server.RateBurst
		routerCfg.RateLimit = rl
	}
	if metrics != nil {
		routerCfg.Recorder = metrics
		routerCfg.MetricsHandler = collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	httpSrv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger.Named("http"))

	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.Start() }()
	if grpcSrv != nil {
		go func() { errCh <- grpcSrv.Start() }()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-errCh:
		logger.Error("server stopped unexpectedly", logging.Err(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if stopErr := httpSrv.Stop(shutdownCtx); stopErr != nil {
		logger.Error("HTTP server shutdown error", logging.Err(stopErr))
	}
	if grpcSrv != nil {
		if stopErr := grpcSrv.Stop(shutdownCtx); stopErr != nil {
			logger.Error("gRPC server shutdown error", logging.Err(stopErr))
		}
	}
	logger.Info("servers stopped")
	return err
}
