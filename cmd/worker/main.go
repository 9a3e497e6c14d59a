// Worker entry point: consumes acquisition requests from Kafka, looks the
// names up in PubChem, archives the CSV in MinIO and publishes the
// identifiers to the result topic.
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
	"github.com/turtacn/substance-resolver/internal/application/acquisition"
	"github.com/turtacn/substance-resolver/internal/config"
	"github.com/turtacn/substance-resolver/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/substance-resolver/internal/infrastructure/pubchem"
	"github.com/turtacn/substance-resolver/internal/infrastructure/storage/minio"
	httpserver "github.com/turtacn/substance-resolver/internal/interfaces/http"
	"github.com/turtacn/substance-resolver/internal/interfaces/http/handlers"
)

const defaultHealthPort = 8081

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: SUBRES_* environment only)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port of the health and metrics endpoint")
	createTopics := flag.Bool("create-topics", false, "create the request and result topics if missing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *healthPort, *createTopics, logger); err != nil {
		logger.Error("worker failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, healthPort int, createTopics bool, logger logging.Logger) error {
	logger.Info("starting acquisition worker",
		logging.String("version", version),
		logging.Strings("brokers", cfg.Kafka.Brokers),
		logging.String("request_topic", cfg.Kafka.RequestTopic),
		logging.String("result_topic", cfg.Kafka.ResultTopic),
		logging.Int("concurrency", cfg.PubChem.Concurrency),
	)
	gin.SetMode(cfg.Server.Mode)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		Subsystem:            "worker",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger.Named("metrics"))
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	metrics := prometheus.NewAppMetrics(collector)

	if createTopics {
		if err := ensureTopics(ctx, cfg.Kafka, logger); err != nil {
			return err
		}
	}

	needs := app.Needs{MinIO: cfg.MinIO.Endpoint != ""}
	infra, err := app.InitInfrastructure(ctx, cfg, needs, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	lookup, err := pubchem.NewClient(cfg.PubChem.BaseURL, cfg.PubChem.Timeout,
		pubchem.WithUserAgent(cfg.PubChem.UserAgent),
		pubchem.WithLogger(logger.Named("pubchem")),
	)
	if err != nil {
		return err
	}

	producer, err := kafka.NewProducer(cfg.Kafka, logger.Named("producer"))
	if err != nil {
		return err
	}
	defer producer.Close()

	var archive acquisition.Archive
	if infra.MinIO != nil {
		archive = minio.NewArchive(infra.MinIO, cfg.MinIO.ArchiveBucket)
	} else {
		logger.Warn("minio not configured, acquisition batches are not archived")
	}
	svc := acquisition.NewService(lookup, archive,
		kafka.NewIdentifierPublisher(producer, cfg.Kafka.ResultTopic), metrics,
		acquisition.ServiceConfig{Concurrency: cfg.PubChem.Concurrency}, logger)

	consumer, err := kafka.NewConsumer(cfg.Kafka, []string{cfg.Kafka.RequestTopic}, logger.Named("consumer"))
	if err != nil {
		return err
	}
	defer consumer.Close()
	consumer.Subscribe(cfg.Kafka.RequestTopic, kafka.NewAcquisitionHandler(svc, logger))
	consumer.OnOutcome(metrics.ObserveMessage)

	serverCfg := cfg.Server
	serverCfg.Port = healthPort
	router := httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler:  handlers.NewHealthHandler(version, infra.HealthCheckers()...),
		Logger:         logger.Named("http"),
		Recorder:       metrics,
		MetricsHandler: collector.Handler(),
		MetricsPath:    cfg.Metrics.Path,
	})
	healthSrv := httpserver.NewServer(serverCfg, router, logger.Named("http"))
	errCh := make(chan error, 1)
	go func() { errCh <- healthSrv.Start() }()

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	logger.Info("worker started")

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-errCh:
		logger.Error("health server stopped unexpectedly", logging.Err(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if stopErr := healthSrv.Stop(shutdownCtx); stopErr != nil {
		logger.Error("health server shutdown error", logging.Err(stopErr))
	}
	logger.Info("acquisition worker stopped")
	return err
}

func ensureTopics(ctx context.Context, cfg config.KafkaConfig, logger logging.Logger) error {
	tm, err := kafka.NewTopicManager(ctx, cfg.Brokers, logger.Named("topics"))
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(kafka.DefaultTopics(cfg.RequestTopic, cfg.ResultTopic))
}
