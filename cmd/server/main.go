package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jsalvarredy/grafana-otel-demo/internal/api"
	"github.com/jsalvarredy/grafana-otel-demo/internal/circuitbreaker"
	"github.com/jsalvarredy/grafana-otel-demo/internal/clock"
	"github.com/jsalvarredy/grafana-otel-demo/internal/log"
	"github.com/jsalvarredy/grafana-otel-demo/internal/order"
	"github.com/jsalvarredy/grafana-otel-demo/internal/products"
	"github.com/jsalvarredy/grafana-otel-demo/internal/session"
	"github.com/jsalvarredy/grafana-otel-demo/internal/telemetry"
)

const (
	serviceName    = "order-service"
	serviceVersion = "1.0.0"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "order-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	env := envOrDefault("ENV", string(log.EnvironmentLocal))

	logger, err := log.NewZap(log.ZapConfig{
		Environment:     log.Environment(env),
		Level:           envOrDefault("LOG_LEVEL", "info"),
		OTelLibraryName: serviceName,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.Initialize(&telemetry.Config{
		LibraryName:               serviceName,
		ServiceName:               serviceName,
		ServiceVersion:            serviceVersion,
		DeploymentEnv:             env,
		CollectorExporterEndpoint: envOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		EnableTelemetry:           envBool("ENABLE_TELEMETRY", true),
		Logger:                    logger,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer tel.Shutdown()

	clk := clock.NewSystem()
	tracer := tel.TracerProvider.Tracer(serviceName)
	metrics := tel.MetricsFactory

	breakers := circuitbreaker.NewManager(logger)
	breaker := breakers.GetOrCreate(products.DependencyName, circuitbreaker.DefaultConfig())

	productsClient := products.NewClient(
		envOrDefault("PRODUCTS_BASE_URL", "http://localhost:8081"),
		breaker,
		metrics,
		logger,
	)

	sessions := session.NewTracker(session.DefaultIdleTimeout, clk)

	unregisterGauge, err := metrics.RegisterObservableGauge(telemetry.MetricActiveSessions, func() int64 {
		return int64(sessions.ActiveCount())
	})
	if err != nil {
		return fmt.Errorf("register sessions gauge: %w", err)
	}
	defer unregisterGauge()

	service := order.NewService(order.ServiceConfig{
		Sessions: sessions,
		Products: productsClient,
		Metrics:  metrics,
		Tracer:   tracer,
		Logger:   logger,
		Clock:    clk,
	})

	app := api.NewRouter(api.RouterConfig{
		Service:  service,
		Breakers: breakers,
		Metrics:  metrics,
		Tracer:   tracer,
		Logger:   logger,
		Clock:    clk,
	})

	address := ":" + envOrDefault("PORT", "8080")

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("Starting HTTP server on %s", address)

		if listenErr := app.Listen(address); listenErr != nil {
			serverErrors <- listenErr
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Infof("Received %s, shutting down", sig)
	case err = <-serverErrors:
		logger.Errorf("HTTP server error: %v", err)
	}

	if shutdownErr := app.Shutdown(); shutdownErr != nil {
		logger.Errorf("HTTP shutdown error: %v", shutdownErr)
	}

	logger.Info("Shutdown complete")

	return err
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func envBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}

	return parsed
}
