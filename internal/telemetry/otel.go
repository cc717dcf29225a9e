// Package telemetry wires the OpenTelemetry providers (traces, metrics, logs)
// and exposes the metric factory consumed across the service.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jsalvarredy/grafana-otel-demo/internal/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

var (
	// ErrNilTelemetryConfig indicates that nil config was provided to Initialize.
	ErrNilTelemetryConfig = errors.New("telemetry config cannot be nil")
	// ErrNilTelemetryLogger indicates that config.Logger is nil.
	ErrNilTelemetryLogger = errors.New("telemetry config logger cannot be nil")
)

// Config holds everything needed to stand up the telemetry pipeline.
type Config struct {
	LibraryName               string
	ServiceName               string
	ServiceVersion            string
	DeploymentEnv             string
	CollectorExporterEndpoint string
	EnableTelemetry           bool
	Logger                    log.Logger
}

// Telemetry owns the configured providers and the metric factory.
type Telemetry struct {
	Config
	TracerProvider *sdktrace.TracerProvider
	MetricProvider *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	MetricsFactory *MetricsFactory
	shutdown       func()
}

func (c *Config) newResource() *sdkresource.Resource {
	// Only custom attributes, to avoid schema URL conflicts with defaults.
	return sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(c.ServiceName),
		semconv.ServiceVersion(c.ServiceVersion),
		semconv.DeploymentEnvironmentName(c.DeploymentEnv),
		semconv.TelemetrySDKLanguageGo,
	)
}

func (c *Config) newTracerExporter(ctx context.Context) (*otlptrace.Exporter, error) {
	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(c.CollectorExporterEndpoint),
		otlptracegrpc.WithInsecure(),
	)
}

func (c *Config) newMetricExporter(ctx context.Context) (*otlpmetricgrpc.Exporter, error) {
	return otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(c.CollectorExporterEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
}

func (c *Config) newLoggerExporter(ctx context.Context) (*otlploggrpc.Exporter, error) {
	return otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(c.CollectorExporterEndpoint),
		otlploggrpc.WithInsecure(),
	)
}

// Shutdown flushes and stops the telemetry providers and exporters.
func (t *Telemetry) Shutdown() {
	t.shutdown()
}

// Initialize stands up the telemetry providers and sets them globally.
//
// When telemetry is disabled, no-op providers are returned but the metric
// factory still works against them, so instrumented code needs no branches.
func Initialize(cfg *Config) (*Telemetry, error) {
	if cfg == nil {
		return nil, ErrNilTelemetryConfig
	}

	if cfg.Logger == nil {
		return nil, ErrNilTelemetryLogger
	}

	ctx := context.Background()
	l := cfg.Logger

	if !cfg.EnableTelemetry {
		l.Warn("Telemetry turned off")

		mp := sdkmetric.NewMeterProvider()
		tp := sdktrace.NewTracerProvider()
		lp := sdklog.NewLoggerProvider()

		factory, err := NewMetricsFactory(mp.Meter(cfg.LibraryName), l)
		if err != nil {
			return nil, err
		}

		return &Telemetry{
			Config:         *cfg,
			TracerProvider: tp,
			MetricProvider: mp,
			LoggerProvider: lp,
			MetricsFactory: factory,
			shutdown:       func() {},
		}, nil
	}

	l.Infof("Initializing telemetry...")

	r := cfg.newResource()

	tExp, err := cfg.newTracerExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't initialize tracer exporter: %w", err)
	}

	mExp, err := cfg.newMetricExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't initialize metric exporter: %w", err)
	}

	lExp, err := cfg.newLoggerExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't initialize logger exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(r),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(mExp)),
	)
	otel.SetMeterProvider(mp)

	factory, err := NewMetricsFactory(mp.Meter(cfg.LibraryName), l)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(tExp),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(r),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(lExp)),
	)
	global.SetLoggerProvider(lp)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdownHandler := func() {
		if err := mp.Shutdown(ctx); err != nil {
			l.Errorf("can't shutdown metric provider: %v", err)
		}

		if err := tp.Shutdown(ctx); err != nil {
			l.Errorf("can't shutdown tracer provider: %v", err)
		}

		if err := lp.Shutdown(ctx); err != nil {
			l.Errorf("can't shutdown logger provider: %v", err)
		}
	}

	l.Infof("Telemetry initialized")

	return &Telemetry{
		Config:         *cfg,
		TracerProvider: tp,
		MetricProvider: mp,
		LoggerProvider: lp,
		MetricsFactory: factory,
		shutdown:       shutdownHandler,
	}, nil
}
