package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jsalvarredy/grafana-otel-demo/internal/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MetricsFactory provides a thread-safe factory for creating and managing
// OpenTelemetry instruments with lazy initialization using sync.Map for
// high-performance concurrent access.
type MetricsFactory struct {
	meter         metric.Meter
	counters      sync.Map // string -> metric.Int64Counter
	floatCounters sync.Map // string -> metric.Float64Counter
	histograms    sync.Map // string -> metric.Float64Histogram
	logger        log.Logger
}

// ErrNilMeter indicates that a nil OTEL meter was provided.
var ErrNilMeter = errors.New("metric meter cannot be nil")

// NewMetricsFactory creates a new MetricsFactory instance.
func NewMetricsFactory(meter metric.Meter, logger log.Logger) (*MetricsFactory, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}

	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &MetricsFactory{
		meter:  meter,
		logger: logger,
	}, nil
}

// NewNopFactory returns a MetricsFactory backed by OpenTelemetry's no-op
// meter. It is safe for use as a fallback when a real meter is unavailable.
func NewNopFactory() *MetricsFactory {
	return &MetricsFactory{
		meter:  noop.NewMeterProvider().Meter("nop"),
		logger: &log.NoneLogger{},
	}
}

// Counter creates or retrieves a counter metric and returns a builder for
// fluent API usage.
func (f *MetricsFactory) Counter(m Metric) (*CounterBuilder, error) {
	counter, err := f.getOrCreateCounter(m)
	if err != nil {
		return nil, err
	}

	return &CounterBuilder{
		counter: counter,
		name:    m.Name,
	}, nil
}

// FloatCounter creates or retrieves a floating-point counter metric and
// returns a builder for fluent API usage. Used for monotonic money totals.
func (f *MetricsFactory) FloatCounter(m Metric) (*FloatCounterBuilder, error) {
	counter, err := f.getOrCreateFloatCounter(m)
	if err != nil {
		return nil, err
	}

	return &FloatCounterBuilder{
		counter: counter,
		name:    m.Name,
	}, nil
}

// Histogram creates or retrieves a histogram metric and returns a builder for
// fluent API usage.
func (f *MetricsFactory) Histogram(m Metric) (*HistogramBuilder, error) {
	histogram, err := f.getOrCreateHistogram(m)
	if err != nil {
		return nil, err
	}

	return &HistogramBuilder{
		histogram: histogram,
		name:      m.Name,
	}, nil
}

// RegisterObservableGauge creates an observable gauge whose value is computed
// by callback at export time. The returned stop function unregisters the
// callback.
//
// Reading the gauge is not purely functional: callbacks are allowed to perform
// internal housekeeping (the session tracker evicts idle sessions on read).
func (f *MetricsFactory) RegisterObservableGauge(m Metric, callback func() int64) (func() error, error) {
	var opts []metric.Int64ObservableGaugeOption
	if m.Description != "" {
		opts = append(opts, metric.WithDescription(m.Description))
	}

	if m.Unit != "" {
		opts = append(opts, metric.WithUnit(m.Unit))
	}

	gauge, err := f.meter.Int64ObservableGauge(m.Name, opts...)
	if err != nil {
		f.logger.Errorf("failed to create observable gauge %q: %v", m.Name, err)

		return nil, fmt.Errorf("create observable gauge %q: %w", m.Name, err)
	}

	registration, err := f.meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			observer.ObserveInt64(gauge, callback())

			return nil
		},
		gauge,
	)
	if err != nil {
		return nil, fmt.Errorf("register gauge callback %q: %w", m.Name, err)
	}

	return registration.Unregister, nil
}

// getOrCreateCounter lazily creates or retrieves an existing counter.
func (f *MetricsFactory) getOrCreateCounter(m Metric) (metric.Int64Counter, error) {
	if counter, exists := f.counters.Load(m.Name); exists {
		if c, ok := counter.(metric.Int64Counter); ok {
			return c, nil
		}

		return nil, fmt.Errorf("counter cache contains invalid type for %q", m.Name)
	}

	counter, err := f.meter.Int64Counter(m.Name, counterOptions(m)...)
	if err != nil {
		f.logger.Errorf("failed to create counter metric %q: %v", m.Name, err)

		return nil, fmt.Errorf("create counter %q: %w", m.Name, err)
	}

	if actual, loaded := f.counters.LoadOrStore(m.Name, counter); loaded {
		// Another goroutine created it first, use that one.
		if c, ok := actual.(metric.Int64Counter); ok {
			return c, nil
		}

		return nil, fmt.Errorf("counter cache contains invalid type for %q", m.Name)
	}

	return counter, nil
}

// getOrCreateFloatCounter lazily creates or retrieves an existing float counter.
func (f *MetricsFactory) getOrCreateFloatCounter(m Metric) (metric.Float64Counter, error) {
	if counter, exists := f.floatCounters.Load(m.Name); exists {
		if c, ok := counter.(metric.Float64Counter); ok {
			return c, nil
		}

		return nil, fmt.Errorf("float counter cache contains invalid type for %q", m.Name)
	}

	counter, err := f.meter.Float64Counter(m.Name, floatCounterOptions(m)...)
	if err != nil {
		f.logger.Errorf("failed to create float counter metric %q: %v", m.Name, err)

		return nil, fmt.Errorf("create float counter %q: %w", m.Name, err)
	}

	if actual, loaded := f.floatCounters.LoadOrStore(m.Name, counter); loaded {
		// Another goroutine created it first, use that one.
		if c, ok := actual.(metric.Float64Counter); ok {
			return c, nil
		}

		return nil, fmt.Errorf("float counter cache contains invalid type for %q", m.Name)
	}

	return counter, nil
}

// getOrCreateHistogram lazily creates or retrieves an existing histogram.
func (f *MetricsFactory) getOrCreateHistogram(m Metric) (metric.Float64Histogram, error) {
	if histogram, exists := f.histograms.Load(m.Name); exists {
		if h, ok := histogram.(metric.Float64Histogram); ok {
			return h, nil
		}

		return nil, fmt.Errorf("histogram cache contains invalid type for %q", m.Name)
	}

	histogram, err := f.meter.Float64Histogram(m.Name, histogramOptions(m)...)
	if err != nil {
		f.logger.Errorf("failed to create histogram metric %q: %v", m.Name, err)

		return nil, fmt.Errorf("create histogram %q: %w", m.Name, err)
	}

	if actual, loaded := f.histograms.LoadOrStore(m.Name, histogram); loaded {
		// Another goroutine created it first, use that one.
		if h, ok := actual.(metric.Float64Histogram); ok {
			return h, nil
		}

		return nil, fmt.Errorf("histogram cache contains invalid type for %q", m.Name)
	}

	return histogram, nil
}

func counterOptions(m Metric) []metric.Int64CounterOption {
	var opts []metric.Int64CounterOption
	if m.Description != "" {
		opts = append(opts, metric.WithDescription(m.Description))
	}

	if m.Unit != "" {
		opts = append(opts, metric.WithUnit(m.Unit))
	}

	return opts
}

func floatCounterOptions(m Metric) []metric.Float64CounterOption {
	var opts []metric.Float64CounterOption
	if m.Description != "" {
		opts = append(opts, metric.WithDescription(m.Description))
	}

	if m.Unit != "" {
		opts = append(opts, metric.WithUnit(m.Unit))
	}

	return opts
}

func histogramOptions(m Metric) []metric.Float64HistogramOption {
	var opts []metric.Float64HistogramOption
	if m.Description != "" {
		opts = append(opts, metric.WithDescription(m.Description))
	}

	if m.Unit != "" {
		opts = append(opts, metric.WithUnit(m.Unit))
	}

	if m.Buckets != nil {
		opts = append(opts, metric.WithExplicitBucketBoundaries(m.Buckets...))
	}

	return opts
}
