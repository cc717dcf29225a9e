package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestFactory(t *testing.T) (*MetricsFactory, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	factory, err := NewMetricsFactory(provider.Meter("test"), nil)
	require.NoError(t, err)

	return factory, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}

	return metricdata.Metrics{}, false
}

func sumCounterValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestNewMetricsFactoryRequiresMeter(t *testing.T) {
	_, err := NewMetricsFactory(nil, nil)
	assert.ErrorIs(t, err, ErrNilMeter)
}

func TestCounterAddAndLabels(t *testing.T) {
	factory, reader := newTestFactory(t)

	counter, err := factory.Counter(MetricOrdersCreated)
	require.NoError(t, err)

	require.NoError(t, counter.WithLabels(map[string]string{"product_id": "P1"}).AddOne(context.Background()))
	require.NoError(t, counter.WithLabels(map[string]string{"product_id": "P1"}).Add(context.Background(), 2))

	rm := collectMetrics(t, reader)

	m, found := findMetric(rm, MetricOrdersCreated.Name)
	require.True(t, found)
	assert.Equal(t, int64(3), sumCounterValue(t, m))
}

func TestFloatCounterAccumulatesFractions(t *testing.T) {
	factory, reader := newTestFactory(t)

	counter, err := factory.FloatCounter(MetricFailedTransactionRevenue)
	require.NoError(t, err)

	require.NoError(t, counter.WithLabels(map[string]string{"reason": "payment_declined"}).Add(context.Background(), 19.99))
	require.NoError(t, counter.WithLabels(map[string]string{"reason": "payment_declined"}).Add(context.Background(), 0.01))

	rm := collectMetrics(t, reader)

	m, found := findMetric(rm, MetricFailedTransactionRevenue.Name)
	require.True(t, found)

	sum, ok := m.Data.(metricdata.Sum[float64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.InDelta(t, 20.0, sum.DataPoints[0].Value, 1e-9)
}

func TestHistogramRecords(t *testing.T) {
	factory, reader := newTestFactory(t)

	histogram, err := factory.Histogram(MetricOrderProcessingTime)
	require.NoError(t, err)

	labels := map[string]string{"outcome": "success", "reason": "success"}
	require.NoError(t, histogram.WithLabels(labels).Record(context.Background(), 0.25))
	require.NoError(t, histogram.WithLabels(labels).Record(context.Background(), 1.5))

	rm := collectMetrics(t, reader)

	m, found := findMetric(rm, MetricOrderProcessingTime.Name)
	require.True(t, found)

	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.InDelta(t, 1.75, hist.DataPoints[0].Sum, 1e-9)
}

func TestInstrumentsAreCached(t *testing.T) {
	factory, _ := newTestFactory(t)

	first, err := factory.Counter(MetricOrdersCreated)
	require.NoError(t, err)

	second, err := factory.Counter(MetricOrdersCreated)
	require.NoError(t, err)

	// Builders are per-call, the instrument behind them is shared.
	assert.True(t, first.counter == second.counter)
}

func TestObservableGaugeReportsCallbackValue(t *testing.T) {
	factory, reader := newTestFactory(t)

	value := int64(7)

	unregister, err := factory.RegisterObservableGauge(MetricActiveSessions, func() int64 {
		return value
	})
	require.NoError(t, err)

	defer func() { _ = unregister() }()

	rm := collectMetrics(t, reader)

	m, found := findMetric(rm, MetricActiveSessions.Name)
	require.True(t, found)

	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(7), gauge.DataPoints[0].Value)

	value = 3
	rm = collectMetrics(t, reader)

	m, _ = findMetric(rm, MetricActiveSessions.Name)
	gauge = m.Data.(metricdata.Gauge[int64])
	assert.Equal(t, int64(3), gauge.DataPoints[0].Value)
}

func TestNopFactoryIsUsable(t *testing.T) {
	factory := NewNopFactory()

	counter, err := factory.Counter(MetricOrdersCreated)
	require.NoError(t, err)
	assert.NoError(t, counter.AddOne(context.Background()))

	histogram, err := factory.Histogram(MetricOrdersValue)
	require.NoError(t, err)
	assert.NoError(t, histogram.Record(context.Background(), 1))
}
