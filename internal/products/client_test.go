package products

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jsalvarredy/grafana-otel-demo/internal/circuitbreaker"
	"github.com/jsalvarredy/grafana-otel-demo/internal/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestClient(t *testing.T, baseURL string) (*Client, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := telemetry.NewMetricsFactory(provider.Meter("test"), nil)
	require.NoError(t, err)

	breaker := circuitbreaker.NewManager(nil).GetOrCreate(DependencyName, circuitbreaker.DefaultConfig())

	return NewClient(baseURL, breaker, metrics, nil), reader
}

func metricTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}

			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)

			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}

			return total
		}
	}

	return 0
}

func TestGetProduct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products/P1", r.URL.Path)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"product": map[string]any{"name": "Widget", "price": 10.00},
		})
	}))
	defer server.Close()

	client, reader := newTestClient(t, server.URL)

	product, err := client.GetProduct(context.Background(), "P1")
	require.NoError(t, err)

	assert.Equal(t, "Widget", product.Name)
	assert.True(t, product.Price.Equal(decimal.RequireFromString("10")))
	assert.Equal(t, int64(1), metricTotal(t, reader, telemetry.MetricDependencyRequests.Name))
}

func TestGetProductNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	_, err := client.GetProduct(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetInventory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/inventory/P1", r.URL.Path)

		_ = json.NewEncoder(w).Encode(Inventory{Stock: 7, Status: "in_stock"})
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	inventory, err := client.GetInventory(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, 7, inventory.Stock)
	assert.Equal(t, "in_stock", inventory.Status)
}

func TestCompletePurchase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/products/P1/purchase", r.URL.Path)

		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 3, body["quantity"])

		_ = json.NewEncoder(w).Encode(PurchaseConfirmation{Status: "completed", TransactionID: "txn-42"})
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	confirmation, err := client.CompletePurchase(context.Background(), "P1", 3)
	require.NoError(t, err)
	assert.Equal(t, "completed", confirmation.Status)
	assert.Equal(t, "txn-42", confirmation.TransactionID)
}

func TestCompletePurchaseRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	_, err := client.CompletePurchase(context.Background(), "P1", 1)
	assert.ErrorIs(t, err, ErrPurchaseRejected)
}

func TestServerErrorCountsAsBreakerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, reader := newTestClient(t, server.URL)

	_, err := client.GetProduct(context.Background(), "P1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int64(1), metricTotal(t, reader, telemetry.MetricDependencyErrors.Name))
	assert.Equal(t, uint32(1), client.breaker.Counts().ConsecutiveFailures)
}

func TestBreakerOpenFailsFastWithoutNetworkCall(t *testing.T) {
	var hits atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, reader := newTestClient(t, server.URL)

	// Trip the breaker.
	for i := 0; i < 5; i++ {
		_, err := client.GetProduct(context.Background(), "P1")
		require.Error(t, err)
	}

	require.Equal(t, circuitbreaker.StateOpen, client.breaker.State())

	before := hits.Load()
	requestsBefore := metricTotal(t, reader, telemetry.MetricDependencyRequests.Name)

	_, err := client.GetProduct(context.Background(), "P1")
	assert.ErrorIs(t, err, ErrUnavailable)

	// No network call and no attempt metrics for the rejected call.
	assert.Equal(t, before, hits.Load())
	assert.Equal(t, requestsBefore, metricTotal(t, reader, telemetry.MetricDependencyRequests.Name))
}

func TestTransportErrorClassifiedAsConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client, reader := newTestClient(t, server.URL)

	_, err := client.GetInventory(context.Background(), "P1")
	require.Error(t, err)

	assert.Equal(t, int64(1), metricTotal(t, reader, telemetry.MetricDependencyErrors.Name))
}

func TestCallTimeoutBoundsSlowResponses(t *testing.T) {
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		server.Close()
	}()

	client, _ := newTestClient(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()

	_, err := client.GetProduct(ctx, "P1")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
