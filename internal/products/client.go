// Package products is the HTTP client for the downstream Products service.
// Every call is gated by a circuit breaker and bounded by a fixed timeout.
package products

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/jsalvarredy/grafana-otel-demo/internal/circuitbreaker"
	"github.com/jsalvarredy/grafana-otel-demo/internal/log"
	"github.com/jsalvarredy/grafana-otel-demo/internal/telemetry"
	"github.com/shopspring/decimal"
)

// DependencyName tags metrics emitted for the Products service.
const DependencyName = "products"

// CallTimeout is the hard cutoff for a single downstream call.
const CallTimeout = 5 * time.Second

var (
	// ErrNotFound indicates the product id is unknown downstream.
	ErrNotFound = errors.New("product not found")
	// ErrUnavailable indicates the circuit breaker rejected the call without
	// attempting it.
	ErrUnavailable = errors.New("products service unavailable")
	// ErrPurchaseRejected indicates the downstream refused the purchase with
	// a client error status.
	ErrPurchaseRejected = errors.New("purchase rejected by products service")
)

// Product is the downstream product representation.
type Product struct {
	Name  string
	Price decimal.Decimal
}

// Inventory is the downstream stock snapshot for a product.
type Inventory struct {
	Stock  int    `json:"stock"`
	Status string `json:"status"`
}

// PurchaseConfirmation is the downstream acknowledgement of a purchase.
type PurchaseConfirmation struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

// Client issues calls to the Products service through its circuit breaker,
// recording dependency-level metrics for every permitted attempt.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker
	metrics *telemetry.MetricsFactory
	logger  log.Logger
}

// NewClient creates a products client. The breaker must be dedicated to this
// dependency.
func NewClient(baseURL string, breaker *circuitbreaker.Breaker, metrics *telemetry.MetricsFactory, logger log.Logger) *Client {
	if metrics == nil {
		metrics = telemetry.NewNopFactory()
	}

	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: CallTimeout},
		breaker: breaker,
		metrics: metrics,
		logger:  logger,
	}
}

// GetProduct fetches name and price for a product id.
func (c *Client) GetProduct(ctx context.Context, productID string) (Product, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/products/"+productID, nil)
	if err != nil {
		return Product{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Product{}, ErrNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return Product{}, fmt.Errorf("get product %s: unexpected status %d", productID, resp.StatusCode)
	}

	var envelope struct {
		Product struct {
			Name  string  `json:"name"`
			Price float64 `json:"price"`
		} `json:"product"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return Product{}, fmt.Errorf("decode product %s: %w", productID, err)
	}

	return Product{
		Name:  envelope.Product.Name,
		Price: decimal.NewFromFloat(envelope.Product.Price),
	}, nil
}

// GetInventory fetches the current stock level for a product id.
func (c *Client) GetInventory(ctx context.Context, productID string) (Inventory, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/inventory/"+productID, nil)
	if err != nil {
		return Inventory{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Inventory{}, fmt.Errorf("get inventory %s: unexpected status %d", productID, resp.StatusCode)
	}

	var inventory Inventory
	if err := json.NewDecoder(resp.Body).Decode(&inventory); err != nil {
		return Inventory{}, fmt.Errorf("decode inventory %s: %w", productID, err)
	}

	return inventory, nil
}

// CompletePurchase commits the purchase of quantity units downstream.
func (c *Client) CompletePurchase(ctx context.Context, productID string, quantity int) (PurchaseConfirmation, error) {
	payload, err := json.Marshal(map[string]int{"quantity": quantity})
	if err != nil {
		return PurchaseConfirmation{}, fmt.Errorf("encode purchase payload: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/products/"+productID+"/purchase", bytes.NewReader(payload))
	if err != nil {
		return PurchaseConfirmation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PurchaseConfirmation{}, fmt.Errorf("%w: status %d", ErrPurchaseRejected, resp.StatusCode)
	}

	var confirmation PurchaseConfirmation
	if err := json.NewDecoder(resp.Body).Decode(&confirmation); err != nil {
		return PurchaseConfirmation{}, fmt.Errorf("decode purchase confirmation %s: %w", productID, err)
	}

	return confirmation, nil
}

// do runs one HTTP call through the circuit breaker.
//
// A breaker rejection fails immediately with ErrUnavailable, without a network
// call and without recording attempt metrics. On permitted attempts the
// request counter is recorded before the call; a received response (any
// status below 500) counts as breaker success, transport failures and 5xx
// responses count as breaker failure.
func (c *Client) do(ctx context.Context, method, path string, body *bytes.Reader) (*http.Response, error) {
	done, err := c.breaker.Allow()
	if err != nil {
		c.logger.Warnf("Circuit breaker rejected %s %s - failing fast", method, path)

		return nil, fmt.Errorf("%w: %s", ErrUnavailable, c.breaker.State())
	}

	c.recordRequest(ctx, method)

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = body
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		done(false)

		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	telemetry.InjectHTTPContext(ctx, req.Header)

	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		done(false)
		c.recordError(ctx, method, classifyTransportError(err))

		return nil, fmt.Errorf("products %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		status := resp.StatusCode
		resp.Body.Close()
		done(false)
		c.recordError(ctx, method, "status_5xx")

		return nil, fmt.Errorf("products %s %s: server error status %d", method, path, status)
	}

	done(true)
	c.recordLatency(ctx, method, time.Since(start))

	return resp, nil
}

func (c *Client) recordRequest(ctx context.Context, method string) {
	counter, err := c.metrics.Counter(telemetry.MetricDependencyRequests)
	if err != nil {
		return
	}

	_ = counter.WithLabels(map[string]string{
		"dependency": DependencyName,
		"method":     method,
	}).AddOne(ctx)
}

func (c *Client) recordError(ctx context.Context, method, errorType string) {
	counter, err := c.metrics.Counter(telemetry.MetricDependencyErrors)
	if err != nil {
		return
	}

	_ = counter.WithLabels(map[string]string{
		"dependency": DependencyName,
		"method":     method,
		"error_type": errorType,
	}).AddOne(ctx)
}

func (c *Client) recordLatency(ctx context.Context, method string, elapsed time.Duration) {
	histogram, err := c.metrics.Histogram(telemetry.MetricDependencyLatency)
	if err != nil {
		return
	}

	_ = histogram.WithLabels(map[string]string{
		"dependency": DependencyName,
		"method":     method,
	}).Record(ctx, float64(elapsed.Milliseconds()))
}

func classifyTransportError(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "timeout"
	}

	return "connection"
}
