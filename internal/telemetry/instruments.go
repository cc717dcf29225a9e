package telemetry

// Metric describes an instrument by name, description and unit.
type Metric struct {
	Name        string
	Description string
	Unit        string
	// For histograms: explicit bucket boundaries.
	Buckets []float64
}

// Default histogram bucket configurations. Durations are in seconds, latency
// in milliseconds, money in dollars.
var (
	DefaultDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

	DefaultLatencyMsBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	DefaultMoneyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

	DefaultCountBuckets = []float64{1, 2, 3, 5, 8, 13, 21, 34, 55}
)

// Counters emitted by the service.
var (
	MetricHTTPRequests = Metric{
		Name:        "http_requests_total",
		Unit:        "1",
		Description: "Total number of HTTP requests handled, by endpoint, method and status.",
	}

	MetricOrdersCreated = Metric{
		Name:        "orders_created_total",
		Unit:        "1",
		Description: "Number of orders successfully created.",
	}

	MetricFailedTransactionRevenue = Metric{
		Name:        "failed_transaction_revenue_lost",
		Unit:        "USD",
		Description: "Revenue lost to failed order transactions, by failure reason.",
	}

	MetricSLAViolations = Metric{
		Name:        "sla_violation_events",
		Unit:        "1",
		Description: "Order workflows whose processing time exceeded the SLA threshold.",
	}

	MetricDependencyRequests = Metric{
		Name:        "dependency_requests_total",
		Unit:        "1",
		Description: "Calls attempted against a downstream dependency, by dependency and method.",
	}

	MetricDependencyErrors = Metric{
		Name:        "dependency_errors_total",
		Unit:        "1",
		Description: "Failed calls to a downstream dependency, by dependency and error type.",
	}

	MetricRetries = Metric{
		Name:        "retries_total",
		Unit:        "1",
		Description: "Retry attempts performed against downstream operations.",
	}

	MetricOrderStatusChanges = Metric{
		Name:        "order_status_changes_total",
		Unit:        "1",
		Description: "Order status transitions, by from/to status.",
	}

	MetricOrderCancellations = Metric{
		Name:        "order_cancellations_total",
		Unit:        "1",
		Description: "Orders cancelled by users.",
	}

	MetricReturningCustomers = Metric{
		Name:        "returning_customers_total",
		Unit:        "1",
		Description: "Order requests placed by previously seen customers.",
	}

	MetricNewCustomers = Metric{
		Name:        "new_customers_total",
		Unit:        "1",
		Description: "Order requests placed by first-time customers.",
	}
)

// Histograms emitted by the service.
var (
	MetricHTTPServerDuration = Metric{
		Name:        "http_server_duration",
		Unit:        "s",
		Description: "Distribution of inbound HTTP request durations.",
		Buckets:     DefaultDurationBuckets,
	}

	MetricOrdersValue = Metric{
		Name:        "orders_value",
		Unit:        "USD",
		Description: "Distribution of order total amounts.",
		Buckets:     DefaultMoneyBuckets,
	}

	MetricOrderRevenue = Metric{
		Name:        "order_revenue_dollars",
		Unit:        "USD",
		Description: "Revenue recorded per confirmed order.",
		Buckets:     DefaultMoneyBuckets,
	}

	MetricOrderProcessingTime = Metric{
		Name:        "order_processing_time_seconds",
		Unit:        "s",
		Description: "End-to-end order workflow processing time, by outcome and reason.",
		Buckets:     DefaultDurationBuckets,
	}

	MetricDependencyLatency = Metric{
		Name:        "dependency_latency_ms",
		Unit:        "ms",
		Description: "Latency of successful downstream dependency calls.",
		Buckets:     DefaultLatencyMsBuckets,
	}

	MetricCancellationValue = Metric{
		Name:        "cancellation_value_dollars",
		Unit:        "USD",
		Description: "Refunded value of cancelled orders.",
		Buckets:     DefaultMoneyBuckets,
	}

	MetricUserOrderCount = Metric{
		Name:        "user_order_count",
		Unit:        "1",
		Description: "Number of orders per user, observed on user order listings.",
		Buckets:     DefaultCountBuckets,
	}
)

// MetricActiveSessions is the observable gauge fed by the session tracker.
var MetricActiveSessions = Metric{
	Name:        "active_user_sessions",
	Unit:        "1",
	Description: "Count of user sessions active within the idle timeout, computed at export time.",
}
