package api

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jsalvarredy/grafana-otel-demo/internal/circuitbreaker"
	"github.com/jsalvarredy/grafana-otel-demo/internal/clock"
	"github.com/jsalvarredy/grafana-otel-demo/internal/log"
	"github.com/jsalvarredy/grafana-otel-demo/internal/order"
	"github.com/jsalvarredy/grafana-otel-demo/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// RouterConfig holds everything the HTTP surface needs.
type RouterConfig struct {
	Service  *order.Service
	Breakers *circuitbreaker.Manager
	Metrics  *telemetry.MetricsFactory
	Tracer   trace.Tracer
	Logger   log.Logger
	Clock    clock.Clock
}

// NewRouter builds the fiber application with all routes and middleware.
func NewRouter(cfg RouterConfig) *fiber.App {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}

	if cfg.Tracer == nil {
		cfg.Tracer = tracenoop.NewTracerProvider().Tracer("api")
	}

	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewNopFactory()
	}

	app := fiber.New(fiber.Config{
		AppName:               "order-service",
		DisableStartupMessage: true,
	})

	app.Use(WithTelemetry(cfg.Tracer, cfg.Metrics, cfg.Clock))

	handler := NewOrderHandler(cfg.Service, cfg.Logger)

	app.Get("/health", healthHandler(cfg.Breakers))

	api := app.Group("/api")
	api.Post("/orders", handler.CreateOrder)
	api.Get("/orders/:id", handler.GetOrder)
	api.Get("/orders/:id/tracking", handler.TrackOrder)
	api.Post("/orders/:id/cancel", handler.CancelOrder)
	api.Get("/users/:id/orders", handler.GetUserOrders)

	return app
}

// healthHandler reports liveness plus circuit breaker health. An open breaker
// degrades the report but keeps the endpoint at 200 so orchestrators do not
// restart the process over a downstream outage.
func healthHandler(breakers *circuitbreaker.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := "healthy"
		if breakers != nil && !breakers.IsHealthy() {
			status = "degraded"
		}

		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
