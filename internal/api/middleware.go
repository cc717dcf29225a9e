package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jsalvarredy/grafana-otel-demo/internal/clock"
	"github.com/jsalvarredy/grafana-otel-demo/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// WithTelemetry wraps every request in a server span and records the request
// counter and duration histogram tagged by method, route and status.
func WithTelemetry(tracer trace.Tracer, metrics *telemetry.MetricsFactory, clk clock.Clock) fiber.Handler {
	propagator := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)

	return func(c *fiber.Ctx) error {
		start := clk.Now()

		carrier := propagation.HeaderCarrier{}
		c.Request().Header.VisitAll(func(key, value []byte) {
			carrier.Set(string(key), string(value))
		})

		ctx := propagator.Extract(c.UserContext(), carrier)

		ctx, span := tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Method()),
				attribute.String("url.path", c.Path()),
			),
		)
		defer span.End()

		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		span.SetAttributes(attribute.Int("http.response.status_code", status))

		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, "server error")
		}

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}

		labels := map[string]string{
			"method": c.Method(),
			"route":  route,
			"status": strconv.Itoa(status),
		}

		if counter, cerr := metrics.Counter(telemetry.MetricHTTPRequests); cerr == nil {
			_ = counter.WithLabels(labels).AddOne(ctx)
		}

		if histogram, herr := metrics.Histogram(telemetry.MetricHTTPServerDuration); herr == nil {
			_ = histogram.WithLabels(labels).Record(ctx, clk.Now().Sub(start).Seconds())
		}

		return err
	}
}
