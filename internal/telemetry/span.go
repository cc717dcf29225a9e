package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// HandleSpanError sets the status of the span to error and records the error.
func HandleSpanError(span trace.Span, message string, err error) {
	if span != nil && err != nil {
		span.SetStatus(codes.Error, message+": "+err.Error())
		span.RecordError(err)
	}
}

// HandleSpanEvent adds an event to the span.
func HandleSpanEvent(span trace.Span, eventName string, attributes ...attribute.KeyValue) {
	if span != nil {
		span.AddEvent(eventName, trace.WithAttributes(attributes...))
	}
}

// HandleSpanBusinessErrorEvent adds a business error event to the span without
// flagging the span itself as failed.
func HandleSpanBusinessErrorEvent(span trace.Span, eventName string, err error) {
	if span != nil && err != nil {
		span.AddEvent(eventName, trace.WithAttributes(attribute.String("error", err.Error())))
	}
}

// InjectHTTPContext modifies HTTP headers for trace propagation in outgoing
// client requests.
func InjectHTTPContext(ctx context.Context, headers http.Header) {
	carrier := propagation.HeaderCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	for k, v := range carrier {
		if len(v) > 0 {
			headers.Set(k, v[0])
		}
	}
}
