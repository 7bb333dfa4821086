package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/railzwaylabs/paygate"

// NewTracer returns a tracer from the global provider. Without an exporter
// installed the global provider is a no-op.
func NewTracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
