package hamqth

import (
	"qthlookup/lib/telemetry"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = telemetry.Tracer("qthlookup.lib.hamqth")
var meter = telemetry.Meter("qthlookup.lib.hamqth")

var attemptCounter, _ = meter.Int64Counter(
	"hamqth.attempts",
	metric.WithDescription("http requests made to hamqth, including retries"),
)
var loginCounter, _ = meter.Int64Counter(
	"hamqth.logins",
	metric.WithDescription("successful session id exchanges"),
)

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
