package telemetry

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/iliyamo/hotel-reservation/internal/config"
)

func TestSetupIssuesTraceIDsAndPropagates(t *testing.T) {
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	tp := Setup(config.TracingConfig{ServiceName: "test", SampleRatio: 1})
	defer func() { require.NoError(t, tp.Shutdown(context.Background())) }()

	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	sc := span.SpanContext()
	require.True(t, sc.IsValid())
	assert.True(t, sc.IsSampled())

	h := http.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
	assert.Contains(t, h.Get("traceparent"), sc.TraceID().String())
}

func TestSetupZeroRatioStillCarriesIDs(t *testing.T) {
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	tp := Setup(config.TracingConfig{ServiceName: "test", SampleRatio: 0})
	defer func() { require.NoError(t, tp.Shutdown(context.Background())) }()

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
	assert.False(t, span.SpanContext().IsSampled())
}
