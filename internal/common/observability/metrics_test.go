package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestRecordStage_ExportsCounterAndHistogram(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))

	o, err := newWithMeter(provider.Meter("test"), tracenoop.NewTracerProvider().Tracer("test"))
	require.NoError(t, err)

	o.RecordStage(context.Background(), "Fitting", 15*time.Millisecond, "ok")
	o.RecordStage(context.Background(), "Fitting", 5*time.Millisecond, "ok")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]metricdata.Metrics{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = m
	}

	sum, ok := names["training.stages"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	hist, ok := names["training.stage.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
}

func TestNilAndNoop_AreSafe(t *testing.T) {
	var o *Observability
	o.RecordStage(context.Background(), "Splitting", time.Millisecond, "ok")
	assert.NoError(t, o.Shutdown(context.Background()))

	NewNoop().RecordStage(context.Background(), "Splitting", time.Millisecond, "error")
}

func TestStartEndStage_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	reader := metric.NewManualReader()
	o, err := newWithMeter(metric.NewMeterProvider(metric.WithReader(reader)).Meter("test"), tp.Tracer("test"))
	require.NoError(t, err)

	ctx := context.Background()
	_, span := o.StartStage(ctx, "Extracting")
	o.EndStage(ctx, span, "Extracting", time.Millisecond, nil)

	_, span = o.StartStage(ctx, "Fitting")
	o.EndStage(ctx, span, "Fitting", time.Millisecond, assert.AnError)

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "training.Extracting", ended[0].Name())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Equal(t, "training.Fitting", ended[1].Name())
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Len(t, ended[1].Events(), 1)
}

func TestNilStartStage(t *testing.T) {
	var o *Observability
	ctx, span := o.StartStage(context.Background(), "Persisting")
	o.EndStage(ctx, span, "Persisting", time.Millisecond, nil)
}
