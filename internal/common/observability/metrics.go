package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Observability records training stage timings through an otel meter that is
// exported on the default prometheus registry, and opens one span per stage.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	stageCounter   otelmetric.Int64Counter
	stageDuration  otelmetric.Float64Histogram
}

// New installs a prometheus-backed meter provider. When the exporter cannot
// be created the returned value records into a no-op meter.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return NewNoop(), err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	o, err := newWithMeter(provider.Meter(serviceName), tp.Tracer(serviceName))
	if err != nil {
		return NewNoop(), err
	}
	o.meterProvider = provider
	o.tracerProvider = tp
	return o, nil
}

// NewNoop returns an instance that records nothing.
func NewNoop() *Observability {
	o, _ := newWithMeter(noop.NewMeterProvider().Meter("noop"), tracenoop.NewTracerProvider().Tracer("noop"))
	return o
}

func newWithMeter(meter otelmetric.Meter, tracer trace.Tracer) (*Observability, error) {
	stageCounter, err := meter.Int64Counter(
		"training.stages",
		otelmetric.WithDescription("Training stages executed"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"training.stage.duration",
		otelmetric.WithDescription("Training stage duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Observability{
		tracer:        tracer,
		stageCounter:  stageCounter,
		stageDuration: stageDuration,
	}, nil
}

// StartStage opens a span for one training stage. EndStage must be called
// with the same span.
func (o *Observability) StartStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return o.tracer.Start(ctx, "training."+stage, trace.WithAttributes(attribute.String("stage", stage)))
}

// EndStage records the stage metrics and closes span.
func (o *Observability) EndStage(ctx context.Context, span trace.Span, stage string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	o.RecordStage(ctx, stage, duration, status)
}

// RecordStage records one finished stage with its status ("ok" or "error").
func (o *Observability) RecordStage(ctx context.Context, stage string, duration time.Duration, status string) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	)
	o.stageCounter.Add(ctx, 1, attrs)
	o.stageDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	if o.meterProvider == nil {
		return nil
	}
	return o.meterProvider.Shutdown(ctx)
}
