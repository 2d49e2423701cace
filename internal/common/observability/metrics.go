package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records consultation-level instruments through an OpenTelemetry
// meter exported to the default Prometheus registry.
type Observability struct {
	meterProvider        *metric.MeterProvider
	meter                otelmetric.Meter
	consultationCounter  otelmetric.Int64Counter
	consultationDuration otelmetric.Float64Histogram
}

// New never fails; when the exporter cannot be built the returned value
// records nothing.
func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	counter, _ := meter.Int64Counter(
		"consultations.generated",
		otelmetric.WithDescription("Number of consultations generated"),
	)

	duration, _ := meter.Float64Histogram(
		"consultations.duration",
		otelmetric.WithDescription("Consultation generation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:        provider,
		meter:                meter,
		consultationCounter:  counter,
		consultationDuration: duration,
	}
}

// NewNoop returns an instance that records nothing.
func NewNoop() *Observability {
	return &Observability{}
}

func (o *Observability) RecordConsultation(ctx context.Context, duration time.Duration, outcome string) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	if o.consultationCounter != nil {
		o.consultationCounter.Add(ctx, 1, attrs)
	}
	if o.consultationDuration != nil {
		o.consultationDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	return o.meterProvider.Shutdown(ctx)
}
