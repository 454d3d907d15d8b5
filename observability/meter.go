package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/tenantgate/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the metric instruments for admission decisions.
type Metrics struct {
	admissionTotal    metric.Int64Counter
	admissionDuration metric.Float64Histogram
	admissionActive   metric.Int64UpDownCounter
	errorTotal        metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	admissionTotal, err := meter.Int64Counter("admission.total",
		metric.WithDescription("Total admission decisions by tier and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating admission.total counter: %w", err)
	}

	admissionDuration, err := meter.Float64Histogram("admission.duration",
		metric.WithDescription("End-to-end request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating admission.duration histogram: %w", err)
	}

	admissionActive, err := meter.Int64UpDownCounter("admission.active",
		metric.WithDescription("Requests currently inside the admission chain"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating admission.active gauge: %w", err)
	}

	errorTotal, err := meter.Int64Counter("error.total",
		metric.WithDescription("Total errors by type and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}

	return &Metrics{
		admissionTotal:    admissionTotal,
		admissionDuration: admissionDuration,
		admissionActive:   admissionActive,
		errorTotal:        errorTotal,
	}, nil
}

// RecordAdmissionStart increments the in-flight request count.
func (m *Metrics) RecordAdmissionStart(ctx context.Context) {
	m.admissionActive.Add(ctx, 1)
}

// RecordAdmissionEnd decrements in-flight requests and records the decision.
func (m *Metrics) RecordAdmissionEnd(ctx context.Context, tier, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("outcome", outcome),
	)
	m.admissionActive.Add(ctx, -1)
	m.admissionTotal.Add(ctx, 1, attrs)
	m.admissionDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}

// TierSample is one tier's occupancy reading, observed on every export.
type TierSample struct {
	Tier           string
	BulkheadActive int64
	BulkheadQueued int64
	BreakerState   int64
	PoolActive     int64
	PoolPending    int64
}

// BreakerStateCode maps a breaker state name to its gauge value.
// Unknown names map to -1.
func BreakerStateCode(state string) int64 {
	switch state {
	case "closed":
		return 0
	case "open":
		return 1
	case "half-open":
		return 2
	default:
		return -1
	}
}

// RegisterTierGauges registers observable gauges fed by sample on every
// metric export. The returned registration should be unregistered on
// shutdown.
func RegisterTierGauges(meter metric.Meter, sample func() []TierSample) (metric.Registration, error) {
	bulkheadActive, err := meter.Int64ObservableGauge("bulkhead.active",
		metric.WithDescription("Operations currently running per tier"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating bulkhead.active gauge: %w", err)
	}

	bulkheadQueued, err := meter.Int64ObservableGauge("bulkhead.queued",
		metric.WithDescription("Operations waiting in the tier queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating bulkhead.queued gauge: %w", err)
	}

	breakerState, err := meter.Int64ObservableGauge("breaker.state",
		metric.WithDescription("Circuit breaker state per tier (0=closed, 1=open, 2=half-open)"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating breaker.state gauge: %w", err)
	}

	poolActive, err := meter.Int64ObservableGauge("pool.active",
		metric.WithDescription("Database connections in use per tier"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pool.active gauge: %w", err)
	}

	poolPending, err := meter.Int64ObservableGauge("pool.pending",
		metric.WithDescription("Callers waiting for a database connection per tier"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pool.pending gauge: %w", err)
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for _, s := range sample() {
			attrs := metric.WithAttributes(attribute.String("tier", s.Tier))
			o.ObserveInt64(bulkheadActive, s.BulkheadActive, attrs)
			o.ObserveInt64(bulkheadQueued, s.BulkheadQueued, attrs)
			o.ObserveInt64(breakerState, s.BreakerState, attrs)
			o.ObserveInt64(poolActive, s.PoolActive, attrs)
			o.ObserveInt64(poolPending, s.PoolPending, attrs)
		}
		return nil
	}, bulkheadActive, bulkheadQueued, breakerState, poolActive, poolPending)
	if err != nil {
		return nil, fmt.Errorf("registering tier gauge callback: %w", err)
	}
	return reg, nil
}
