// Package observability provides OpenTelemetry tracing and metrics for the
// admission layer.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("tenantgate"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanAdmission)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("tenantgate"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("tenantgate"))
//	metrics.RecordAdmissionEnd(ctx, "pro", "success", duration)
//
// Per-tier occupancy gauges are registered once against a snapshot function
// and observed on every export:
//
//	reg, err := observability.RegisterTierGauges(observability.Meter("tenantgate"), sample)
//	defer reg.Unregister()
package observability
