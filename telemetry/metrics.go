package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SweepMetrics holds sweep counters using OTEL semantic conventions
type SweepMetrics struct {
	imports        metric.Int64Counter
	alreadyTracked metric.Int64Counter
	importFailures metric.Int64Counter
	probeErrors    metric.Int64Counter
	sweepDuration  metric.Float64Histogram
}

// NewSweepMetrics creates counters for reconciliation sweeps
func NewSweepMetrics() (*SweepMetrics, error) {
	meter := otel.Meter("guardsync.reconciler")

	imports, err := meter.Int64Counter(
		"guardsync.imports",
		metric.WithDescription("Number of resources imported into state"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	alreadyTracked, err := meter.Int64Counter(
		"guardsync.already_tracked",
		metric.WithDescription("Number of resources already present in state"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	importFailures, err := meter.Int64Counter(
		"guardsync.import_failures",
		metric.WithDescription("Number of imports that failed after retries"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	probeErrors, err := meter.Int64Counter(
		"guardsync.probe_errors",
		metric.WithDescription("Number of probe calls that returned an error"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	sweepDuration, err := meter.Float64Histogram(
		"guardsync.sweep.duration",
		metric.WithDescription("Duration of full reconciliation sweeps"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &SweepMetrics{
		imports:        imports,
		alreadyTracked: alreadyTracked,
		importFailures: importFailures,
		probeErrors:    probeErrors,
		sweepDuration:  sweepDuration,
	}, nil
}

// RecordOutcome records one per-target outcome for a category
func (m *SweepMetrics) RecordOutcome(ctx context.Context, category, region, outcome string) {
	attrs := metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("region", region),
	)
	switch outcome {
	case "imported":
		m.imports.Add(ctx, 1, attrs)
	case "already_tracked":
		m.alreadyTracked.Add(ctx, 1, attrs)
	case "import_failed":
		m.importFailures.Add(ctx, 1, attrs)
	}
}

// RecordProbeError records a probe that could not determine resource state
func (m *SweepMetrics) RecordProbeError(ctx context.Context, category, region string) {
	m.probeErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("region", region),
	))
}

// RecordSweepDuration records how long a full sweep took
func (m *SweepMetrics) RecordSweepDuration(ctx context.Context, seconds float64, status string) {
	m.sweepDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("status", status),
	))
}
