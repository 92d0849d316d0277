package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(buf *bytes.Buffer, component string) *Logger {
	logger := zerolog.New(buf).
		With().
		Timestamp().
		Str("component", component).
		Logger().
		Hook(OTELHook{})
	return &Logger{Logger: logger}
}

func TestLoggerComponentField(t *testing.T) {
	var buf bytes.Buffer
	logger := captureLogger(&buf, "reconciler")

	logger.LogImport(context.Background(),
		"module.guardduty_audit_us_east_1[0].aws_guardduty_detector.main", "det-1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "reconciler", entry["component"])
	assert.Equal(t, "det-1", entry["natural_key"])
	assert.Equal(t, "imported resource into state", entry["message"])
}

func TestLogProbeFields(t *testing.T) {
	var buf bytes.Buffer
	logger := captureLogger(&buf, "reconciler")

	logger.LogProbe(context.Background(), "org-admin", "us-east-1", true)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "org-admin", entry["category"])
	assert.Equal(t, "us-east-1", entry["region"])
	assert.Equal(t, true, entry["found"])
	assert.Equal(t, "probed resource", entry["message"])
}

func TestLogSweepSummaryFields(t *testing.T) {
	var buf bytes.Buffer
	logger := captureLogger(&buf, "reconciler")

	logger.LogSweepSummary(context.Background(), "detector", 3, 14, 0, 0)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "detector", entry["category"])
	assert.Equal(t, float64(3), entry["imported"])
	assert.Equal(t, float64(14), entry["already_tracked"])
}

func TestLogPolicyExclusionIsWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := captureLogger(&buf, "reconciler")

	logger.LogPolicyExclusion(context.Background(), "addr", "auto-enable mismatch")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "auto-enable mismatch", entry["reason"])
}

func TestInitOTELAndSweepMetrics(t *testing.T) {
	shutdown, err := InitOTEL(context.Background(), Config{
		ServiceName:    "guardsync-test",
		ServiceVersion: "0.0.0",
	})
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	require.NotNil(t, PrometheusRegistry)

	metrics, err := NewSweepMetrics()
	require.NoError(t, err)

	// Recording must not panic with any outcome label.
	ctx := context.Background()
	metrics.RecordOutcome(ctx, "detector", "us-east-1", "imported")
	metrics.RecordOutcome(ctx, "detector", "us-east-1", "already_tracked")
	metrics.RecordOutcome(ctx, "detector", "us-east-1", "import_failed")
	metrics.RecordOutcome(ctx, "detector", "us-east-1", "not_applicable")
	metrics.RecordProbeError(ctx, "publishing", "eu-west-1")
	metrics.RecordSweepDuration(ctx, 1.25, "ok")
}
