package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(component string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stderr).
		With().
		Timestamp().
		Str("component", component).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// Convenience methods for sweep operations

func (l *Logger) LogProbe(ctx context.Context, category, region string, found bool) {
	l.WithContext(ctx).Debug().
		Str("category", category).
		Str("region", region).
		Bool("found", found).
		Msg("probed resource")
}

func (l *Logger) LogImport(ctx context.Context, address, naturalKey string) {
	l.WithContext(ctx).Info().
		Str("address", address).
		Str("natural_key", naturalKey).
		Msg("imported resource into state")
}

func (l *Logger) LogImportFailed(ctx context.Context, address string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("address", address).
		Msg("import failed after retries")
}

func (l *Logger) LogPolicyExclusion(ctx context.Context, address, reason string) {
	l.WithContext(ctx).Warn().
		Str("address", address).
		Str("reason", reason).
		Msg("import excluded by policy")
}

func (l *Logger) LogSweepSummary(ctx context.Context, category string, imported, tracked, failed, skipped int) {
	l.WithContext(ctx).Info().
		Str("category", category).
		Int("imported", imported).
		Int("already_tracked", tracked).
		Int("failed", failed).
		Int("not_applicable", skipped).
		Msg("category sweep complete")
}
