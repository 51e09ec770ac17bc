package logging

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap logger with the classifier's log vocabulary
type Logger struct {
	zap *zap.Logger
}

// Config holds logging configuration
type Config struct {
	Level     string `yaml:"level" env:"LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Format    string `yaml:"format" env:"FORMAT" validate:"omitempty,oneof=json console"` // "json" or "console"
	Output    string `yaml:"output" env:"OUTPUT"`                                          // "stdout", "stderr" or a file path
	AddCaller bool   `yaml:"add_caller" env:"ADD_CALLER"`
	AddStack  bool   `yaml:"add_stack" env:"ADD_STACK"`
}

// DefaultConfig logs JSON at info level to stderr, leaving stdout to
// command output.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: "stderr",
	}
}

// NewLogger creates a new structured logger
func NewLogger(config Config) (*Logger, error) {
	if config.Format == "" {
		config.Format = "json"
	}
	if config.Output == "" {
		config.Output = "stderr"
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = parseZapLevel(config.Level)
	zapConfig.Encoding = config.Format
	zapConfig.OutputPaths = []string{config.Output}
	zapConfig.ErrorOutputPaths = []string{config.Output}
	zapConfig.DisableCaller = !config.AddCaller
	zapConfig.DisableStacktrace = !config.AddStack
	if config.Format == "console" {
		zapConfig.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{zap: zapLogger}, nil
}

// New wraps an existing zap logger; nil yields a no-op logger.
func New(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{zap: z}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return New(nil)
}

// parseZapLevel parses zap level from string
func parseZapLevel(level string) zap.AtomicLevel {
	switch level {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

// WithTrace adds the trace and span IDs of the span in ctx, if any
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return &Logger{zap: l.zap.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)}
}

// WithFields adds fields to logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	zapFields := make([]zap.Field, 0, len(fields))
	for key, value := range fields {
		zapFields = append(zapFields, zap.Any(key, value))
	}
	return &Logger{zap: l.zap.With(zapFields...)}
}

// Named returns a child logger with the given name segment
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name)}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.zap.Debug(msg, convertToZapFields(args)...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.zap.Info(msg, convertToZapFields(args)...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.zap.Warn(msg, convertToZapFields(args)...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	l.zap.Error(msg, convertToZapFields(args)...)
}

// convertToZapFields converts key/value pairs to zap fields; a trailing
// key without a value and non-string keys are dropped
func convertToZapFields(args []interface{}) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			fields = append(fields, zap.Any(key, args[i+1]))
		}
	}
	return fields
}

// LogRefresh logs a completed weight search
func (l *Logger) LogRefresh(ctx context.Context, reason string, generations int, fitness float64, evaluations int64, warm bool, duration time.Duration) {
	l.WithTrace(ctx).Info("Weight search completed",
		"stop_reason", reason,
		"generations", generations,
		"best_fitness", fitness,
		"evaluations", evaluations,
		"warm_start", warm,
		"duration_ms", float64(duration.Nanoseconds())/1e6,
	)
}

// LogGeneration logs one generation of a search at debug level
func (l *Logger) LogGeneration(ctx context.Context, number int, best, mean, bestEver float64) {
	l.WithTrace(ctx).Debug("Generation evaluated",
		"generation", number,
		"best_fitness", best,
		"mean_fitness", mean,
		"best_ever_fitness", bestEver,
	)
}

// LogAccuracy logs the running accuracy of a prequential evaluation
func (l *Logger) LogAccuracy(ctx context.Context, processed int64, accuracy float64) {
	l.WithTrace(ctx).Info("Prequential accuracy",
		"processed", processed,
		"accuracy", accuracy,
	)
}

// Sync syncs the logger
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// GetZap returns the zap logger
func (l *Logger) GetZap() *zap.Logger {
	return l.zap
}
