package logger

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with screening-specific functionality
type Logger struct {
	*zap.Logger
	serviceName string
}

// New creates a new logger instance
func New(serviceName, environment, level string) (*Logger, error) {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	config.InitialFields = map[string]interface{}{
		"service": serviceName,
		"pid":     os.Getpid(),
	}

	zapLogger, err := config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		return nil, err
	}

	return &Logger{
		Logger:      zapLogger,
		serviceName: serviceName,
	}, nil
}

// NewNop returns a no-op logger for tests
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a named sub-logger
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		Logger:      l.Logger.Named(name),
		serviceName: l.serviceName,
	}
}

// WithCorrelation returns a logger carrying the request correlation id
func (l *Logger) WithCorrelation(correlationID string) *Logger {
	if correlationID == "" {
		return l
	}
	return &Logger{
		Logger:      l.With(zap.String("correlation_id", correlationID)),
		serviceName: l.serviceName,
	}
}

// ScreeningStarted logs the start of an address screening
func (l *Logger) ScreeningStarted(address string, includeWalk bool) {
	l.Info("screening started",
		zap.String("address", address),
		zap.Bool("include_walk", includeWalk),
	)
}

// ScreeningCompleted logs the completion of an address screening
func (l *Logger) ScreeningCompleted(address string, riskScore int, riskLevel string, durationMs int64) {
	l.Info("screening completed",
		zap.String("address", address),
		zap.Int("risk_score", riskScore),
		zap.String("risk_level", riskLevel),
		zap.Int64("duration_ms", durationMs),
	)
}

// WalkCompleted logs the completion of a path walk
func (l *Logger) WalkCompleted(address string, maxHops, nodesAnalyzed, sanctionedFound int, durationMs int64) {
	l.Info("path walk completed",
		zap.String("address", address),
		zap.Int("max_hops", maxHops),
		zap.Int("nodes_analyzed", nodesAnalyzed),
		zap.Int("sanctioned_found", sanctionedFound),
		zap.Int64("duration_ms", durationMs),
	)
}

// SanctionsReloaded logs a sanctions index reload
func (l *Logger) SanctionsReloaded(entities, addresses int, lastUpdated string) {
	l.Info("sanctions index reloaded",
		zap.Int("entities", entities),
		zap.Int("addresses", addresses),
		zap.String("last_updated", lastUpdated),
	)
}

// RateLimited logs a rejected indexer call
func (l *Logger) RateLimited(operation string, count, limit int) {
	l.Warn("indexer rate limit reached",
		zap.String("operation", operation),
		zap.Int("count", count),
		zap.Int("limit", limit),
	)
}

// SanctionedNodeFound logs a sanctioned address discovered during a walk
func (l *Logger) SanctionedNodeFound(address, txid string, hop int) {
	l.Warn("sanctioned node discovered",
		zap.String("address", address),
		zap.String("txid", txid),
		zap.Int("hop", hop),
	)
}

// Helper field functions

// ErrorField creates an error field
func ErrorField(err error) zap.Field {
	return zap.Error(err)
}

// DurationField creates a duration field
func DurationField(name string, d time.Duration) zap.Field {
	return zap.Duration(name, d)
}

// StringField creates a string field
func StringField(key, value string) zap.Field {
	return zap.String(key, value)
}

// IntField creates an int field
func IntField(key string, value int) zap.Field {
	return zap.Int(key, value)
}

// StringsField creates a string slice field
func StringsField(key string, values []string) zap.Field {
	return zap.Strings(key, values)
}

// BoolField creates a bool field
func BoolField(key string, value bool) zap.Field {
	return zap.Bool(key, value)
}
