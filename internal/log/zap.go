package log

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environment controls the baseline logger profile.
type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentDevelopment Environment = "development"
	EnvironmentLocal       Environment = "local"
)

// ZapConfig contains all required logger initialization inputs.
type ZapConfig struct {
	Environment Environment
	Level       string
	// OTelLibraryName names the bridge scope used when shipping log records
	// through the OpenTelemetry log pipeline.
	OTelLibraryName string
}

func (c ZapConfig) validate() error {
	if c.OTelLibraryName == "" {
		return fmt.Errorf("OTelLibraryName is required")
	}

	switch c.Environment {
	case EnvironmentProduction, EnvironmentDevelopment, EnvironmentLocal:
		return nil
	default:
		return fmt.Errorf("invalid environment %q", c.Environment)
	}
}

// ZapLogger is the zap-backed implementation of Logger. Its core is teed into
// the OpenTelemetry log bridge so every record is also exported over OTLP.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// Compile-time assertion: *ZapLogger implements Logger.
var _ Logger = (*ZapLogger)(nil)

// NewZap creates a structured logger for the given environment.
func NewZap(cfg ZapConfig) (*ZapLogger, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid zap config: %w", err)
	}

	baseConfig := zap.NewProductionConfig()
	if cfg.Environment == EnvironmentDevelopment || cfg.Environment == EnvironmentLocal {
		baseConfig = zap.NewDevelopmentConfig()
	}

	level, err := resolveLevel(cfg)
	if err != nil {
		return nil, err
	}

	baseConfig.Level = level
	baseConfig.DisableStacktrace = true

	built, err := baseConfig.Build(
		zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, otelzap.NewCore(cfg.OTelLibraryName))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &ZapLogger{sugar: built.Sugar()}, nil
}

func resolveLevel(cfg ZapConfig) (zap.AtomicLevel, error) {
	if strings.TrimSpace(cfg.Level) != "" {
		var parsed zapcore.Level
		if err := parsed.Set(cfg.Level); err != nil {
			return zap.AtomicLevel{}, fmt.Errorf("invalid level %q: %w", cfg.Level, err)
		}

		return zap.NewAtomicLevelAt(parsed), nil
	}

	if cfg.Environment == EnvironmentDevelopment || cfg.Environment == EnvironmentLocal {
		return zap.NewAtomicLevelAt(zapcore.DebugLevel), nil
	}

	return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
}

func (l *ZapLogger) must() *zap.SugaredLogger {
	if l == nil || l.sugar == nil {
		return zap.NewNop().Sugar()
	}

	return l.sugar
}

func (l *ZapLogger) Info(args ...any)                 { l.must().Info(args...) }
func (l *ZapLogger) Infof(format string, args ...any) { l.must().Infof(format, args...) }

func (l *ZapLogger) Warn(args ...any)                 { l.must().Warn(args...) }
func (l *ZapLogger) Warnf(format string, args ...any) { l.must().Warnf(format, args...) }

func (l *ZapLogger) Error(args ...any)                 { l.must().Error(args...) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.must().Errorf(format, args...) }

func (l *ZapLogger) Debug(args ...any)                 { l.must().Debug(args...) }
func (l *ZapLogger) Debugf(format string, args ...any) { l.must().Debugf(format, args...) }

func (l *ZapLogger) Fatalf(format string, args ...any) { l.must().Fatalf(format, args...) }

// WithFields returns a child logger carrying alternating key/value pairs.
//
//nolint:ireturn
func (l *ZapLogger) WithFields(fields ...any) Logger {
	return &ZapLogger{sugar: l.must().With(fields...)}
}

// Sync flushes buffered logs.
func (l *ZapLogger) Sync() error {
	return l.must().Sync()
}
