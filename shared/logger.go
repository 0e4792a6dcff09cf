package shared

import (
	"go.uber.org/zap"
)

// LoggerConfig holds the configuration for the logger
type LoggerConfig struct {
	ServiceName string // "verifierd" or "verify"
	Development bool   // true for development mode
	Quiet       bool   // true to log errors only
}

// Logger wraps zap.Logger with additional context
type Logger struct {
	*zap.Logger
}

// NewLogger creates a new logger instance based on the configuration
func NewLogger(config LoggerConfig) (*Logger, error) {
	var zapLogger *zap.Logger
	var err error

	if config.Quiet {
		// Errors only, no caller or stack noise
		zapConfig := zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
		zapConfig.DisableCaller = true
		zapConfig.DisableStacktrace = true
		zapLogger, err = zapConfig.Build()
	} else if config.Development {
		// Development mode: console logging with debug level
		zapConfig := zap.NewDevelopmentConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		zapLogger, err = zapConfig.Build()
	} else {
		// Production mode: structured JSON logging
		zapConfig := zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zapLogger, err = zapConfig.Build()
	}

	if err != nil {
		return nil, err
	}

	zapLogger = zapLogger.With(zap.String("service", config.ServiceName))

	return &Logger{Logger: zapLogger}, nil
}

// NewLoggerFromEnv creates a logger using environment variables
func NewLoggerFromEnv(serviceName string) (*Logger, error) {
	config := LoggerConfig{
		ServiceName: serviceName,
		Development: GetEnvBoolOrDefault("DEVELOPMENT", false),
		Quiet:       GetEnvBoolOrDefault("LOG_QUIET", false),
	}
	return NewLogger(config)
}

// NewNopLogger returns a logger that discards everything. Used by tests and
// as the package default before SetLogger is called.
func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

func (l *Logger) with(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// Package-scoped logger for library packages
func (l *Logger) WithPackage(name string) *Logger {
	return l.with(zap.String("package", name))
}

// Request-aware logging methods
func (l *Logger) WithRequest(requestID string) *Logger {
	if requestID == "" {
		return l
	}
	return l.with(zap.String("request_id", requestID))
}

// Connection-aware logging methods
func (l *Logger) WithConnection(remoteAddr string) *Logger {
	if remoteAddr == "" {
		return l
	}
	return l.with(zap.String("remote_addr", remoteAddr))
}

// Attestation-aware logging methods
func (l *Logger) WithAttestation(attestationID string) *Logger {
	if attestationID == "" {
		return l
	}
	return l.with(zap.String("attestation_id", attestationID))
}

// Stage-aware logging methods
func (l *Logger) WithStage(stage string) *Logger {
	return l.with(zap.String("stage", stage))
}

// Security event logging - for rejected keys and forged presentations
func (l *Logger) Security(msg string, fields ...zap.Field) {
	l.Logger.Warn(msg, append(fields, zap.Bool("security_event", true))...)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}
