package log

import (
	"go.uber.org/zap"
)

// Logger is the minimal logging surface used by the hub client.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

type zapLogger struct {
	logger *zap.Logger
}

// NewZap adapts a zap logger to the Logger interface.
func NewZap(logger *zap.Logger) Logger {
	return &zapLogger{
		logger: logger.WithOptions(zap.AddCallerSkip(1)),
	}
}

func (l *zapLogger) Debug(msg string) {
	l.logger.Debug(msg)
}

func (l *zapLogger) Info(msg string) {
	l.logger.Info(msg)
}

func (l *zapLogger) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *zapLogger) Error(msg string) {
	l.logger.Error(msg)
}
