package logging

import "log/slog"

// ComponentLogger tags every record with the component that produced it.
// It satisfies dispatcher.Logger.
type ComponentLogger struct {
	logger *slog.Logger
}

func NewComponentLogger(logger *slog.Logger, component string) *ComponentLogger {
	return &ComponentLogger{logger: logger.With("component", component)}
}

func (l *ComponentLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *ComponentLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *ComponentLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

func (l *ComponentLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

// Slog returns the tagged logger.
func (l *ComponentLogger) Slog() *slog.Logger {
	return l.logger
}
