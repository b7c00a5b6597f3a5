package types

// Logger is the structured logger injected into every shocktrack component.
//
// Messages carry alternating key-value pairs, e.g.
//
//	logger.Info("snapshot skipped", "dataset", ds, "index", i)
//
// zap.SugaredLogger satisfies it directly; internal/logging adapts log/slog.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	// Fatal logs and terminates the process. Test and no-op loggers may
	// return instead.
	Fatal(msg string, keysAndValues ...any)
}
