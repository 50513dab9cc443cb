// Package logging builds the slog loggers used across the dispatcher.
//
// It wraps log/slog with the conventions both binaries share: JSON output
// with a LOG_LEVEL-controlled level, a text variant for local runs, and
// helpers that thread the logger and the request ID through contexts so a
// delivery's log entries correlate end to end.
//
//	logger := logging.NewLogger()
//	logger.Info("dispatcher started", slog.String("version", version))
//
//	// per request
//	logger := logging.WithRequestID(ctx, logging.FromContext(ctx))
//	logger.Info("processing submit request")
package logging
