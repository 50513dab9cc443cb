package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"notify-dispatch/internal/handler/http/requestid"
)

type contextKey string

const loggerContextKey contextKey = "logger"

// NewLogger returns a JSON logger on stdout. LOG_LEVEL selects the level
// (debug, info, warn, error; anything else means info). Source locations
// are attached when the level is warn or lower.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, handlerOptions()))
}

// NewTextLogger is the human-readable variant for local development.
func NewTextLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, handlerOptions()))
}

func handlerOptions() *slog.HandlerOptions {
	level := levelFromEnv()
	return &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelWarn,
	}
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID annotates the logger with the request ID carried in ctx,
// or returns it unchanged when there is none.
func WithRequestID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if reqID := requestid.FromContext(ctx); reqID != "" {
		return logger.With("request_id", reqID)
	}
	return logger
}

// WithFields attaches each key/value pair as a structured attribute.
func WithFields(logger *slog.Logger, fields map[string]interface{}) *slog.Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return logger.With(args...)
}

// WithLogger stores the logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext returns the logger stored by WithLogger, or slog.Default
// when the context carries none.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
