package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Sanjeet990/MarswaveHome/internal/infrastructure/config"
)

// Logger is a thin wrapper over slog.Logger. Every line carries the
// service name and build version so log aggregation can separate the
// webhook from whatever else shares the host.
//
// Safe for concurrent use, as slog is.
type Logger struct {
	*slog.Logger
}

// New builds a logger from the logging section of the configuration.
//
// Format is "json" (default) or "text"; output is "stdout" (default) or
// "stderr"; level is parsed by parseLevel. Unrecognised values fall back
// to the defaults rather than failing startup over a logging typo.
//
// Parameters:
//   - cfg: Logging configuration
//   - version: Build version stamped onto every record
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := buildHandler(cfg, outputWriter(cfg.Output))

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "marswave"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// outputWriter maps the configured output name to a writer.
func outputWriter(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// buildHandler creates the slog handler for the configured format and level.
func buildHandler(cfg config.LoggingConfig, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// parseLevel converts a level name to a slog.Level. Accepts debug, info,
// warn/warning, and error in any case; anything else means info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger carrying additional default attributes.
//
//	reportLog := log.With("component", "report")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a JSON stdout logger at info level, for use during
// startup before the configuration has been loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
