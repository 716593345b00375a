// internal/logger/logger.go
package logger

import (
	"io"
	"log"
	"log/slog"
	"os"
	"time"
)

var globalLogger *slog.Logger // The globally accessible logger

// InitLogger configures the process-wide logger for the given APP_ENV.
func InitLogger(env string) {
	globalLogger = New(os.Stdout, env)
	slog.SetDefault(globalLogger)
}

// New builds a logger writing to w with the handler chosen for env.
// Development gets a text handler at debug level; everything else gets JSON at info.
func New(w io.Writer, env string) *slog.Logger {
	opts := slog.HandlerOptions{
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}

	switch env {
	case "development":
		opts.Level = slog.LevelDebug
		return slog.New(slog.NewTextHandler(w, &opts))
	case "development-json", "test":
		opts.Level = slog.LevelDebug
		return slog.New(slog.NewJSONHandler(w, &opts))
	case "production", "staging":
		opts.Level = slog.LevelInfo
		opts.AddSource = false
		return slog.New(slog.NewJSONHandler(w, &opts))
	default:
		log.Printf("WARNING: Unknown APP_ENV '%s'. Defaulting to production logging.\n", env)
		opts.Level = slog.LevelInfo
		return slog.New(slog.NewJSONHandler(w, &opts))
	}
}

// L returns the global slog logger instance.
// It falls back to a development logger if called before InitLogger.
func L() *slog.Logger {
	if globalLogger == nil {
		InitLogger("development")
		log.Println("WARNING: Logger accessed before explicit initialization. Using default development logger.")
	}
	return globalLogger
}

// Discard returns a logger that drops everything. Used by tests and by CLI dry runs.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
