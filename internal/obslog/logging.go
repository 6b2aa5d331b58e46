// Package obslog bootstraps structured JSON logging for the ranking
// daemon, adapted from observability/logging.Setup: a JSON slog handler
// with field renames, a redaction allowlist, and a bridge of the standard
// library logger onto the same handler.
package obslog

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures the standard library logger to emit structured JSON and
// returns the underlying slog.Logger. Every log line includes the service
// name and environment. When logFile is non-empty, output goes to a
// lumberjack-rotated file on disk instead of stdout.
func Setup(service, env, logFile string) *slog.Logger {
	var writer io.Writer = os.Stdout
	if strings.TrimSpace(logFile) != "" {
		writer = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		AddSource: false,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			if !IsAllowlisted(attr.Key) && looksSensitive(attr.Key) {
				return MaskField(attr.Key, attr.Value.String())
			}
			return attr
		},
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	withArgs := make([]any, 0, len(attrs))
	for _, a := range attrs {
		withArgs = append(withArgs, a)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

func looksSensitive(key string) bool {
	key = strings.ToLower(key)
	switch {
	case strings.Contains(key, "dsn"):
		return true
	case strings.Contains(key, "endpoint") && strings.Contains(key, "ws"):
		return true
	case strings.Contains(key, "password"), strings.Contains(key, "secret"), strings.Contains(key, "token"):
		return true
	default:
		return false
	}
}
