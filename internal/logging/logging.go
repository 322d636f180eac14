// Package logging provides the structured logger used across snapkeeper.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the logging surface components depend on.
// Arguments after msg are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// Config selects level and output format.
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "console"
	Output io.Writer
}

// ZeroLogger implements Logger on top of zerolog.
type ZeroLogger struct {
	zl zerolog.Logger
}

// New builds a logger from cfg. Empty fields fall back to info/json/stderr.
func New(cfg Config) *ZeroLogger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	zl := zerolog.New(out).With().Timestamp().Logger()
	return &ZeroLogger{zl: zl}
}

// Nop returns a logger that discards everything.
func Nop() *ZeroLogger {
	return &ZeroLogger{zl: zerolog.Nop()}
}

// ParseLevel converts a level name to a zerolog level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// SetLevel changes the process-wide minimum level. Safe to call while
// other goroutines are logging.
func SetLevel(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
}

func (l *ZeroLogger) Debug(msg string, args ...any) { emit(l.zl.Debug(), msg, args) }
func (l *ZeroLogger) Info(msg string, args ...any)  { emit(l.zl.Info(), msg, args) }
func (l *ZeroLogger) Warn(msg string, args ...any)  { emit(l.zl.Warn(), msg, args) }
func (l *ZeroLogger) Error(msg string, args ...any) { emit(l.zl.Error(), msg, args) }

// With returns a child logger carrying the given key/value pairs.
func (l *ZeroLogger) With(args ...any) Logger {
	return &ZeroLogger{zl: l.zl.With().Fields(normalize(args)).Logger()}
}

func emit(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}
	if len(args) > 0 {
		ev = ev.Fields(normalize(args))
	}
	ev.Msg(msg)
}

// normalize turns args into a slice zerolog accepts: string keys, and an
// odd trailing value is kept under "!BADKEY".
func normalize(args []any) []any {
	out := make([]any, 0, len(args)+1)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			out = append(out, "!BADKEY", args[i])
			if ok {
				continue
			}
			i--
			continue
		}
		out = append(out, key, args[i+1])
	}
	return out
}
