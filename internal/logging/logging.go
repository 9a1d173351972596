package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. Level is one of
// "debug", "info", "warn", "error"; anything else falls back to info.
// On a TTY the console writer is used, otherwise plain JSON lines.
func Setup(level string) {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger().Level(parseLevel(level))
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Cycle returns a logger scoped to one crawl-and-reply cycle for a
// monitored list. Every failure logged through it carries enough
// context to find the affected cursor.
func Cycle(username, list string, cursor int64) zerolog.Logger {
	return log.With().
		Str("component", "engagecycle").
		Str("username", username).
		Str("list", list).
		Int64("cursor", cursor).
		Logger()
}
