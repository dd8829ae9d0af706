// Package logger builds the zerolog logger shared by the commands.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New returns a logger writing to w. format is "json" or "console"; level is
// any zerolog level name and defaults to info.
func New(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: true}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Setup builds a logger with New and installs it as the global zerolog
// logger used by packages that log through github.com/rs/zerolog/log.
func Setup(level, format string, w io.Writer) zerolog.Logger {
	l := New(level, format, w)
	log.Logger = l
	zerolog.SetGlobalLevel(l.GetLevel())
	return l
}
