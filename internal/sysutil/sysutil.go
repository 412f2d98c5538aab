// Package sysutil holds process-level helpers shared by the binaries under
// cmd/: global logger setup, build version lookup and terminal detection.
package sysutil

import (
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogOptions configures SetupLogger.
type LogOptions struct {
	Level   string // debug|info|warn|error|fatal|panic; anything else means info
	Pretty  bool   // human-readable console output
	Service string
	Version string // omitted from log lines when empty
}

// ParseLevel maps a configured level name to a zerolog level. "warning" is
// accepted for warn; blank or unknown names yield info.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" || lvl == zerolog.NoLevel || lvl == zerolog.Disabled || lvl == zerolog.TraceLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetupLogger installs the global logger used by the log package and by
// zerolog.Ctx fallbacks, and returns it. Output goes to w, or os.Stderr when
// w is nil.
func SetupLogger(w io.Writer, o LogOptions) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if o.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	zerolog.SetGlobalLevel(ParseLevel(o.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lc := zerolog.New(w).With().Timestamp().Str("service", o.Service)
	if o.Version != "" {
		lc = lc.Str("version", o.Version)
	}
	l := lc.Logger()
	log.Logger = l
	zerolog.DefaultContextLogger = &log.Logger
	return l
}

// Version resolves the running build's version: the linker-stamped value,
// then $APP_VERSION, then the main module version recorded by the Go
// toolchain, then "dev".
func Version(stamped string) string {
	if v := strings.TrimSpace(stamped); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return "dev"
}

// ColorEnabled reports whether ANSI colors should be written to a terminal,
// following the NO_COLOR convention (any non-empty value disables color) and
// treating TERM=dumb as colorless.
func ColorEnabled(getenv func(string) string) bool {
	if getenv == nil {
		getenv = os.Getenv
	}
	if getenv("NO_COLOR") != "" {
		return false
	}
	return getenv("TERM") != "dumb"
}
