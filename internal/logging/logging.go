// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelFor maps a count of -v flags to a level. Without flags the daemon
// logs lifecycle events at info; each -v adds detail.
func LevelFor(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.InfoLevel
	case verbosity == 1:
		return zerolog.DebugLevel
	}
	return zerolog.TraceLevel
}

// Setup installs a console logger writing to w at the level for verbosity.
func Setup(verbosity int, w io.Writer) zerolog.Level {
	level := LevelFor(verbosity)
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	return level
}

// SetLevel changes the global level by name (trace, debug, info, warn, error).
func SetLevel(name string) (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.GlobalLevel(), fmt.Errorf("unknown level %q", name)
	}
	zerolog.SetGlobalLevel(level)
	return level, nil
}
