package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options selects the output format and minimum level.
type Options struct {
	Level  string // trace, debug, info, warn, error (default info)
	Format string // console or json (default console)
	Out    io.Writer
}

// NewLogger returns a zerolog logger configured for console output.
func NewLogger() zerolog.Logger {
	return New(Options{})
}

// New returns a zerolog logger for the given options.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if !strings.EqualFold(opts.Format, "json") {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	zerolog.CallerMarshalFunc = shortCaller

	level, err := ParseLevel(opts.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Caller().Logger()
}

// ParseLevel maps a level name to a zerolog level. An empty name is info.
func ParseLevel(name string) (zerolog.Level, error) {
	if strings.TrimSpace(name) == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

func shortCaller(pc uintptr, file string, line int) string {
	// Extract just the filename, not the full path
	short := file
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			short = file[i+1:]
			break
		}
	}
	// Pad to 28 characters for alignment
	return fmt.Sprintf("%-28s", fmt.Sprintf("%s:%d", short, line))
}
