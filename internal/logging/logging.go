// Package logging builds the go-kit loggers used across optload.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Formats accepted by New.
const (
	FormatLogfmt = "logfmt"
	FormatJSON   = "json"
)

// New returns a leveled logger writing to w. Unknown formats fall back to
// logfmt and unknown levels to info.
func New(w io.Writer, lvl, format string) log.Logger {
	w = log.NewSyncWriter(w)

	var logger log.Logger
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		logger = log.NewJSONLogger(w)
	default:
		logger = log.NewLogfmtLogger(w)
	}
	logger = level.NewFilter(logger, levelOption(lvl))
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5))
}

// Default is the logger library code falls back to when the caller did not
// supply one.
func Default() log.Logger {
	return New(os.Stderr, "info", FormatLogfmt)
}

func levelOption(lvl string) level.Option {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return level.AllowDebug()
	case "warn", "warning":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	case "none":
		return level.AllowNone()
	default:
		return level.AllowInfo()
	}
}
