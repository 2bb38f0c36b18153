// Package observability carries the structured-logging and trace-tag
// plumbing used throughout the core. It replaces the teacher's emoji
// fmt.Println narration with leveled zerolog events, and accumulates the
// deterministic trace[] tags the response envelope exposes alongside an
// otel span per turn.
package observability

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds a zerolog.Logger writing to w at the given level name
// ("debug", "info", "warn", "error"; unknown values fall back to "info").
func NewLogger(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
