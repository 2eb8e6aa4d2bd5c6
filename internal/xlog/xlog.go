// Package xlog wires the allocator's initialization, adoption, and
// fatal-error paths to a structured logger. Nothing on the Allocate /
// Deallocate hot path logs; logging is reserved for the events an operator
// embedding the allocator would want visibility into (layout setup,
// superpage acquisition/release, orphan adoption).
package xlog

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var current atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.Nop()
	current.Store(&l)
}

// SetOutput installs a human-readable console logger writing to w. Passing
// nil disables logging entirely (the default).
func SetOutput(w io.Writer) {
	if w == nil {
		l := zerolog.Nop()
		current.Store(&l)
		return
	}
	l := zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).With().Timestamp().Logger()
	current.Store(&l)
}

// SetLogger installs a caller-provided logger directly, for embedders that
// already run zerolog with their own sinks and levels.
func SetLogger(l zerolog.Logger) {
	current.Store(&l)
}

// L returns the currently installed logger.
func L() *zerolog.Logger {
	return current.Load()
}

// Default wires a console logger to stderr at info level; useful for the
// cmd/allocbench harness and for ad-hoc debugging.
func Default() {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).
		Level(zerolog.InfoLevel).With().Timestamp().Logger()
	current.Store(&l)
}
