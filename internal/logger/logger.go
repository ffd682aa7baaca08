// Package logger builds the application logger and threads it through
// context.Context so concurrent provider tasks carry their own tags.
package logger

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

func prefix() string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#2563EB")).
		Bold(true).
		Padding(0, 1).
		Render("stream2media")
}

// New returns a logger writing to stderr. Debug enables caller and timestamp
// reporting along with the debug level.
func New(debug bool) *log.Logger {
	return NewWriter(os.Stderr, debug)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, debug bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportCaller:    debug,
		ReportTimestamp: debug,
		TimeFormat:      "15:04:05",
		Prefix:          prefix(),
	})
	if debug {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.InfoLevel)
	}
	return l
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// Into stores l in ctx.
func Into(ctx context.Context, l *log.Logger) context.Context {
	return log.WithContext(ctx, l)
}

// From returns the logger stored in ctx, or the package default.
func From(ctx context.Context) *log.Logger {
	return log.FromContext(ctx)
}

// With returns a child context whose logger carries the extra key/value pairs.
func With(ctx context.Context, keyvals ...interface{}) context.Context {
	return Into(ctx, From(ctx).With(keyvals...))
}
