// Package cli implements the inktex command-line interface.
//
// The CLI renders LaTeX fragments into SVG drawings, inspects the rendered
// groups a drawing carries, reports the toolchain in use, manages the
// converter output cache and serves the render pipeline over HTTP. It is
// built with cobra and logs through charmbracelet/log.
//
// # Commands
//
//   - render: Render LaTeX and merge it into a drawing (or print a fragment)
//   - source, list, settings: Inspect rendered groups and stored settings
//   - toolchain: Show the resolved compiler/converter family
//   - cache: Manage the converter output cache
//   - serve: Serve the render pipeline over HTTP
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context so commands share the configured level.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates the CLI logger. Timestamps look like "14:32:01.45".
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress times one command and logs its milestones with structured
// fields. Fields given to newProgress are repeated on every line.
type progress struct {
	logger *log.Logger
	start  time.Time
	fields []any
}

// newProgress starts timing an operation.
func newProgress(l *log.Logger, keyvals ...any) *progress {
	return &progress{logger: l, start: time.Now(), fields: keyvals}
}

// elapsed returns the time since start, rounded to the millisecond.
func (p *progress) elapsed() time.Duration {
	return time.Since(p.start).Round(time.Millisecond)
}

// step logs an intermediate milestone at debug level.
func (p *progress) step(msg string, keyvals ...any) {
	p.logger.Debug(msg, p.with(keyvals)...)
}

// done logs msg at info level together with the elapsed time, e.g.
// "render complete group=g7 family=dvi elapsed=412ms".
func (p *progress) done(msg string, keyvals ...any) {
	p.logger.Info(msg, p.with(keyvals)...)
}

func (p *progress) with(keyvals []any) []any {
	kv := make([]any, 0, len(p.fields)+len(keyvals)+2)
	kv = append(kv, p.fields...)
	kv = append(kv, keyvals...)
	return append(kv, "elapsed", p.elapsed())
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger attaches l to ctx for the commands run under it.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached by the root command, or
// log.Default() when a command runs outside it (tests, completion).
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
