package cli

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/matzehuels/inktex/pkg/buildinfo"
	"github.com/matzehuels/inktex/pkg/errors"
)

// SetVersion sets the version information displayed by --version.
// This is typically called by the main package during initialization with values
// injected via ldflags at build time.
func SetVersion(v, c, d string) {
	buildinfo.Set(v, c, d)
}

// Execute runs the inktex CLI and returns an error if any command fails.
// The error has already been reported on stderr when Execute returns.
//
// Logging:
//   - Default: info level (logs to stderr)
//   - With --verbose (-v): debug level
//
// The logger is attached to the context and accessible to all commands via loggerFromContext.
func Execute(ctx context.Context) error {
	c := New(os.Stderr, LogInfo)
	root := c.RootCommand()
	root.SilenceErrors = true

	err := root.ExecuteContext(ctx)
	if err != nil && ctx.Err() == nil {
		reportError(err)
	}
	return err
}

// reportError prints err and, for tool failures, the captured tool log.
func reportError(err error) {
	printError("%s", err)
	var e *errors.Error
	if stderrors.As(err, &e) && strings.TrimSpace(e.Output) != "" {
		printNewline()
		printLog(e.Output)
	}
}
