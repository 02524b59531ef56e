package render

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
)

// CommandRunner runs one external tool inside dir and returns its combined
// standard output and standard error.
type CommandRunner interface {
	Run(ctx context.Context, dir string, argv []string) ([]byte, error)
}

// ExitError reports a tool that ran and exited with a non-zero status.
type ExitError struct {
	Code   int
	Output []byte
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExecRunner runs tools with os/exec. Stdin is empty; stdout and stderr are
// captured together in the order the tool wrote them.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, dir string, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, exec.ErrNotFound
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return out.Bytes(), nil
	}
	if ctx.Err() != nil {
		return out.Bytes(), ctx.Err()
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return out.Bytes(), &ExitError{Code: exitErr.ExitCode(), Output: out.Bytes()}
	}
	return out.Bytes(), fmt.Errorf("%s: %w", argv[0], err)
}
