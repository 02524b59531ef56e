package toolchain

import (
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"time"
)

// Prober decides whether an executable is available.
type Prober interface {
	// Probe runs or inspects argv[0]. A nil error means "present".
	Probe(ctx context.Context, argv []string) error
}

// MissingFunc reports whether a probe error means the executable is absent
// rather than present but unhappy with the probe arguments.
type MissingFunc func(error) bool

// DefaultMissing treats lookup and start failures as missing: not on PATH,
// path does not exist, or not executable.
func DefaultMissing(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission)
}

// ExecProber probes by running the executable. Output is discarded, stdin is
// empty and the run is bounded by Timeout. Exit status, signals and timeouts
// are tolerated; only errors accepted by Missing disqualify.
type ExecProber struct {
	Timeout time.Duration
	Missing MissingFunc
}

// NewExecProber returns an ExecProber with the default missing predicate.
func NewExecProber(timeout time.Duration) ExecProber {
	return ExecProber{Timeout: timeout, Missing: DefaultMissing}
}

// Probe implements Prober.
func (p ExecProber) Probe(ctx context.Context, argv []string) error {
	if len(argv) == 0 || argv[0] == "" {
		return exec.ErrNotFound
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	// nil Stdin/Stdout/Stderr connect to the null device.
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	err := cmd.Run()
	if err == nil {
		return nil
	}

	missing := p.Missing
	if missing == nil {
		missing = DefaultMissing
	}
	if missing(err) {
		return err
	}
	return nil
}

// LookPathProber only checks that argv[0] resolves on PATH. It never starts
// a process.
type LookPathProber struct{}

// Probe implements Prober.
func (LookPathProber) Probe(_ context.Context, argv []string) error {
	if len(argv) == 0 || argv[0] == "" {
		return exec.ErrNotFound
	}
	_, err := exec.LookPath(argv[0])
	return err
}
