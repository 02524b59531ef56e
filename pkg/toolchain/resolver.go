package toolchain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/inktex/pkg/config"
	"github.com/matzehuels/inktex/pkg/errors"
)

// Resolver picks the first usable toolchain family and remembers it.
// It is safe for concurrent use.
type Resolver struct {
	families []config.Toolchain
	files    config.Files
	prober   Prober
	logger   *log.Logger

	mu       sync.Mutex
	resolved *Spec
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithProber replaces the default ExecProber.
func WithProber(p Prober) Option {
	return func(r *Resolver) { r.prober = p }
}

// WithLogger sets the logger used for probe diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver over cfg.Toolchains in declaration order.
// The default prober follows cfg.Probe.Method.
func NewResolver(cfg config.Config, opts ...Option) *Resolver {
	var prober Prober = NewExecProber(cfg.Probe.Timeout.Duration)
	if cfg.Probe.Method == config.ProbePath {
		prober = LookPathProber{}
	}
	r := &Resolver{
		families: cfg.Toolchains,
		files:    cfg.Files,
		prober:   prober,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Candidates returns the family names in preference order.
func (r *Resolver) Candidates() []string {
	names := make([]string, len(r.families))
	for i, tc := range r.families {
		names[i] = tc.Name
	}
	return names
}

// Resolve returns the first family whose compiler and converter both probe
// successfully. The result is memoised; failures are not, so a later call
// probes again. When no family is usable the error has code
// DEPENDENCY_MISSING.
func (r *Resolver) Resolve(ctx context.Context) (Spec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved != nil {
		return *r.resolved, nil
	}

	// Executables shared between families are probed once.
	probed := make(map[string]error)
	probe := func(exe string, tc config.Toolchain) error {
		if err, ok := probed[exe]; ok {
			return err
		}
		err := r.prober.Probe(ctx, probeArgv(exe, tc))
		probed[exe] = err
		return err
	}

	var rejected []string
	for _, tc := range r.families {
		if err := ctx.Err(); err != nil {
			return Spec{}, err
		}

		spec := Expand(tc, r.files)
		missing := r.missing(spec, tc, probe)
		if err := ctx.Err(); err != nil {
			return Spec{}, err
		}
		if len(missing) > 0 {
			r.logger.Debug("toolchain unavailable", "family", tc.Name, "missing", strings.Join(missing, ","))
			rejected = append(rejected, fmt.Sprintf("%s (missing %s)", tc.Name, strings.Join(missing, ", ")))
			continue
		}

		r.logger.Debug("toolchain selected", "family", tc.Name,
			"compiler", spec.CompilerName(), "converter", spec.ConverterName())
		r.resolved = &spec
		return spec, nil
	}

	if len(rejected) == 0 {
		return Spec{}, errors.Dependency("no toolchain configured")
	}
	return Spec{}, errors.Dependency("no usable LaTeX toolchain found: %s", strings.Join(rejected, "; "))
}

// missing returns the executables of spec that failed their probe.
// Both members are probed so the diagnostic names everything absent.
func (r *Resolver) missing(spec Spec, tc config.Toolchain, probe func(string, config.Toolchain) error) []string {
	var out []string
	for _, exe := range []string{spec.CompilerName(), spec.ConverterName()} {
		if err := probe(exe, tc); err != nil {
			out = append(out, exe)
		}
	}
	return out
}

// Reset forgets the memoised selection.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = nil
}
