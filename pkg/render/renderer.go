package render

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/inktex/pkg/cache"
	"github.com/matzehuels/inktex/pkg/config"
	"github.com/matzehuels/inktex/pkg/errors"
	"github.com/matzehuels/inktex/pkg/observability"
	"github.com/matzehuels/inktex/pkg/svgmerge"
	"github.com/matzehuels/inktex/pkg/toolchain"
)

// cacheKeyType labels render entries in cache hooks.
const cacheKeyType = "render"

// Resolver selects the toolchain for a render.
type Resolver interface {
	Resolve(ctx context.Context) (toolchain.Spec, error)
}

// Result is a successful render.
type Result struct {
	Group    *etree.Element // detached, merged group
	RenderID string
	Family   string // toolchain family that produced the output
	Cached   bool   // converter output came from the cache
	Log      string // combined compiler and converter output
}

// Renderer turns requests into merged SVG groups.
// It holds no per-render state and is safe for concurrent use.
type Renderer struct {
	resolver Resolver
	runner   CommandRunner
	cache    cache.Cache
	keyer    cache.Keyer
	merger   *svgmerge.Merger
	logger   *log.Logger

	files    config.Files
	tempDir  string
	timeout  time.Duration
	cacheTTL time.Duration
	idPrefix string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithRunner replaces the os/exec runner.
func WithRunner(cr CommandRunner) Option {
	return func(r *Renderer) { r.runner = cr }
}

// WithCache enables caching of converter output.
func WithCache(c cache.Cache) Option {
	return func(r *Renderer) { r.cache = c }
}

// WithKeyer replaces the default cache keyer.
func WithKeyer(k cache.Keyer) Option {
	return func(r *Renderer) { r.keyer = k }
}

// WithMerger replaces the merger built from the configuration.
func WithMerger(m *svgmerge.Merger) Option {
	return func(r *Renderer) { r.merger = m }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// New creates a renderer. Without WithCache, caching is disabled.
func New(cfg config.Config, resolver Resolver, opts ...Option) *Renderer {
	r := &Renderer{
		resolver: resolver,
		runner:   ExecRunner{},
		cache:    cache.NewNullCache(),
		keyer:    cache.NewDefaultKeyer(),
		logger:   log.Default(),
		files:    cfg.Files,
		tempDir:  cfg.Render.TempDir,
		timeout:  cfg.Render.Timeout.Duration,
		cacheTTL: cfg.Cache.TTL.Duration,
		idPrefix: cfg.Merge.IDPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.merger == nil {
		r.merger = svgmerge.NewMerger(cfg, svgmerge.WithLogger(r.logger))
	}
	return r
}

// Document assembles the complete LaTeX document for req.
func Document(req Request) string {
	var b strings.Builder
	b.WriteString("\\documentclass{article}\n")
	b.WriteString(req.Preamble)
	b.WriteString("\n\\begin{document}\n\\pagestyle{empty}\n\\noindent\n")
	b.WriteString(req.Source)
	b.WriteString("\n\\end{document}\n")
	return b.String()
}

// Render compiles, converts and merges req. When oracle is nil, identifiers
// come from a fresh CounterOracle.
//
// Failures are coded: DEPENDENCY_MISSING when no toolchain is usable,
// COMPILER_FAILED and CONVERTER_FAILED with the tool's output attached, and
// MALFORMED_OUTPUT when the converter output is absent or unparseable.
func (r *Renderer) Render(ctx context.Context, req Request, oracle svgmerge.IDOracle) (res *Result, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if oracle == nil {
		oracle = svgmerge.NewCounterOracle(r.idPrefix)
	}

	id := uuid.NewString()
	logger := r.logger.With("render", id[:8])

	hooks := observability.Render()
	start := time.Now()
	hooks.OnRenderStart(ctx, id)
	defer func() { hooks.OnRenderComplete(ctx, id, time.Since(start), err) }()

	spec, err := runStage(ctx, id, observability.StageResolve, func() (toolchain.Spec, error) {
		return r.resolver.Resolve(ctx)
	})
	if err != nil {
		return nil, err
	}

	document := Document(req)
	key := r.keyer.RenderKey(spec.Family, document)

	result := &Result{RenderID: id, Family: spec.Family}

	data, hit := r.lookup(ctx, key, logger)
	if hit {
		result.Cached = true
	} else {
		var transcript string
		data, transcript, err = r.compile(ctx, id, spec, document, logger)
		result.Log = transcript
		if err != nil {
			return nil, err
		}
		r.store(ctx, key, data, logger)
	}

	result.Group, err = runStage(ctx, id, observability.StageMerge, func() (*etree.Element, error) {
		doc, err := svgmerge.Parse(data)
		if err != nil {
			return nil, err
		}
		return r.merger.Merge(doc, req.Scale, oracle)
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("render finished", "family", spec.Family, "cached", result.Cached,
		"duration", time.Since(start))
	return result, nil
}

// compile runs the compiler and converter in a fresh work area and returns
// the converter output together with the combined tool transcript.
func (r *Renderer) compile(ctx context.Context, id string, spec toolchain.Spec, document string, logger *log.Logger) ([]byte, string, error) {
	wa, err := NewWorkArea(r.tempDir, r.files, spec.Intermediate)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		if err := wa.Release(); err != nil {
			logger.Warn("work area not removed", "error", err)
		}
	}()

	if err := wa.WriteSource(document); err != nil {
		return nil, "", err
	}

	var transcript bytes.Buffer

	logger.Debug("compiling", "argv", strings.Join(spec.Compiler, " "), "dir", wa.Dir())
	out, err := runStage(ctx, id, observability.StageCompile, func() ([]byte, error) {
		return r.run(ctx, wa.Dir(), spec.Compiler)
	})
	transcript.Write(out)
	if err != nil {
		return nil, transcript.String(), r.toolError(ctx, errors.Compiler, spec.CompilerName(), out, err)
	}

	logger.Debug("converting", "argv", strings.Join(spec.Converter, " "))
	out, err = runStage(ctx, id, observability.StageConvert, func() ([]byte, error) {
		return r.run(ctx, wa.Dir(), spec.Converter)
	})
	transcript.Write(out)
	if err != nil {
		return nil, transcript.String(), r.toolError(ctx, errors.Converter, spec.ConverterName(), out, err)
	}

	data, err := wa.ReadOutput()
	if err != nil {
		return nil, transcript.String(), err
	}
	return data, transcript.String(), nil
}

// run executes argv bounded by the render timeout.
func (r *Renderer) run(ctx context.Context, dir string, argv []string) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.runner.Run(ctx, dir, argv)
}

// toolError classifies a failed tool run. Cancellation of the caller's
// context is returned as is.
func (r *Renderer) toolError(ctx context.Context, build func([]byte, string, ...any) *errors.Error, name string, out []byte, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var e *errors.Error
	var exitErr *ExitError
	switch {
	case stderrors.As(err, &exitErr):
		e = build(exitErr.Output, "%s exited with status %d", name, exitErr.Code)
	case stderrors.Is(err, context.DeadlineExceeded):
		e = build(nil, "%s timed out after %s", name, r.timeout)
	case stderrors.Is(err, exec.ErrNotFound):
		return errors.Dependency("%s is no longer available: %v", name, err)
	default:
		e = build(out, "%s failed: %v", name, err)
	}
	e.Cause = err
	return e
}

func (r *Renderer) lookup(ctx context.Context, key string, logger *log.Logger) ([]byte, bool) {
	data, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed", "error", err)
		return nil, false
	}
	if !ok {
		observability.Cache().OnCacheMiss(ctx, cacheKeyType)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, cacheKeyType)
	logger.Debug("cache hit", "key", key)
	return data, true
}

func (r *Renderer) store(ctx context.Context, key string, data []byte, logger *log.Logger) {
	if err := r.cache.Set(ctx, key, data, r.cacheTTL); err != nil {
		logger.Warn("cache write failed", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, cacheKeyType, len(data))
}

// runStage wraps fn with stage hooks.
func runStage[T any](ctx context.Context, id string, stage observability.Stage, fn func() (T, error)) (T, error) {
	hooks := observability.Render()
	hooks.OnStageStart(ctx, id, stage)
	start := time.Now()
	v, err := fn()
	hooks.OnStageComplete(ctx, id, stage, time.Since(start), err)
	return v, err
}
