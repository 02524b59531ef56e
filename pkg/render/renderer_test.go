package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/inktex/pkg/cache"
	"github.com/matzehuels/inktex/pkg/config"
	"github.com/matzehuels/inktex/pkg/errors"
	"github.com/matzehuels/inktex/pkg/observability"
	"github.com/matzehuels/inktex/pkg/toolchain"
)

const converterOutput = `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink">` +
	`<g id="page1"><use xlink:href="#glyph0-1" x="1"/></g>` +
	`<defs><symbol id="glyph0-1"><path d="M0 0"/></symbol></defs></svg>`

type staticResolver struct {
	spec toolchain.Spec
	err  error
}

func (r staticResolver) Resolve(context.Context) (toolchain.Spec, error) { return r.spec, r.err }

// fakeRunner stands in for latex and dvisvgm. By default the compiler
// writes the intermediate file and the converter writes converterOutput.
type fakeRunner struct {
	calls   []string
	dirs    []string
	sources []string
	compile func(ctx context.Context, dir string) ([]byte, error)
	convert func(ctx context.Context, dir string) ([]byte, error)
}

func (f *fakeRunner) Run(ctx context.Context, dir string, argv []string) ([]byte, error) {
	f.calls = append(f.calls, argv[0])
	f.dirs = append(f.dirs, dir)
	switch argv[0] {
	case "latex":
		src, err := os.ReadFile(filepath.Join(dir, "inktex.tex"))
		if err != nil {
			return nil, err
		}
		f.sources = append(f.sources, string(src))
		if f.compile != nil {
			return f.compile(ctx, dir)
		}
		return []byte("Output written on inktex.dvi (1 page).\n"), os.WriteFile(filepath.Join(dir, "inktex.dvi"), []byte("dvi"), 0o600)
	default:
		if f.convert != nil {
			return f.convert(ctx, dir)
		}
		return []byte("output written to inktex.svg\n"), os.WriteFile(filepath.Join(dir, "inktex.svg"), []byte(converterOutput), 0o600)
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Render.TempDir = t.TempDir()
	return cfg
}

func newTestRenderer(t *testing.T, cfg config.Config, fr *fakeRunner, opts ...Option) *Renderer {
	t.Helper()
	spec := toolchain.Expand(config.DefaultToolchains()[0], cfg.Files)
	opts = append([]Option{WithRunner(fr)}, opts...)
	return New(cfg, staticResolver{spec: spec}, opts...)
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("%s still holds %d entries", dir, len(entries))
	}
}

func TestDocument(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "no preamble",
			req:  NewRequest("x"),
			want: "\\documentclass{article}\n\n\\begin{document}\n\\pagestyle{empty}\n\\noindent\nx\n\\end{document}\n",
		},
		{
			name: "with preamble",
			req:  NewRequest(`$\R$`, WithPreamble(`\usepackage{amssymb}`)),
			want: "\\documentclass{article}\n\\usepackage{amssymb}\n\\begin{document}\n\\pagestyle{empty}\n\\noindent\n$\\R$\n\\end{document}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Document(tt.req)); diff != "" {
				t.Errorf("Document mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderSimpleFragment(t *testing.T) {
	cfg := testConfig(t)
	fr := &fakeRunner{}
	r := newTestRenderer(t, cfg, fr)

	res, err := r.Render(context.Background(), NewRequest("x"), nil)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if len(res.Group.ChildElements()) == 0 {
		t.Error("group should have at least one child")
	}
	if res.Group.SelectAttr("transform") != nil {
		t.Error("unit scale must not add a transform")
	}
	if res.Family != "dvi" || res.Cached {
		t.Errorf("Family=%q Cached=%v, want dvi/false", res.Family, res.Cached)
	}
	if res.RenderID == "" {
		t.Error("RenderID is empty")
	}
	if !strings.Contains(res.Log, "Output written on inktex.dvi") {
		t.Errorf("Log = %q, want compiler transcript", res.Log)
	}

	if diff := cmp.Diff([]string{"latex", "dvisvgm"}, fr.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if fr.dirs[0] != fr.dirs[1] {
		t.Error("compiler and converter must share the work area")
	}
	if !strings.Contains(fr.sources[0], "\\noindent\nx\n\\end{document}") {
		t.Errorf("source written = %q", fr.sources[0])
	}
	assertEmptyDir(t, cfg.Render.TempDir)
}

func TestRenderScale(t *testing.T) {
	r := newTestRenderer(t, testConfig(t), &fakeRunner{})
	res, err := r.Render(context.Background(), NewRequest("x", WithScale(2)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Group.SelectAttrValue("transform", ""); got != "scale(2.000000,2.000000)" {
		t.Errorf("transform = %q", got)
	}
}

func TestRenderCompilerFailure(t *testing.T) {
	cfg := testConfig(t)
	fr := &fakeRunner{
		compile: func(context.Context, string) ([]byte, error) {
			out := []byte("! Undefined control sequence.\nl.6 \\foo\n")
			return out, &ExitError{Code: 1, Output: out}
		},
	}
	r := newTestRenderer(t, cfg, fr)

	_, err := r.Render(context.Background(), NewRequest(`\foo`), nil)
	if !errors.Is(err, errors.ErrCodeCompiler) {
		t.Fatalf("Render() = %v, want %s", err, errors.ErrCodeCompiler)
	}
	if msg := errors.UserMessage(err); !strings.Contains(msg, "Undefined control sequence") {
		t.Errorf("UserMessage = %q, want compiler log", msg)
	}
	if diff := cmp.Diff([]string{"latex"}, fr.calls); diff != "" {
		t.Errorf("converter must not run after a compiler failure (-want +got):\n%s", diff)
	}
	assertEmptyDir(t, cfg.Render.TempDir)
}

func TestRenderConverterFailure(t *testing.T) {
	cfg := testConfig(t)
	fr := &fakeRunner{
		convert: func(context.Context, string) ([]byte, error) {
			return nil, &ExitError{Code: 1, Output: []byte("dvisvgm: bad dvi\n")}
		},
	}
	_, err := newTestRenderer(t, cfg, fr).Render(context.Background(), NewRequest("x"), nil)
	if !errors.Is(err, errors.ErrCodeConverter) || errors.Is(err, errors.ErrCodeMalformedOutput) {
		t.Fatalf("Render() = %v, want plain %s", err, errors.ErrCodeConverter)
	}
	if msg := errors.UserMessage(err); msg != "dvisvgm: bad dvi\n" {
		t.Errorf("UserMessage = %q", msg)
	}
	assertEmptyDir(t, cfg.Render.TempDir)
}

func TestRenderMalformedOutput(t *testing.T) {
	tests := []struct {
		name    string
		convert func(context.Context, string) ([]byte, error)
	}{
		{"missing file", func(context.Context, string) ([]byte, error) { return nil, nil }},
		{"not xml", func(_ context.Context, dir string) ([]byte, error) {
			return nil, os.WriteFile(filepath.Join(dir, "inktex.svg"), []byte("<svg"), 0o600)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			_, err := newTestRenderer(t, cfg, &fakeRunner{convert: tt.convert}).
				Render(context.Background(), NewRequest("x"), nil)
			if !errors.Is(err, errors.ErrCodeMalformedOutput) {
				t.Fatalf("Render() = %v, want %s", err, errors.ErrCodeMalformedOutput)
			}
			assertEmptyDir(t, cfg.Render.TempDir)
		})
	}
}

func TestRenderTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Render.Timeout = config.Duration{Duration: 20 * time.Millisecond}
	fr := &fakeRunner{
		compile: func(ctx context.Context, _ string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	_, err := newTestRenderer(t, cfg, fr).Render(context.Background(), NewRequest("x"), nil)
	if !errors.Is(err, errors.ErrCodeCompiler) {
		t.Fatalf("Render() = %v, want %s", err, errors.ErrCodeCompiler)
	}
	if !strings.Contains(errors.UserMessage(err), "timed out") {
		t.Errorf("UserMessage = %q, want timeout message", errors.UserMessage(err))
	}
	assertEmptyDir(t, cfg.Render.TempDir)
}

func TestRenderCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fr := &fakeRunner{
		compile: func(ctx context.Context, _ string) ([]byte, error) {
			cancel()
			return nil, ctx.Err()
		},
	}
	_, err := newTestRenderer(t, testConfig(t), fr).Render(ctx, NewRequest("x"), nil)
	if err != context.Canceled {
		t.Errorf("Render() = %v, want context.Canceled", err)
	}
}

func TestRenderDependencyMissing(t *testing.T) {
	fr := &fakeRunner{}
	r := New(testConfig(t), staticResolver{err: errors.Dependency("nothing installed")}, WithRunner(fr))

	_, err := r.Render(context.Background(), NewRequest("x"), nil)
	if !errors.Is(err, errors.ErrCodeDependency) {
		t.Fatalf("Render() = %v, want %s", err, errors.ErrCodeDependency)
	}
	if len(fr.calls) != 0 {
		t.Errorf("runner called %v without a toolchain", fr.calls)
	}
}

func TestRenderInvalidRequest(t *testing.T) {
	fr := &fakeRunner{}
	r := newTestRenderer(t, testConfig(t), fr)

	if _, err := r.Render(context.Background(), NewRequest("x", WithScale(-1)), nil); !errors.Is(err, errors.ErrCodeInvalidScale) {
		t.Errorf("negative scale: %v", err)
	}
	if _, err := r.Render(context.Background(), NewRequest("a\x00b"), nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("NUL in source: %v", err)
	}
	if len(fr.calls) != 0 {
		t.Errorf("runner called for invalid requests: %v", fr.calls)
	}
}

func TestRenderCache(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fr := &fakeRunner{}
	r := newTestRenderer(t, testConfig(t), fr, WithCache(c))

	first, err := r.Render(context.Background(), NewRequest("x"), nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Render(context.Background(), NewRequest("x"), nil)
	if err != nil {
		t.Fatal(err)
	}

	if first.Cached || !second.Cached {
		t.Errorf("Cached = %v, %v; want false, true", first.Cached, second.Cached)
	}
	if len(fr.calls) != 2 {
		t.Errorf("cache hit should skip both tools, calls = %v", fr.calls)
	}

	ids := make(map[string]bool)
	for _, res := range []*Result{first, second} {
		for _, el := range res.Group.FindElements(".//*[@id]") {
			id := el.SelectAttrValue("id", "")
			if ids[id] {
				t.Errorf("id %q appears in both renders", id)
			}
			ids[id] = true
		}
	}

	if _, err := r.Render(context.Background(), NewRequest("y"), nil); err != nil {
		t.Fatal(err)
	}
	if len(fr.calls) != 4 {
		t.Errorf("a different document must miss the cache, calls = %v", fr.calls)
	}
}

type recordingHooks struct {
	observability.NoopRenderHooks
	stages []observability.Stage
	errs   []error
}

func (h *recordingHooks) OnStageComplete(_ context.Context, _ string, s observability.Stage, _ time.Duration, err error) {
	h.stages = append(h.stages, s)
}

func (h *recordingHooks) OnRenderComplete(_ context.Context, _ string, _ time.Duration, err error) {
	h.errs = append(h.errs, err)
}

func TestRenderHooks(t *testing.T) {
	h := &recordingHooks{}
	observability.SetRenderHooks(h)
	t.Cleanup(observability.Reset)

	if _, err := newTestRenderer(t, testConfig(t), &fakeRunner{}).Render(context.Background(), NewRequest("x"), nil); err != nil {
		t.Fatal(err)
	}

	want := []observability.Stage{
		observability.StageResolve,
		observability.StageCompile,
		observability.StageConvert,
		observability.StageMerge,
	}
	if diff := cmp.Diff(want, h.stages); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
	if len(h.errs) != 1 || h.errs[0] != nil {
		t.Errorf("OnRenderComplete errors = %v, want one nil", h.errs)
	}
}
