package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/inktex/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestDefaultToolchainOrder(t *testing.T) {
	tcs := DefaultToolchains()
	if len(tcs) != 2 {
		t.Fatalf("len(DefaultToolchains()) = %d, want 2", len(tcs))
	}
	if tcs[0].Name != "dvi" || tcs[1].Name != "pdf" {
		t.Errorf("order = %s, %s; want dvi, pdf", tcs[0].Name, tcs[1].Name)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[render]
timeout = "90s"

[cache]
backend = "none"
`)

	cfg, undecoded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(undecoded) != 0 {
		t.Errorf("undecoded = %v, want none", undecoded)
	}
	if cfg.Render.Timeout.Duration != 90*time.Second {
		t.Errorf("Render.Timeout = %v, want 90s", cfg.Render.Timeout.Duration)
	}
	if cfg.Cache.Backend != CacheNone {
		t.Errorf("Cache.Backend = %q, want none", cfg.Cache.Backend)
	}
	if cfg.Files.Source != "inktex.tex" {
		t.Errorf("Files.Source = %q, want default", cfg.Files.Source)
	}
	if len(cfg.Toolchains) != 2 {
		t.Errorf("Toolchains should keep defaults, got %d", len(cfg.Toolchains))
	}
}

func TestLoadReplacesToolchains(t *testing.T) {
	path := writeConfig(t, `
[[toolchain]]
name = "xe"
compiler = ["xelatex", "-no-pdf", "{source}"]
converter = ["dvisvgm", "--no-fonts", "--output={output}", "{intermediate}"]
intermediate = "inktex.xdv"
`)

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Toolchains) != 1 || cfg.Toolchains[0].Name != "xe" {
		t.Fatalf("Toolchains = %+v, want single xe", cfg.Toolchains)
	}
	if _, ok := cfg.Toolchain("xe"); !ok {
		t.Error("Toolchain(xe) not found")
	}
	if _, ok := cfg.Toolchain("dvi"); ok {
		t.Error("default dvi toolchain should have been replaced")
	}
}

func TestLoadReportsUndecodedKeys(t *testing.T) {
	path := writeConfig(t, `
[render]
timout = "5s"
`)

	_, undecoded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(undecoded) != 1 || undecoded[0] != "render.timout" {
		t.Errorf("undecoded = %v, want [render.timout]", undecoded)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		code errors.Code
	}{
		{"bad backend", "[cache]\nbackend = \"memcached\"\n", errors.ErrCodeInvalidInput},
		{"redis without url", "[cache]\nbackend = \"redis\"\n", errors.ErrCodeInvalidInput},
		{"source with path", "[files]\nsource = \"a/b.tex\"\n", errors.ErrCodeInvalidFilename},
		{"same source and output", "[files]\nsource = \"x.tex\"\noutput = \"x.tex\"\n", errors.ErrCodeInvalidFilename},
		{"numeric id prefix", "[merge]\nid_prefix = \"9x\"\n", errors.ErrCodeInvalidInput},
		{"unknown probe method", "[probe]\nmethod = \"guess\"\n", errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("code = %v, want %v (%v)", errors.GetCode(err), tt.code, err)
			}
		})
	}
}

func TestLoadBadDuration(t *testing.T) {
	if _, _, err := Load(writeConfig(t, "[render]\ntimeout = \"soon\"\n")); err == nil {
		t.Error("Load() should reject an unparseable duration")
	}
}

func TestLoadDefaultWithoutFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, _, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}
	if cfg.Merge.IDPrefix != "inktex" {
		t.Errorf("IDPrefix = %q, want inktex", cfg.Merge.IDPrefix)
	}
}

func TestDefaultPathXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	path, err := DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join("/tmp/xdg", "inktex", "config.toml") {
		t.Errorf("DefaultPath() = %q", path)
	}
}

func TestDefaultCacheDirXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	dir, err := DefaultCacheDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/tmp/xdg-cache", "inktex") {
		t.Errorf("DefaultCacheDir() = %q", dir)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, undecoded, err := Load(filepath.Join("..", "..", "examples", "config.toml"))
	if err != nil {
		t.Fatalf("Load(example) error: %v", err)
	}
	if len(undecoded) != 0 {
		t.Errorf("example config has unknown keys: %v", undecoded)
	}
	if got := len(cfg.Toolchains); got != 2 {
		t.Fatalf("toolchains = %d, want 2", got)
	}
	if _, ok := cfg.Toolchain("xe"); !ok {
		t.Error("example should declare the xe family")
	}
	if cfg.Render.Timeout.Duration != 90*time.Second {
		t.Errorf("render timeout = %v", cfg.Render.Timeout.Duration)
	}
	if cfg.Merge.IDPrefix != "tex" {
		t.Errorf("id prefix = %q", cfg.Merge.IDPrefix)
	}
}
