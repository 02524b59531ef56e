// Package config defines the configuration value object shared by the
// toolchain resolver, the document renderer and the graph merger.
//
// A [Config] is constructed once at startup, either from [Default] or by
// overlaying a TOML file with [Load], and then passed explicitly to every
// component. Nothing in inktex reads configuration from package-level state.
//
// # File Format
//
//	[render]
//	timeout = "90s"
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//
//	[[toolchain]]
//	name = "pdf"
//	compiler = ["pdflatex", "-interaction=nonstopmode", "{source}"]
//	converter = ["pdf2svg", "{intermediate}", "{output}"]
//	intermediate = "inktex.pdf"
//
// Keys that are not set keep their default values. Declaring any
// [[toolchain]] table replaces the whole default candidate list.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/inktex/pkg/errors"
)

const appName = "inktex"

// Template placeholders substituted into toolchain argument vectors.
const (
	PlaceholderSource       = "{source}"
	PlaceholderIntermediate = "{intermediate}"
	PlaceholderOutput       = "{output}"
)

// Probe methods.
const (
	ProbeExec = "exec"
	ProbePath = "path"
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Config is the complete runtime configuration.
type Config struct {
	Files      Files       `toml:"files"`
	Namespaces Namespaces  `toml:"namespaces"`
	Toolchains []Toolchain `toml:"toolchain"`
	Probe      Probe       `toml:"probe"`
	Render     Render      `toml:"render"`
	Merge      Merge       `toml:"merge"`
	Cache      Cache       `toml:"cache"`
	Server     Server      `toml:"server"`
}

// Files names the well-known files inside a render work area.
// The compiler's intermediate file is named per toolchain.
type Files struct {
	Source string `toml:"source"`
	Output string `toml:"output"`
}

// Namespaces holds the XML namespace URIs the merger and the host document
// adapter rely on.
type Namespaces struct {
	SVG          string `toml:"svg"`
	XLink        string `toml:"xlink"`
	Inkscape     string `toml:"inkscape"`
	InkTeX       string `toml:"inktex"`
	InkTeXPrefix string `toml:"inktex_prefix"`
}

// Toolchain is one compiler/converter family.
type Toolchain struct {
	Name         string   `toml:"name"`
	Compiler     []string `toml:"compiler"`
	Converter    []string `toml:"converter"`
	Intermediate string   `toml:"intermediate"`
	ProbeArgs    []string `toml:"probe_args"`
}

// Probe configures toolchain availability probing.
// Method "exec" runs each executable; "path" only looks it up on PATH.
type Probe struct {
	Method  string   `toml:"method"`
	Timeout Duration `toml:"timeout"`
}

// Render configures the document renderer.
type Render struct {
	Timeout Duration `toml:"timeout"`
	TempDir string   `toml:"temp_dir"`
}

// Merge configures the graph merger.
type Merge struct {
	IDPrefix string `toml:"id_prefix"`

	// URLAttributes lists the presentation attributes whose url(#id)
	// values are rewritten when ids are remapped.
	URLAttributes []string `toml:"url_attributes"`
}

// Cache configures the converter-output cache.
type Cache struct {
	Backend  string   `toml:"backend"`
	Dir      string   `toml:"dir"`
	RedisURL string   `toml:"redis_url"`
	TTL      Duration `toml:"ttl"`

	// KeyPrefix scopes keys in a backend shared with other applications.
	KeyPrefix string `toml:"key_prefix"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr string `toml:"addr"`
}

// Duration is a time.Duration that decodes from strings like "60s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration. The dvi family is preferred
// over the pdf family.
func Default() Config {
	return Config{
		Files: Files{
			Source: "inktex.tex",
			Output: "inktex.svg",
		},
		Namespaces: Namespaces{
			SVG:          "http://www.w3.org/2000/svg",
			XLink:        "http://www.w3.org/1999/xlink",
			Inkscape:     "http://www.inkscape.org/namespaces/inkscape",
			InkTeX:       "http://www.oelerich.org/inktex",
			InkTeXPrefix: "inktex",
		},
		Toolchains: DefaultToolchains(),
		Probe:      Probe{Method: ProbeExec, Timeout: Duration{5 * time.Second}},
		Render:     Render{Timeout: Duration{60 * time.Second}},
		Merge: Merge{
			IDPrefix:      appName,
			URLAttributes: []string{"clip-path", "mask", "fill", "stroke", "filter"},
		},
		Cache: Cache{
			Backend: CacheFile,
			TTL:     Duration{7 * 24 * time.Hour},
		},
		Server: Server{Addr: "127.0.0.1:8765"},
	}
}

// DefaultToolchains returns the built-in candidate families in preference order.
func DefaultToolchains() []Toolchain {
	return []Toolchain{
		{
			Name:         "dvi",
			Compiler:     []string{"latex", "-interaction=nonstopmode", "-halt-on-error", PlaceholderSource},
			Converter:    []string{"dvisvgm", "--no-fonts", "--output=" + PlaceholderOutput, PlaceholderIntermediate},
			Intermediate: "inktex.dvi",
			ProbeArgs:    []string{"--version"},
		},
		{
			Name:         "pdf",
			Compiler:     []string{"pdflatex", "-interaction=nonstopmode", "-halt-on-error", PlaceholderSource},
			Converter:    []string{"pdf2svg", PlaceholderIntermediate, PlaceholderOutput},
			Intermediate: "inktex.pdf",
			ProbeArgs:    []string{"--version"},
		},
	}
}

// Load reads the TOML file at path on top of [Default] and validates the
// result. It returns the keys present in the file that no field consumed so
// the caller can warn about typos.
func Load(path string) (Config, []string, error) {
	cfg := Default()
	cfg.Toolchains = nil

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(cfg.Toolchains) == 0 {
		cfg.Toolchains = DefaultToolchains()
	}

	var undecoded []string
	for _, key := range md.Undecoded() {
		undecoded = append(undecoded, key.String())
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, undecoded, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, undecoded, nil
}

// LoadDefault loads the file at [DefaultPath] if it exists, and returns
// [Default] otherwise.
func LoadDefault() (Config, []string, error) {
	path, err := DefaultPath()
	if err != nil {
		return Default(), nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil, nil
	}
	return Load(path)
}

// DefaultPath returns the config file location using the XDG standard
// (~/.config/inktex/config.toml).
func DefaultPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// DefaultCacheDir returns the cache directory using the XDG standard
// (~/.cache/inktex/).
func DefaultCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	if err := errors.ValidateWorkFilename(c.Files.Source); err != nil {
		return err
	}
	if err := errors.ValidateWorkFilename(c.Files.Output); err != nil {
		return err
	}
	if c.Files.Source == c.Files.Output {
		return errors.New(errors.ErrCodeInvalidFilename, "source and output filenames must differ")
	}

	if len(c.Toolchains) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "at least one toolchain is required")
	}
	seen := make(map[string]bool)
	for i, tc := range c.Toolchains {
		if tc.Name == "" {
			return errors.New(errors.ErrCodeInvalidInput, "toolchain %d: name is required", i)
		}
		if seen[tc.Name] {
			return errors.New(errors.ErrCodeInvalidInput, "toolchain %q declared twice", tc.Name)
		}
		seen[tc.Name] = true
		if len(tc.Compiler) == 0 || tc.Compiler[0] == "" {
			return errors.New(errors.ErrCodeInvalidInput, "toolchain %q: compiler command is required", tc.Name)
		}
		if len(tc.Converter) == 0 || tc.Converter[0] == "" {
			return errors.New(errors.ErrCodeInvalidInput, "toolchain %q: converter command is required", tc.Name)
		}
		if err := errors.ValidateWorkFilename(tc.Intermediate); err != nil {
			return fmt.Errorf("toolchain %q: %w", tc.Name, err)
		}
		if tc.Intermediate == c.Files.Source || tc.Intermediate == c.Files.Output {
			return errors.New(errors.ErrCodeInvalidFilename, "toolchain %q: intermediate file collides with source or output", tc.Name)
		}
	}

	if c.Render.Timeout.Duration <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "render timeout must be positive")
	}
	if c.Probe.Timeout.Duration <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "probe timeout must be positive")
	}
	if c.Probe.Method != ProbeExec && c.Probe.Method != ProbePath {
		return errors.New(errors.ErrCodeInvalidInput, "unknown probe method %q (must be 'exec' or 'path')", c.Probe.Method)
	}

	if !isNameStart(c.Merge.IDPrefix) {
		return errors.New(errors.ErrCodeInvalidInput, "id prefix %q must start with a letter or underscore", c.Merge.IDPrefix)
	}

	ns := c.Namespaces
	if ns.SVG == "" || ns.XLink == "" || ns.InkTeX == "" || ns.InkTeXPrefix == "" {
		return errors.New(errors.ErrCodeInvalidInput, "svg, xlink and inktex namespaces are required")
	}

	switch c.Cache.Backend {
	case CacheFile, CacheNone:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return errors.New(errors.ErrCodeInvalidInput, "redis cache backend requires redis_url")
		}
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q (must be 'file', 'redis' or 'none')", c.Cache.Backend)
	}

	return nil
}

// Toolchain returns the named toolchain.
func (c Config) Toolchain(name string) (Toolchain, bool) {
	for _, tc := range c.Toolchains {
		if tc.Name == name {
			return tc, true
		}
	}
	return Toolchain{}, false
}

func isNameStart(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
