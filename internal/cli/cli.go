package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/inktex/pkg/buildinfo"
	"github.com/matzehuels/inktex/pkg/cache"
	"github.com/matzehuels/inktex/pkg/config"
	"github.com/matzehuels/inktex/pkg/pipeline"
	"github.com/matzehuels/inktex/pkg/render"
	"github.com/matzehuels/inktex/pkg/svgmerge"
	"github.com/matzehuels/inktex/pkg/toolchain"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = "inktex"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	verbose    bool
	cfg        config.Config

	// runner and prober replace the subprocess layer when set.
	runner render.CommandRunner
	prober toolchain.Prober
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "InkTeX renders LaTeX into SVG drawings",
		Long:         `InkTeX compiles LaTeX fragments with an installed TeX toolchain, converts the result to SVG and merges it into a drawing as a single, re-editable group.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			if err := c.loadConfig(); err != nil {
				return err
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template(appName))
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/inktex/config.toml)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.sourceCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.settingsCommand())
	root.AddCommand(c.toolchainCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads --config, or the default config file when present.
// Keys no field consumed are reported as warnings.
func (c *CLI) loadConfig() error {
	var (
		cfg       config.Config
		undecoded []string
		err       error
	)
	if c.configPath != "" {
		cfg, undecoded, err = config.Load(c.configPath)
	} else {
		cfg, undecoded, err = config.LoadDefault()
	}
	for _, key := range undecoded {
		c.Logger.Warn("unknown config key", "key", key)
	}
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// =============================================================================
// Engine Factory
// =============================================================================

// engine bundles the components one command invocation renders with.
type engine struct {
	resolver *toolchain.Resolver
	renderer *render.Renderer
	runner   *pipeline.Runner
	merger   *svgmerge.Merger
	cache    cache.Cache
}

// Close releases the cache backend.
func (e *engine) Close() error {
	return e.cache.Close()
}

// newEngine wires resolver, cache, renderer and pipeline runner from the
// loaded configuration.
func (c *CLI) newEngine(ctx context.Context, noCache bool) (*engine, error) {
	ch, err := newCache(ctx, c.cfg, noCache, c.Logger)
	if err != nil {
		return nil, err
	}

	merger := svgmerge.NewMerger(c.cfg, svgmerge.WithLogger(c.Logger))
	resolver := c.newResolver()

	opts := []render.Option{
		render.WithCache(ch),
		render.WithKeyer(newKeyer(c.cfg)),
		render.WithMerger(merger),
		render.WithLogger(c.Logger),
	}
	if c.runner != nil {
		opts = append(opts, render.WithRunner(c.runner))
	}
	renderer := render.New(c.cfg, resolver, opts...)

	return &engine{
		resolver: resolver,
		renderer: renderer,
		runner:   pipeline.NewRunner(renderer, c.cfg.Namespaces, c.Logger),
		merger:   merger,
		cache:    ch,
	}, nil
}

func (c *CLI) newResolver() *toolchain.Resolver {
	opts := []toolchain.Option{toolchain.WithLogger(c.Logger)}
	if c.prober != nil {
		opts = append(opts, toolchain.WithProber(c.prober))
	}
	return toolchain.NewResolver(c.cfg, opts...)
}

// newCache opens the configured cache backend. An unusable cache
// directory degrades to no caching.
func newCache(ctx context.Context, cfg config.Config, noCache bool, logger *log.Logger) (cache.Cache, error) {
	if noCache || cfg.Cache.Backend == config.CacheNone {
		return cache.NewNullCache(), nil
	}
	if cfg.Cache.Backend == config.CacheRedis {
		return cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
	}

	dir, err := cacheDir(cfg)
	if err != nil {
		logger.Warn("cache disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// newKeyer scopes cache keys with the configured prefix.
func newKeyer(cfg config.Config) cache.Keyer {
	if cfg.Cache.KeyPrefix == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(cache.NewDefaultKeyer(), cfg.Cache.KeyPrefix)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory, falling back to the XDG
// default (~/.cache/inktex/).
func cacheDir(cfg config.Config) (string, error) {
	if cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	return config.DefaultCacheDir()
}
