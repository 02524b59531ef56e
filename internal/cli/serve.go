package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/inktex/internal/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the render pipeline over HTTP",
		Long: `Serve the render pipeline over HTTP until interrupted.

Endpoints:
  POST /render     render {"source", "preamble", "scale"} to an SVG document
  GET  /toolchain  show the resolved toolchain
  GET  /healthz    liveness check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("addr") {
				c.cfg.Server.Addr = addr
			}

			eng, err := c.newEngine(ctx, noCache)
			if err != nil {
				return err
			}
			defer eng.Close()

			srv := server.New(c.cfg, eng.runner, eng.resolver, loggerFromContext(ctx))
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8765)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the converter output cache")

	return cmd
}
