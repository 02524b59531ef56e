package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// toolchainCommand creates the toolchain command.
func (c *CLI) toolchainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toolchain",
		Short: "Show the LaTeX toolchain renders will use",
		Long: `Probe the configured toolchain families in preference order and show the
first one whose compiler and converter are both installed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolver := c.newResolver()

			printDetail("Candidates: %s", strings.Join(resolver.Candidates(), ", "))
			prog := newProgress(loggerFromContext(ctx), "candidates", len(resolver.Candidates()))
			spinner := newSpinnerWithContext(ctx, "Probing toolchains...")
			spinner.Start()
			spec, err := resolver.Resolve(ctx)
			if err != nil {
				spinner.StopWithError("No usable toolchain")
				return err
			}
			spinner.StopWithSuccess("Resolved " + spec.Family + " toolchain")
			prog.done("toolchain resolved", "family", spec.Family)

			out := cmd.OutOrStdout()
			printKeyValue(out, "family", spec.Family)
			printKeyValue(out, "compiler", strings.Join(spec.Compiler, " "))
			printKeyValue(out, "converter", strings.Join(spec.Converter, " "))
			printKeyValue(out, "intermediate", spec.Intermediate)
			return nil
		},
	}
}
