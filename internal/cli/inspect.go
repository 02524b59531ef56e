package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/inktex/pkg/errors"
	"github.com/matzehuels/inktex/pkg/render"
)

// sourceWidth is the widest source column shown by list.
const sourceWidth = 60

// sourceCommand creates the source command.
func (c *CLI) sourceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "source <drawing.svg> <id>",
		Short: "Print the LaTeX source of a rendered group",
		Args:  cobra.ExactArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 1 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return c.completeGroupIDs(cmd, args, toComplete)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := c.openDrawing(args[0])
			if err != nil {
				return err
			}
			g := doc.ElementByID(args[1])
			if g == nil {
				return errors.New(errors.ErrCodeNotFound, "no element with id %q in %s", args[1], args[0])
			}
			src, ok := doc.Source(g)
			if !ok {
				return errors.New(errors.ErrCodeNotFound, "%q is not a rendered group", args[1])
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, src)
			if !strings.HasSuffix(src, "\n") {
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

// listCommand creates the list command.
func (c *CLI) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <drawing.svg>",
		Short: "List the rendered groups in a drawing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := c.openDrawing(args[0])
			if err != nil {
				return err
			}
			groups := doc.Groups()
			if len(groups) == 0 {
				printInfo("No rendered groups in %s", args[0])
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), groupTable(groups, sourceWidth))
			return nil
		},
	}
}

// settingsCommand creates the settings command.
func (c *CLI) settingsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "settings <drawing.svg> [key=value...]",
		Short: "Show or change the render settings stored in a drawing",
		Long: `Show the render settings stored in a drawing, or store new values.

Known keys are "preamble" (path of a preamble file) and "scale".`,
		Example: `  inktex settings drawing.svg
  inktex settings drawing.svg scale=1.5 preamble=~/tex/preamble.tex`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := c.openDrawing(args[0])
			if err != nil {
				return err
			}

			if len(args) == 1 {
				settings := doc.Settings()
				if len(settings) == 0 {
					printInfo("No settings stored in %s", args[0])
					return nil
				}
				keys := make([]string, 0, len(settings))
				for k := range settings {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					printKeyValue(cmd.OutOrStdout(), k, settings[k])
				}
				return nil
			}

			updates, err := parseSettings(args[1:])
			if err != nil {
				return err
			}
			doc.StoreSettings(updates)
			if err := doc.Save(args[0]); err != nil {
				return err
			}
			printSuccess("Stored %d setting(s)", len(updates))
			printFile(args[0])
			return nil
		},
	}
}

// parseSettings parses key=value pairs. A scale value must be a valid
// scale factor.
func parseSettings(pairs []string) (map[string]string, error) {
	settings := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || !validSettingKey(key) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "invalid setting %q (want key=value)", pair)
		}
		settings[key] = value
	}
	if v, ok := settings[render.SettingScale]; ok {
		scale, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidScale, err, "scale %q", v)
		}
		if err := errors.ValidateScale(scale); err != nil {
			return nil, err
		}
	}
	return settings, nil
}

// validSettingKey reports whether key can be stored as an attribute name.
func validSettingKey(key string) bool {
	if key == "" {
		return false
	}
	for i, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case i > 0 && (r >= '0' && r <= '9' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
