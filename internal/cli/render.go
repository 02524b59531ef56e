package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/inktex/pkg/errors"
	"github.com/matzehuels/inktex/pkg/hostdoc"
	"github.com/matzehuels/inktex/pkg/pipeline"
	"github.com/matzehuels/inktex/pkg/render"
)

// renderFlags holds the flags of the render command.
type renderFlags struct {
	source   string
	file     string
	preamble string
	scale    float64
	replace  string
	output   string
	noCache  bool
	check    bool
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render [drawing.svg]",
		Short: "Render LaTeX and merge it into an SVG drawing",
		Long: `Render a LaTeX fragment and merge it into an SVG drawing as one group.

The group is appended to the drawing's current layer, or replaces the group
named by --replace in place. Without a drawing, a standalone SVG document
holding just the rendered group is written.

The preamble and scale used are stored in the drawing and reused by later
renders unless overridden. With --replace and no new source, the group is
re-rendered from the source it was created with.`,
		Example: `  inktex render -s '$E = mc^2$' drawing.svg
  inktex render -f eq.tex --scale 2 --preamble preamble.tex drawing.svg
  inktex render --replace g1234 -s '$\alpha$' drawing.svg
  inktex render -s '$x^2$' -o fragment.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var drawing string
			if len(args) == 1 {
				drawing = args[0]
			}
			return c.runRender(cmd, drawing, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.source, "source", "s", "", "LaTeX source to render")
	f.StringVarP(&flags.file, "file", "f", "", "read the LaTeX source from a file (- for stdin)")
	f.StringVar(&flags.preamble, "preamble", "", "file included in the document preamble")
	f.Float64Var(&flags.scale, "scale", 0, "scale factor for the rendered group (default: stored setting or 1)")
	f.StringVar(&flags.replace, "replace", "", "id of a rendered group to replace")
	f.StringVarP(&flags.output, "output", "o", "", "output file (default: overwrite the drawing, or stdout)")
	f.BoolVar(&flags.noCache, "no-cache", false, "disable the converter output cache")
	f.BoolVar(&flags.check, "check", false, "fail when the merged group references ids it does not contain")
	cmd.MarkFlagsMutuallyExclusive("source", "file")
	_ = cmd.RegisterFlagCompletionFunc("replace", c.completeGroupIDs)

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, drawing string, flags renderFlags) error {
	ctx := cmd.Context()
	prog := newProgress(loggerFromContext(ctx))

	if flags.replace != "" && drawing == "" {
		return errors.New(errors.ErrCodeInvalidInput, "--replace needs a drawing")
	}

	doc, err := c.openDrawing(drawing)
	if err != nil {
		return err
	}
	if flags.replace != "" {
		doc.Select(flags.replace)
		if _, ok := doc.Selected(); !ok {
			return errors.New(errors.ErrCodeNotFound, "no rendered group with id %q", flags.replace)
		}
	}

	source, err := readSource(cmd, flags, doc)
	if err != nil {
		return err
	}
	settings, err := renderSettings(cmd, flags, doc.Settings())
	if err != nil {
		return err
	}
	req, err := render.RequestFromSettings(source, settings)
	if err != nil {
		return err
	}
	settings[render.SettingScale] = strconv.FormatFloat(req.Scale, 'f', -1, 64)
	prog.step("request ready", "scale", req.Scale, "preamble", req.HasPreamble, "replace", flags.replace)

	eng, err := c.newEngine(ctx, flags.noCache)
	if err != nil {
		return err
	}
	defer eng.Close()

	job := pipeline.Job{Target: doc, Request: req}
	if drawing != "" {
		job.Settings = settings
	}

	spinner := newSpinnerWithContext(ctx, "Rendering...")
	restore := trackStages(spinner)
	spinner.Start()
	res, err := eng.runner.Execute(ctx, job)
	interrupted := spinner.Cancelled()
	spinner.Stop()
	restore()
	if err != nil {
		return err
	}
	if interrupted {
		return ctx.Err()
	}

	if flags.check {
		if refs := eng.merger.DanglingRefs(res.Group); len(refs) > 0 {
			return errors.New(errors.ErrCodeMalformedOutput, "merged group has unresolved references: %s", strings.Join(refs, ", "))
		}
	}

	out := flags.output
	if out == "" {
		out = drawing
	}
	if out == "" {
		if _, err := doc.WriteTo(cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("write svg: %w", err)
		}
	} else if err := doc.Save(out); err != nil {
		return err
	}

	id := res.Group.SelectAttrValue("id", "")
	prog.done("render complete", "group", id, "family", res.Family, "cached", res.Cached)
	if res.Replaced {
		printSuccess("Replaced %s with %s", StyleHighlight.Render(res.PriorID), StyleHighlight.Render(id))
	} else {
		printSuccess("Added %s", StyleHighlight.Render(id))
	}
	printStats(res.Family, res.Stats.RenderTime, res.Cached)
	if out != "" {
		printFile(out)
	}
	return nil
}

// openDrawing loads the drawing at path, or starts an empty one.
func (c *CLI) openDrawing(path string) (*hostdoc.Document, error) {
	if path == "" {
		return hostdoc.NewDocument(c.cfg), nil
	}
	return hostdoc.Load(path, c.cfg)
}

// readSource returns the LaTeX source from --source, --file, or the
// group selected for replacement, in that order.
func readSource(cmd *cobra.Command, flags renderFlags, doc *hostdoc.Document) (string, error) {
	switch {
	case cmd.Flags().Changed("source"):
		return flags.source, nil
	case flags.file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case flags.file != "":
		data, err := os.ReadFile(flags.file)
		if err != nil {
			if os.IsNotExist(err) {
				return "", errors.Wrap(errors.ErrCodeNotFound, err, "source file %s", flags.file)
			}
			return "", fmt.Errorf("read %s: %w", flags.file, err)
		}
		return string(data), nil
	}

	if prior, ok := doc.Selected(); ok {
		if src, ok := doc.Source(prior); ok {
			return src, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "no LaTeX source given (use --source or --file)")
}

// renderSettings overlays the preamble and scale flags on the settings
// stored in the drawing.
func renderSettings(cmd *cobra.Command, flags renderFlags, stored map[string]string) (map[string]string, error) {
	settings := make(map[string]string, len(stored)+2)
	for k, v := range stored {
		settings[k] = v
	}

	if cmd.Flags().Changed("preamble") {
		if flags.preamble != "" {
			if _, err := os.Stat(flags.preamble); err != nil {
				return nil, errors.Wrap(errors.ErrCodeNotFound, err, "preamble file %s", flags.preamble)
			}
		}
		settings[render.SettingPreamble] = flags.preamble
	}
	if cmd.Flags().Changed("scale") {
		settings[render.SettingScale] = strconv.FormatFloat(flags.scale, 'f', -1, 64)
	}
	return settings, nil
}
