package pipeline

import (
	"context"
	"time"

	"github.com/beevik/etree"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/inktex/pkg/config"
	"github.com/matzehuels/inktex/pkg/errors"
	"github.com/matzehuels/inktex/pkg/hostdoc"
	"github.com/matzehuels/inktex/pkg/render"
	"github.com/matzehuels/inktex/pkg/svgmerge"
)

// Renderer produces merged groups. *render.Renderer implements it.
type Renderer interface {
	Render(ctx context.Context, req render.Request, oracle svgmerge.IDOracle) (*render.Result, error)
}

// Runner encapsulates pipeline execution.
// Both CLI and API use it to avoid duplicating the merge logic.
//
// The Runner is stateless; multiple goroutines can use the same Runner
// with different targets.
type Runner struct {
	Renderer   Renderer
	Namespaces config.Namespaces
	Logger     *log.Logger
}

// NewRunner creates a runner. If logger is nil, log.Default() is used.
func NewRunner(r Renderer, ns config.Namespaces, logger *log.Logger) *Runner {
	return &Runner{
		Renderer:   r,
		Namespaces: ns,
		Logger:     defaultLogger(logger),
	}
}

// Execute renders job.Request and merges the result into job.Target.
// Errors from the renderer are returned unchanged so their codes survive.
func (r *Runner) Execute(ctx context.Context, job Job) (*Result, error) {
	if job.Target == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no merge target")
	}
	start := time.Now()

	// Stage 1: Select
	prior, hasPrior := job.Target.Selected()
	if !hasPrior {
		prior = nil
	}

	// Stage 2: Render
	oracle := job.Oracle
	if oracle == nil {
		if o, ok := job.Target.(svgmerge.IDOracle); ok {
			oracle = o
		}
	}
	rendered, err := r.Renderer.Render(ctx, job.Request, oracle)
	if err != nil {
		return nil, err
	}
	renderTime := time.Since(start)

	// Stage 3: Annotate
	group := rendered.Group
	r.recordSource(job.Target, group, job.Request.Source)
	if prior != nil {
		hostdoc.CopyStyles(prior, group)
	}

	// Stage 4: Apply
	result := &Result{Result: rendered}
	if prior != nil {
		result.Replaced = true
		result.PriorID = prior.SelectAttrValue("id", "")
	}
	if err := hostdoc.Apply(job.Target, prior, group); err != nil {
		return nil, err
	}

	if job.Settings != nil {
		if s, ok := job.Target.(SettingsStore); ok {
			s.StoreSettings(job.Settings)
		}
	}

	result.Stats.RenderTime = renderTime
	result.Stats.TotalTime = time.Since(start)

	r.Logger.Debug("merged group",
		"id", group.SelectAttrValue("id", ""),
		"replaced", result.PriorID,
		"family", rendered.Family,
		"cached", rendered.Cached,
		"duration", result.Stats.TotalTime)

	return result, nil
}

func (r *Runner) recordSource(t hostdoc.Target, g *etree.Element, src string) {
	if rec, ok := t.(SourceRecorder); ok {
		rec.SetSource(g, src)
		return
	}
	hostdoc.StampSource(g, r.Namespaces, src)
}
