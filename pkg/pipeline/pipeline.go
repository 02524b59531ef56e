// Package pipeline runs the complete render-and-merge flow for inktex.
//
// This package ties the document renderer to a merge target so that the
// CLI and the HTTP server share one implementation of the flow:
//
//  1. Select: read the previously rendered group the user chose, if any
//  2. Render: compile, convert and merge the LaTeX fragment
//  3. Annotate: record the source on the group and carry over the prior
//     group's transform and style
//  4. Apply: append the group, or replace the prior group with it
//
// The target is mutated exactly once per successful run and never on
// failure.
//
// # Usage
//
//	runner := pipeline.NewRunner(renderer, cfg.Namespaces, logger)
//	doc, _ := hostdoc.Load("drawing.svg", cfg)
//	doc.Select("g42")
//	result, err := runner.Execute(ctx, pipeline.Job{
//	    Target:  doc,
//	    Request: render.NewRequest(`$e^{i\pi}+1=0$`),
//	})
package pipeline

import (
	"time"

	"github.com/beevik/etree"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/inktex/pkg/errors"
	"github.com/matzehuels/inktex/pkg/hostdoc"
	"github.com/matzehuels/inktex/pkg/render"
	"github.com/matzehuels/inktex/pkg/svgmerge"
)

// DefaultScale is applied when Options.Scale is absent.
const DefaultScale = 1.0

// =============================================================================
// Options - Request Configuration
// =============================================================================

// Options describes one render as received from the CLI or the API.
// This struct supports JSON serialization for API requests.
type Options struct {
	Source   string   `json:"source"`
	Preamble *string  `json:"preamble,omitempty"`
	Scale    *float64 `json:"scale,omitempty"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// ValidateAndSetDefaults fills defaults and validates the options.
// Calling it more than once is harmless.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Scale == nil {
		scale := DefaultScale
		o.Scale = &scale
	}
	if o.Source == "" {
		return errors.New(errors.ErrCodeInvalidInput, "source is required")
	}
	if err := o.Request().Validate(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// Request converts the options into a render request.
func (o Options) Request() render.Request {
	scale := DefaultScale
	if o.Scale != nil {
		scale = *o.Scale
	}
	opts := []render.RequestOption{render.WithScale(scale)}
	if o.Preamble != nil {
		opts = append(opts, render.WithPreamble(*o.Preamble))
	}
	return render.NewRequest(o.Source, opts...)
}

// =============================================================================
// Job and Result
// =============================================================================

// Job is one pipeline run against a target.
type Job struct {
	Target  hostdoc.Target
	Request render.Request

	// Oracle supplies identifiers for the merged group. When nil, the
	// target is used if it implements svgmerge.IDOracle, otherwise a
	// fresh counter oracle.
	Oracle svgmerge.IDOracle

	// Settings, when non-nil, are stored on targets that keep settings
	// after a successful run.
	Settings map[string]string
}

// Result contains the outputs of a pipeline run.
type Result struct {
	*render.Result

	// Replaced reports whether a prior group was replaced.
	Replaced bool

	// PriorID is the id of the replaced group, if any.
	PriorID string

	// Stats contains timing information.
	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	RenderTime time.Duration
	TotalTime  time.Duration
}

// SourceRecorder is implemented by targets that record the source of a
// group in their own namespace context.
type SourceRecorder interface {
	SetSource(g *etree.Element, src string)
}

// SettingsStore is implemented by targets that persist render settings.
type SettingsStore interface {
	StoreSettings(settings map[string]string)
}

func defaultLogger(l *log.Logger) *log.Logger {
	if l == nil {
		return log.Default()
	}
	return l
}
