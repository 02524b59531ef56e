// Package pkg provides the core libraries for InkTeX, which renders LaTeX
// fragments into SVG drawings.
//
// # Overview
//
// InkTeX compiles a LaTeX fragment with an installed TeX toolchain, converts
// the compiler output to SVG, and merges the resulting element graph into a
// host drawing as one self-contained group that can later be re-edited. The
// pkg directory is organized into these areas:
//
//  1. [config] - Runtime configuration (toolchains, namespaces, timeouts)
//  2. [toolchain] - Discovery of a usable compiler/converter family
//  3. [render] - Render requests, work areas and the document renderer
//  4. [svgmerge] - Identifier remapping and collapse into a single group
//  5. [hostdoc] - The drawing a group is appended to or replaced in
//  6. [pipeline] - Orchestration (render, stamp source, merge into target)
//
// # Architecture
//
// The data flow for one render:
//
//	Request (source, preamble, scale)
//	         ↓
//	    [toolchain] package (resolve dvi or pdf family)
//	         ↓
//	    [render] package (write .tex, compile, convert in a work area)
//	         ↓
//	    [svgmerge] package (remap ids, rewrite references, collapse, scale)
//	         ↓
//	    [hostdoc] package (append or replace in the drawing)
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/inktex/pkg/config"
//	    "github.com/matzehuels/inktex/pkg/hostdoc"
//	    "github.com/matzehuels/inktex/pkg/pipeline"
//	    "github.com/matzehuels/inktex/pkg/render"
//	    "github.com/matzehuels/inktex/pkg/toolchain"
//	)
//
//	cfg := config.Default()
//	renderer := render.New(cfg, toolchain.NewResolver(cfg))
//	runner := pipeline.NewRunner(renderer, cfg.Namespaces, nil)
//
//	doc, _ := hostdoc.Load("drawing.svg", cfg)
//	_, err := runner.Execute(context.Background(), pipeline.Job{
//	    Target:  doc,
//	    Request: render.NewRequest(`$E = mc^2$`, render.WithScale(2)),
//	})
//	if err == nil {
//	    _ = doc.Save("drawing.svg")
//	}
//
// # Supporting Packages
//
// [errors] - Coded errors. Compiler and converter failures carry the tool's
// captured log, which [errors.UserMessage] returns verbatim.
//
// [cache] - Converter output cache keyed by toolchain family and document
// text: file, Redis and no-op backends.
//
// [observability] - Render stage and cache hooks.
//
// [buildinfo] - Version information injected at build time.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/svgmerge/...           # Specific package
//
// No test needs a TeX installation; the renderer is exercised through a
// fake command runner.
package pkg
