// Package render compiles a LaTeX fragment into a merged SVG group.
//
// # Overview
//
// A [Renderer] drives the external toolchain chosen by a toolchain
// resolver. Each call to [Renderer.Render]:
//
//  1. assembles a complete document from a fixed skeleton, the optional
//     preamble and the body text
//  2. writes it into a fresh [WorkArea]
//  3. runs the compiler, then the converter, inside that directory
//  4. parses the converter output and hands it to an [svgmerge.Merger]
//
// Every stage fails fast. A non-zero exit of either tool surfaces the
// tool's combined output verbatim through [errors.UserMessage].
//
// # Caching
//
// Converter output is cached by toolchain family and assembled document.
// A hit skips both subprocesses; merging always runs, so cached renders
// still receive fresh identifiers.
//
//	r := render.New(cfg, resolver, render.WithCache(c))
//	res, err := r.Render(ctx, render.NewRequest(`$x^2$`, render.WithScale(2)), nil)
//
// # External Tools
//
// Subprocesses run through a [CommandRunner]. [ExecRunner] is the real
// implementation; tests substitute a fake that writes the expected files
// into the work directory.
package render
