// Package toolchain selects the external LaTeX compiler and SVG converter
// used to render documents.
//
// A toolchain family pairs one compiler with one converter, for example
// latex + dvisvgm (the "dvi" family) or pdflatex + pdf2svg (the "pdf"
// family). The [Resolver] walks an ordered candidate list and picks the first
// family whose two executables are both present. Members of different
// families are never mixed.
//
// Availability is decided by a [Prober]. The default [ExecProber] runs each
// executable with harmless arguments and only treats "executable not found"
// as disqualifying; any exit status is tolerated.
package toolchain

import (
	"strings"

	"github.com/matzehuels/inktex/pkg/config"
)

// Spec is a resolved toolchain: two argument vectors with the work area
// filenames already substituted.
type Spec struct {
	Family       string
	Compiler     []string
	Converter    []string
	Intermediate string
}

// CompilerName returns the compiler executable.
func (s Spec) CompilerName() string { return s.Compiler[0] }

// ConverterName returns the converter executable.
func (s Spec) ConverterName() string { return s.Converter[0] }

// Expand substitutes the work area filenames into the family's command
// templates. Placeholders may appear anywhere inside a token, so
// "--output={output}" becomes "--output=inktex.svg".
func Expand(tc config.Toolchain, files config.Files) Spec {
	r := strings.NewReplacer(
		config.PlaceholderSource, files.Source,
		config.PlaceholderIntermediate, tc.Intermediate,
		config.PlaceholderOutput, files.Output,
	)
	return Spec{
		Family:       tc.Name,
		Compiler:     expandArgs(r, tc.Compiler),
		Converter:    expandArgs(r, tc.Converter),
		Intermediate: tc.Intermediate,
	}
}

func expandArgs(r *strings.Replacer, args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// probeArgv builds the probe invocation for an executable of a family.
func probeArgv(exe string, tc config.Toolchain) []string {
	return append([]string{exe}, tc.ProbeArgs...)
}
