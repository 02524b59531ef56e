// Package hostdoc grafts rendered groups into an existing SVG document.
//
// A [Target] is anything that can receive a rendered group: either as a new
// element in the current layer or as the replacement of a previously
// rendered group. [Document] is the implementation over an SVG file; it
// also records the LaTeX source on each rendered group (the inktex:src
// attribute) and keeps per-document render settings in svg:metadata, so a
// later edit can start from the stored source.
//
//	doc, err := hostdoc.Load("drawing.svg", cfg)
//	doc.Select("g42")
//	prior, _ := doc.Selected()
//	// ... render, then:
//	err = hostdoc.Apply(doc, prior, group)
//	err = doc.Save("drawing.svg")
package hostdoc

import "github.com/beevik/etree"

// Target receives rendered groups.
type Target interface {
	// Selected returns the previously rendered group the user chose to
	// edit, if any.
	Selected() (*etree.Element, bool)

	// AppendGroup adds g to the target's current insertion point.
	AppendGroup(g *etree.Element) error

	// ReplaceGroup puts g where old was. old leaves the target.
	ReplaceGroup(old, g *etree.Element) error
}

// Apply inserts group into t: it replaces prior when prior is non-nil and
// appends otherwise. Exactly one mutation is performed.
func Apply(t Target, prior, group *etree.Element) error {
	if prior != nil {
		return t.ReplaceGroup(prior, group)
	}
	return t.AppendGroup(group)
}
