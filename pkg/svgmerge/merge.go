// Package svgmerge turns a freshly converted SVG graph into a single
// self-contained group that can be grafted into another document.
//
// Merging happens in three steps over the whole graph:
//
//  1. Every element carrying an id receives a fresh identifier from an
//     [IDOracle]; the old-to-new mapping is recorded.
//  2. Recognised references are rewritten through that mapping: the
//     xlink:href hyperlink attribute and presentation attributes of the
//     form url(#id). Ids are collected before any reference is touched, so
//     forward references resolve.
//  3. All top-level children of the root are moved, in order, into one new
//     group, which is scaled when the requested scale is not 1.
//
// The returned group is a detached deep copy and can be inserted anywhere.
package svgmerge

import (
	"strconv"

	"github.com/beevik/etree"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/inktex/pkg/config"
	"github.com/matzehuels/inktex/pkg/errors"
)

// Merger collapses converter output into a single group.
type Merger struct {
	idPrefix string
	refs     references
	logger   *log.Logger
}

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sets the logger used for merge diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(m *Merger) { m.logger = l }
}

// NewMerger creates a merger using the namespaces and reference vocabulary
// from cfg.
func NewMerger(cfg config.Config, opts ...Option) *Merger {
	m := &Merger{
		idPrefix: cfg.Merge.IDPrefix,
		refs:     newReferences(cfg.Namespaces.XLink, cfg.Merge.URLAttributes),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge rewrites doc in place and returns a detached copy of the resulting
// group. When oracle is nil a fresh [CounterOracle] is used.
//
// A document without a root element is reported as malformed converter
// output. A root without children yields an empty group.
func (m *Merger) Merge(doc *etree.Document, scale float64, oracle IDOracle) (*etree.Element, error) {
	if doc == nil || doc.Root() == nil {
		return nil, errors.Malformed(nil, "converter output has no root element")
	}
	if err := errors.ValidateScale(scale); err != nil {
		return nil, err
	}
	if oracle == nil {
		oracle = NewCounterOracle(m.idPrefix)
	}

	root := doc.Root()
	remap := assignIDs(root, oracle)
	rewritten := m.refs.rewrite(root, remap)

	group := collapse(root)
	group.CreateAttr("id", oracle.UniqueID("g"))
	if scale != 1.0 {
		group.CreateAttr("transform", ScaleTransform(scale))
	}

	m.logger.Debug("graph merged", "ids", len(remap), "references", rewritten,
		"children", len(group.ChildElements()))

	return group.Copy(), nil
}

// DanglingRefs lists the recognised local references under el that do not
// resolve to an element inside el. A merged group has none.
func (m *Merger) DanglingRefs(el *etree.Element) []string {
	return m.refs.dangling(el)
}

// ScaleTransform formats a uniform scale as an SVG transform.
func ScaleTransform(scale float64) string {
	s := strconv.FormatFloat(scale, 'f', 6, 64)
	return "scale(" + s + "," + s + ")"
}

// collapse appends a new group to root and moves every other child token of
// root into it, preserving order. Prefixed namespace declarations of root
// are repeated on the group so it stays well-formed once detached.
func collapse(root *etree.Element) *etree.Element {
	tag := "g"
	if root.Space != "" {
		tag = root.Space + ":g"
	}

	children := make([]etree.Token, len(root.Child))
	copy(children, root.Child)

	group := root.CreateElement(tag)
	for _, a := range root.Attr {
		if a.Space == "xmlns" {
			group.CreateAttr("xmlns:"+a.Key, a.Value)
		}
	}
	for _, tok := range children {
		group.AddChild(tok)
	}
	return group
}

// Parse reads converter output into a document. Unparseable input and input
// without a root element are reported as malformed.
func Parse(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, errors.Malformed(err, "converter output is not well-formed XML")
	}
	if doc.Root() == nil {
		return nil, errors.Malformed(nil, "converter output has no root element")
	}
	return doc, nil
}
