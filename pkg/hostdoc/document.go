package hostdoc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/beevik/etree"

	"github.com/matzehuels/inktex/pkg/config"
	"github.com/matzehuels/inktex/pkg/errors"
)

const (
	attrSrc        = "src"
	tagSettings    = "settings"
	inkscapePrefix = "inkscape"
)

// Document is an SVG document that rendered groups are merged into.
// It implements [Target] and [svgmerge.IDOracle]; identifiers it hands out
// are unique among the document's ids and those handed out before.
//
// A Document is not safe for concurrent use.
type Document struct {
	doc      *etree.Document
	ns       config.Namespaces
	idPrefix string

	selected []string
	ids      map[string]bool
}

// Group is a rendered group found in a document.
type Group struct {
	ID      string
	Source  string
	Element *etree.Element
}

// NewDocument creates an empty SVG document declaring the svg, xlink and
// inktex namespaces.
func NewDocument(cfg config.Config) *Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("svg")
	root.CreateAttr("xmlns", cfg.Namespaces.SVG)
	root.CreateAttr("xmlns:xlink", cfg.Namespaces.XLink)
	root.CreateAttr("xmlns:"+cfg.Namespaces.InkTeXPrefix, cfg.Namespaces.InkTeX)
	root.CreateAttr("version", "1.1")
	return newDocument(doc, cfg)
}

// Parse reads a document from data.
func Parse(data []byte, cfg config.Config) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "parse svg document")
	}
	return checkRoot(doc, cfg)
}

// Load reads a document from path.
func Load(path string, cfg config.Config) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "svg document %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidDocument, err, "read svg document %s", path)
	}
	return checkRoot(doc, cfg)
}

func checkRoot(doc *etree.Document, cfg config.Config) (*Document, error) {
	root := doc.Root()
	if root == nil || root.Tag != "svg" {
		return nil, errors.New(errors.ErrCodeInvalidDocument, "document root is not an svg element")
	}
	return newDocument(doc, cfg), nil
}

func newDocument(doc *etree.Document, cfg config.Config) *Document {
	return &Document{doc: doc, ns: cfg.Namespaces, idPrefix: cfg.Merge.IDPrefix}
}

// Root returns the svg root element.
func (d *Document) Root() *etree.Element { return d.doc.Root() }

// WriteTo serialises the document.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	return d.doc.WriteTo(w)
}

// Bytes serialises the document into memory.
func (d *Document) Bytes() ([]byte, error) {
	return d.doc.WriteToBytes()
}

// Save writes the document to path, replacing it atomically. An existing
// file keeps its permissions.
func (d *Document) Save(path string) error {
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".inktex-*.svg")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := d.doc.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// Selection
// =============================================================================

// Select sets the ids of the selected elements, in selection order.
func (d *Document) Select(ids ...string) {
	d.selected = append([]string(nil), ids...)
}

// Selected returns the first selected element that is a rendered group.
// Selected elements of any other kind are ignored.
func (d *Document) Selected() (*etree.Element, bool) {
	for _, id := range d.selected {
		el := d.ElementByID(id)
		if el != nil && d.isGroup(el) && d.srcAttr(el) != nil {
			return el, true
		}
	}
	return nil, false
}

// ElementByID returns the element with the given id, or nil.
func (d *Document) ElementByID(id string) *etree.Element {
	var found *etree.Element
	walk(d.doc.Root(), func(e *etree.Element) bool {
		if e.SelectAttrValue("id", "") == id {
			found = e
			return false
		}
		return true
	})
	return found
}

// Groups lists every rendered group in document order. Groups whose stored
// source cannot be decoded are skipped.
func (d *Document) Groups() []Group {
	var out []Group
	walk(d.doc.Root(), func(e *etree.Element) bool {
		if !d.isGroup(e) {
			return true
		}
		if src, ok := d.Source(e); ok {
			out = append(out, Group{ID: e.SelectAttrValue("id", ""), Source: src, Element: e})
		}
		return true
	})
	return out
}

// =============================================================================
// Target
// =============================================================================

// AppendGroup adds g to the current layer: the layer named by the
// document's inkscape:current-layer, else the last top-level layer, else
// the root.
func (d *Document) AppendGroup(g *etree.Element) error {
	if g == nil {
		return errors.New(errors.ErrCodeInvalidInput, "no group to append")
	}
	d.currentLayer().AddChild(g)
	d.reserve(g)
	return nil
}

// ReplaceGroup puts g at old's position in old's parent.
func (d *Document) ReplaceGroup(old, g *etree.Element) error {
	if g == nil {
		return errors.New(errors.ErrCodeInvalidInput, "no replacement group")
	}
	if old == nil || !d.contains(old) {
		return errors.New(errors.ErrCodeNotFound, "group to replace is not part of the document")
	}

	parent := old.Parent()
	idx := old.Index()
	parent.RemoveChildAt(idx)
	parent.InsertChildAt(idx, g)
	d.reserve(g)
	return nil
}

func (d *Document) currentLayer() *etree.Element {
	root := d.doc.Root()

	for _, el := range root.ChildElements() {
		if el.Tag != "namedview" {
			continue
		}
		if a := findAttr(el, "current-layer", d.ns.Inkscape, inkscapePrefix); a != nil {
			if layer := d.ElementByID(a.Value); layer != nil && d.isGroup(layer) {
				return layer
			}
		}
	}

	var last *etree.Element
	for _, el := range root.ChildElements() {
		if d.isGroup(el) {
			if a := findAttr(el, "groupmode", d.ns.Inkscape, inkscapePrefix); a != nil && a.Value == "layer" {
				last = el
			}
		}
	}
	if last != nil {
		return last
	}
	return root
}

func (d *Document) contains(el *etree.Element) bool {
	root := d.doc.Root()
	for p := el; p != nil; p = p.Parent() {
		if p == root {
			return el != root
		}
	}
	return false
}

// =============================================================================
// Identifiers
// =============================================================================

// UniqueID returns base when no element of the document uses it and it has
// not been handed out before; otherwise base with a numeric suffix.
func (d *Document) UniqueID(base string) string {
	d.loadIDs()
	if !isNameStart(base) {
		base = d.idPrefix
	}
	id := base
	for n := 1; d.ids[id]; n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	d.ids[id] = true
	return id
}

func (d *Document) loadIDs() {
	if d.ids != nil {
		return
	}
	d.ids = make(map[string]bool)
	d.reserve(d.doc.Root())
}

func (d *Document) reserve(el *etree.Element) {
	d.loadIDs()
	walk(el, func(e *etree.Element) bool {
		if id := e.SelectAttrValue("id", ""); id != "" {
			d.ids[id] = true
		}
		return true
	})
}

// =============================================================================
// Metadata
// =============================================================================

// SetSource records src on g as the inktex:src attribute.
func (d *Document) SetSource(g *etree.Element, src string) {
	if a := d.srcAttr(g); a != nil {
		g.RemoveAttr(a.FullKey())
	}
	prefix := d.inktexPrefix()
	g.CreateAttr(prefix+":"+attrSrc, EncodeSource(src))
}

// Source returns the source recorded on g. A missing or undecodable value
// reports false.
func (d *Document) Source(g *etree.Element) (string, bool) {
	a := d.srcAttr(g)
	if a == nil {
		return "", false
	}
	src, err := DecodeSource(a.Value)
	if err != nil {
		return "", false
	}
	return src, true
}

// Settings returns the stored render settings, keyed by local attribute
// name. A document without settings yields an empty map.
func (d *Document) Settings() map[string]string {
	out := make(map[string]string)
	el := d.settingsElement()
	if el == nil {
		return out
	}
	for _, a := range el.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		out[a.Key] = a.Value
	}
	return out
}

// StoreSettings writes settings into svg:metadata/inktex:settings,
// creating both elements when needed. Existing keys not in settings are
// kept.
func (d *Document) StoreSettings(settings map[string]string) {
	el := d.settingsElement()
	prefix := d.inktexPrefix()
	if el == nil {
		el = d.metadata().CreateElement(prefix + ":" + tagSettings)
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		el.CreateAttr(prefix+":"+k, settings[k])
	}
}

func (d *Document) settingsElement() *etree.Element {
	var found *etree.Element
	walk(d.doc.Root(), func(e *etree.Element) bool {
		if e.Tag == tagSettings && inNamespace(e.NamespaceURI(), e.Space, d.ns.InkTeX, d.ns.InkTeXPrefix) {
			found = e
			return false
		}
		return true
	})
	return found
}

func (d *Document) metadata() *etree.Element {
	root := d.doc.Root()
	for _, el := range root.ChildElements() {
		if el.Tag == "metadata" && el.Space == root.Space {
			return el
		}
	}
	md := etree.NewElement(qualify(root.Space, "metadata"))
	root.InsertChildAt(0, md)
	return md
}

// inktexPrefix returns the prefix bound to the inktex namespace on the
// root, declaring the configured prefix when there is none.
func (d *Document) inktexPrefix() string {
	root := d.doc.Root()
	for _, a := range root.Attr {
		if a.Space == "xmlns" && a.Value == d.ns.InkTeX {
			return a.Key
		}
	}
	root.CreateAttr("xmlns:"+d.ns.InkTeXPrefix, d.ns.InkTeX)
	return d.ns.InkTeXPrefix
}

func (d *Document) srcAttr(g *etree.Element) *etree.Attr {
	return findAttr(g, attrSrc, d.ns.InkTeX, d.ns.InkTeXPrefix)
}

func (d *Document) isGroup(el *etree.Element) bool {
	if el.Tag != "g" {
		return false
	}
	ns := el.NamespaceURI()
	return ns == "" || ns == d.ns.SVG
}

// =============================================================================
// Helpers
// =============================================================================

// CopyStyles carries the transform and style of a replaced group over to
// its replacement. The old transform wins over any scale transform on g.
func CopyStyles(old, g *etree.Element) {
	if old == nil || g == nil {
		return
	}
	for _, key := range []string{"transform", "style"} {
		if a := old.SelectAttr(key); a != nil {
			g.CreateAttr(key, a.Value)
		}
	}
}

func findAttr(el *etree.Element, key, uri, prefix string) *etree.Attr {
	for i := range el.Attr {
		a := &el.Attr[i]
		if a.Key == key && a.Space != "" && inNamespace(a.NamespaceURI(), a.Space, uri, prefix) {
			return a
		}
	}
	return nil
}

// inNamespace matches a resolved namespace URI against uri, falling back to
// the conventional prefix when the prefix is not declared in scope.
func inNamespace(resolved, space, uri, prefix string) bool {
	if resolved != "" {
		return resolved == uri
	}
	return space == prefix
}

func qualify(space, tag string) string {
	if space == "" {
		return tag
	}
	return space + ":" + tag
}

func isNameStart(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// walk visits el and its descendants in document order until fn returns false.
func walk(el *etree.Element, fn func(*etree.Element) bool) bool {
	if !fn(el) {
		return false
	}
	for _, c := range el.ChildElements() {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}
