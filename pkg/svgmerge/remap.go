package svgmerge

import (
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

// urlRef matches a presentation attribute value of the form url(<ref>).
var urlRef = regexp.MustCompile(`^url\((.*)\)$`)

// Remap maps an old reference ("#old") to its replacement ("#new").
type Remap map[string]string

// Lookup returns the replacement for ref, or ref itself when it is not
// remapped.
func (r Remap) Lookup(ref string) string {
	if v, ok := r[ref]; ok {
		return v
	}
	return ref
}

// assignIDs gives every element under root (root included) that carries an
// id a fresh identifier and records the mapping. It must run over the whole
// tree before any reference is rewritten, since references may precede the
// element they point at.
func assignIDs(root *etree.Element, oracle IDOracle) Remap {
	remap := make(Remap)
	walk(root, func(e *etree.Element) {
		attr := e.SelectAttr("id")
		if attr == nil || attr.Space != "" {
			return
		}
		newID := oracle.UniqueID(attr.Value)
		remap["#"+attr.Value] = "#" + newID
		attr.Value = newID
	})
	return remap
}

// references holds the reference vocabulary the merger understands.
type references struct {
	xlinkNS  string
	urlAttrs map[string]bool
}

func newReferences(xlinkNS string, urlAttrs []string) references {
	set := make(map[string]bool, len(urlAttrs))
	for _, a := range urlAttrs {
		set[a] = true
	}
	return references{xlinkNS: xlinkNS, urlAttrs: set}
}

// isHref reports whether a is the namespaced hyperlink attribute. An
// undeclared "xlink" prefix is accepted as well, since converters are not
// always careful to declare it.
func (refs references) isHref(a *etree.Attr) bool {
	if a.Key != "href" || a.Space == "" {
		return false
	}
	ns := a.NamespaceURI()
	return ns == refs.xlinkNS || (ns == "" && a.Space == "xlink")
}

// isURLAttr reports whether a is a presentation attribute holding url(...).
func (refs references) isURLAttr(a *etree.Attr) bool {
	return a.Space == "" && refs.urlAttrs[a.Key]
}

// rewrite applies remap to every recognised reference under root.
// Values in any other form are left as they are.
func (refs references) rewrite(root *etree.Element, remap Remap) int {
	n := 0
	walk(root, func(e *etree.Element) {
		for i := range e.Attr {
			a := &e.Attr[i]
			switch {
			case refs.isHref(a):
				if v := remap.Lookup(a.Value); v != a.Value {
					a.Value = v
					n++
				}
			case refs.isURLAttr(a):
				m := urlRef.FindStringSubmatch(a.Value)
				if m == nil {
					continue
				}
				if v := remap.Lookup(m[1]); v != m[1] {
					a.Value = "url(" + v + ")"
					n++
				}
			}
		}
	})
	return n
}

// dangling lists recognised local references under root that do not
// resolve to an id inside root.
func (refs references) dangling(root *etree.Element) []string {
	ids := make(map[string]bool)
	walk(root, func(e *etree.Element) {
		if id := e.SelectAttrValue("id", ""); id != "" {
			ids[id] = true
		}
	})

	var out []string
	check := func(ref string) {
		if strings.HasPrefix(ref, "#") && !ids[ref[1:]] {
			out = append(out, ref)
		}
	}
	walk(root, func(e *etree.Element) {
		for i := range e.Attr {
			a := &e.Attr[i]
			switch {
			case refs.isHref(a):
				check(a.Value)
			case refs.isURLAttr(a):
				if m := urlRef.FindStringSubmatch(a.Value); m != nil {
					check(m[1])
				}
			}
		}
	})
	return out
}

// walk calls fn for e and every descendant element in document order.
func walk(e *etree.Element, fn func(*etree.Element)) {
	fn(e)
	for _, c := range e.ChildElements() {
		walk(c, fn)
	}
}
