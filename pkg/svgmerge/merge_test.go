package svgmerge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/inktex/pkg/config"
	"github.com/matzehuels/inktex/pkg/errors"
)

const svgHeader = `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink">`

func parse(t *testing.T, body string) *etree.Document {
	t.Helper()
	doc, err := Parse([]byte(svgHeader + body + `</svg>`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return doc
}

// seq returns an oracle producing prefix1, prefix2, ...
func seq(prefix string) IDOracle {
	n := 0
	return OracleFunc(func(string) string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	})
}

func merge(t *testing.T, doc *etree.Document, scale float64, oracle IDOracle) *etree.Element {
	t.Helper()
	g, err := NewMerger(config.Default()).Merge(doc, scale, oracle)
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}
	return g
}

func find(t *testing.T, g *etree.Element, path string) *etree.Element {
	t.Helper()
	el := g.FindElement(path)
	if el == nil {
		t.Fatalf("no element at %s", path)
	}
	return el
}

func collectIDs(el *etree.Element) []string {
	var ids []string
	walk(el, func(e *etree.Element) {
		if id := e.SelectAttrValue("id", ""); id != "" {
			ids = append(ids, id)
		}
	})
	return ids
}

func TestMergeClipPath(t *testing.T) {
	doc := parse(t, `<defs><clipPath id="c1"><rect width="1" height="1"/></clipPath></defs>`+
		`<path clip-path="url(#c1)" d="M0 0"/>`)

	g := merge(t, doc, 1.0, seq("n"))

	if got := find(t, g, ".//clipPath").SelectAttrValue("id", ""); got != "n1" {
		t.Errorf("clipPath id = %q, want n1", got)
	}
	if got := find(t, g, ".//path").SelectAttrValue("clip-path", ""); got != "url(#n1)" {
		t.Errorf("clip-path = %q, want url(#n1)", got)
	}
	if got := g.SelectAttrValue("id", ""); got != "n2" {
		t.Errorf("group id = %q, want n2", got)
	}
}

func TestMergeForwardHref(t *testing.T) {
	// The reference precedes its target in document order.
	doc := parse(t, `<use xlink:href="#glyph0-1" x="3"/><defs><symbol id="glyph0-1"/></defs>`)

	g := merge(t, doc, 1.0, seq("n"))

	use := find(t, g, ".//use")
	if got := use.SelectAttrValue("xlink:href", ""); got != "#n1" {
		t.Errorf("xlink:href = %q, want #n1", got)
	}
	if dangling := NewMerger(config.Default()).DanglingRefs(g); len(dangling) != 0 {
		t.Errorf("DanglingRefs() = %v, want none", dangling)
	}
}

func TestMergePresentationURLAttributes(t *testing.T) {
	doc := parse(t, `<defs><linearGradient id="lg"/><mask id="m"/></defs>`+
		`<rect fill="url(#lg)" mask="url(#m)"/>`)

	g := merge(t, doc, 1.0, seq("n"))

	rect := find(t, g, ".//rect")
	if got := rect.SelectAttrValue("fill", ""); got != "url(#n1)" {
		t.Errorf("fill = %q, want url(#n1)", got)
	}
	if got := rect.SelectAttrValue("mask", ""); got != "url(#n2)" {
		t.Errorf("mask = %q, want url(#n2)", got)
	}
}

func TestMergeLeavesUnrecognisedReferences(t *testing.T) {
	tests := []struct {
		name string
		attr string
		val  string
	}{
		{"style property", "style", "clip-path:url(#a)"},
		{"unprefixed href", "href", "#a"},
		{"quoted url", "clip-path", "url('#a')"},
		{"trailing text", "clip-path", "url(#a) view-box"},
		{"unknown id", "clip-path", "url(#nope)"},
		{"non-url value", "fill", "#a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, fmt.Sprintf(`<rect id="a"/><path %s=%q/>`, tt.attr, tt.val))
			g := merge(t, doc, 1.0, seq("n"))
			if got := find(t, g, ".//path").SelectAttrValue(tt.attr, ""); got != tt.val {
				t.Errorf("%s = %q, want %q unchanged", tt.attr, got, tt.val)
			}
		})
	}
}

func TestMergeExternalHrefUntouched(t *testing.T) {
	doc := parse(t, `<a xlink:href="https://example.com/#a"><rect id="a"/></a>`)
	g := merge(t, doc, 1.0, seq("n"))
	if got := find(t, g, ".//a").SelectAttrValue("xlink:href", ""); got != "https://example.com/#a" {
		t.Errorf("external href rewritten to %q", got)
	}
}

func TestMergeScale(t *testing.T) {
	tests := []struct {
		scale float64
		want  string
	}{
		{1.0, ""},
		{2.0, "scale(2.000000,2.000000)"},
		{0.5, "scale(0.500000,0.500000)"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.scale), func(t *testing.T) {
			g := merge(t, parse(t, `<path d="M0 0"/>`), tt.scale, seq("n"))
			attr := g.SelectAttr("transform")
			switch {
			case tt.want == "" && attr != nil:
				t.Errorf("transform = %q, want none at unit scale", attr.Value)
			case tt.want != "" && (attr == nil || attr.Value != tt.want):
				t.Errorf("transform = %v, want %q", attr, tt.want)
			}
		})
	}
}

func TestMergeInvalidScale(t *testing.T) {
	_, err := NewMerger(config.Default()).Merge(parse(t, `<g/>`), 0, seq("n"))
	if !errors.Is(err, errors.ErrCodeInvalidScale) {
		t.Errorf("Merge(scale=0) = %v, want %s", err, errors.ErrCodeInvalidScale)
	}
}

func TestMergeCollapsesTopLevelChildren(t *testing.T) {
	doc := parse(t, `<defs/><g id="page1"/><path/><text>x</text>`)

	g := merge(t, doc, 1.0, seq("n"))

	var tags []string
	for _, c := range g.ChildElements() {
		tags = append(tags, c.Tag)
	}
	if diff := cmp.Diff([]string{"defs", "g", "path", "text"}, tags); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}
	if g.Parent() != nil {
		t.Error("returned group should be detached")
	}

	root := doc.Root()
	if n := len(root.ChildElements()); n != 1 {
		t.Errorf("root has %d child elements after merge, want 1", n)
	}
	if root.ChildElements()[0].Tag != "g" {
		t.Errorf("root child = %s, want g", root.ChildElements()[0].Tag)
	}
}

func TestMergeCarriesNamespaceDeclarations(t *testing.T) {
	g := merge(t, parse(t, `<use xlink:href="#x"/><symbol id="x"/>`), 1.0, seq("n"))

	if got := g.SelectAttrValue("xmlns:xlink", ""); got != "http://www.w3.org/1999/xlink" {
		t.Errorf("xmlns:xlink = %q", got)
	}

	// The detached group must survive serialisation on its own.
	out := etree.NewDocument()
	out.SetRoot(g)
	data, err := out.WriteToBytes()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(data); err != nil {
		t.Errorf("serialised group does not parse: %v\n%s", err, data)
	}
}

func TestMergeEmptyRoot(t *testing.T) {
	g := merge(t, parse(t, ``), 1.0, seq("n"))
	if n := len(g.ChildElements()); n != 0 {
		t.Errorf("group has %d children, want 0", n)
	}
	if g.SelectAttrValue("id", "") == "" {
		t.Error("group should still carry an id")
	}
}

func TestMergeNoRoot(t *testing.T) {
	_, err := NewMerger(config.Default()).Merge(etree.NewDocument(), 1.0, nil)
	if !errors.Is(err, errors.ErrCodeMalformedOutput) {
		t.Errorf("code = %v, want %s", errors.GetCode(err), errors.ErrCodeMalformedOutput)
	}
	if !errors.Is(err, errors.ErrCodeConverter) {
		t.Error("malformed output should also be a converter failure")
	}
}

func TestMergeIDsInjectiveAndDisjoint(t *testing.T) {
	body := `<defs>`
	for i := 0; i < 20; i++ {
		body += fmt.Sprintf(`<symbol id="glyph-%d"/>`, i)
	}
	body += `</defs><use xlink:href="#glyph-3"/>`

	seen := make(map[string]bool)
	for round := 0; round < 2; round++ {
		g := merge(t, parse(t, body), 1.0, nil)
		ids := collectIDs(g)
		if len(ids) != 21 {
			t.Fatalf("round %d: %d ids, want 21", round, len(ids))
		}
		for _, id := range ids {
			if seen[id] {
				t.Errorf("round %d: id %q reused", round, id)
			}
			seen[id] = true
			if !strings.HasPrefix(id, "inktex-") {
				t.Errorf("id %q lacks the configured prefix", id)
			}
		}
	}
}

func TestDanglingRefs(t *testing.T) {
	doc := parse(t, `<use xlink:href="#gone"/><path clip-path="url(#c)"/><clipPath id="c"/>`)
	got := NewMerger(config.Default()).DanglingRefs(doc.Root())
	if diff := cmp.Diff([]string{"#gone"}, got); diff != "" {
		t.Errorf("DanglingRefs mismatch (-want +got):\n%s", diff)
	}
}

func TestRemapLookup(t *testing.T) {
	r := Remap{"#a": "#b"}
	if got := r.Lookup("#a"); got != "#b" {
		t.Errorf("Lookup(#a) = %q", got)
	}
	if got := r.Lookup("#z"); got != "#z" {
		t.Errorf("Lookup(#z) = %q, want unchanged", got)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "<svg", "not xml at all"} {
		if _, err := Parse([]byte(in)); !errors.Is(err, errors.ErrCodeMalformedOutput) {
			t.Errorf("Parse(%q) = %v, want %s", in, err, errors.ErrCodeMalformedOutput)
		}
	}
}

func TestCounterOracle(t *testing.T) {
	o := NewCounterOracle("pfx")
	a, b := o.UniqueID("x"), o.UniqueID("x")
	if a == b {
		t.Errorf("UniqueID returned %q twice", a)
	}
	if !strings.HasPrefix(a, "pfx-") {
		t.Errorf("UniqueID() = %q, want pfx- prefix", a)
	}
}

func TestScaleTransform(t *testing.T) {
	if got := ScaleTransform(1.5); got != "scale(1.500000,1.500000)" {
		t.Errorf("ScaleTransform(1.5) = %q", got)
	}
}
