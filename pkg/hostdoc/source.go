package hostdoc

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"

	"github.com/matzehuels/inktex/pkg/config"
)

// StampSource records src on g as the inktex:src attribute and declares the
// inktex namespace on g itself, so the group carries its source without a
// host document. Inside a host, prefer Document.SetSource.
func StampSource(g *etree.Element, ns config.Namespaces, src string) {
	g.CreateAttr("xmlns:"+ns.InkTeXPrefix, ns.InkTeX)
	g.CreateAttr(ns.InkTeXPrefix+":"+attrSrc, EncodeSource(src))
}

// EncodeSource escapes LaTeX source for storage in an attribute value.
// Backslash, single quote, newline, carriage return and tab use their
// two-character escapes; every other byte outside printable ASCII is
// written as \xNN.
func EncodeSource(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&b, `\x%02x`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}

// DecodeSource reverses EncodeSource. Unescaped quotes and raw non-ASCII
// characters are accepted as literals.
func DecodeSource(s string) (string, error) {
	buf := make([]byte, 0, len(s))
	for len(s) > 0 {
		switch {
		case s[0] == '\'':
			buf = append(buf, '\'')
			s = s[1:]
			continue
		case strings.HasPrefix(s, `\"`):
			buf = append(buf, '"')
			s = s[2:]
			continue
		}

		v, multibyte, tail, err := strconv.UnquoteChar(s, '\'')
		if err != nil {
			return "", fmt.Errorf("decode source near %q: %w", truncate(s, 8), err)
		}
		if multibyte {
			buf = utf8.AppendRune(buf, v)
		} else {
			buf = append(buf, byte(v))
		}
		s = tail
	}
	return string(buf), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
